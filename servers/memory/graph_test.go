package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testStore(t *testing.T) graphStore {
	t.Helper()
	return graphStore{path: filepath.Join(t.TempDir(), "graph.json")}
}

func seedStore(t *testing.T, store graphStore, graph knowledgeGraph) {
	t.Helper()
	if err := store.persist(graph); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
}

func entityNames(graph knowledgeGraph) []string {
	names := make([]string, 0, len(graph.Entities))
	for _, e := range graph.Entities {
		names = append(names, e.Name)
	}
	return names
}

func TestGraphStoreMissingFileIsEmptyGraph(t *testing.T) {
	store := testStore(t)

	graph, err := store.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph.Entities) != 0 || len(graph.Relations) != 0 {
		t.Errorf("expected empty graph, got %+v", graph)
	}
}

func TestGraphStoreAddEntities(t *testing.T) {
	tests := []struct {
		name      string
		existing  []entity
		add       []entity
		wantAdded []string
		wantGraph []string
	}{
		{
			name:      "fresh entities",
			add:       []entity{{Name: "Alice"}, {Name: "Bob"}},
			wantAdded: []string{"Alice", "Bob"},
			wantGraph: []string{"Alice", "Bob"},
		},
		{
			name:      "duplicate names are skipped",
			existing:  []entity{{Name: "Alice", Observations: []string{"original"}}},
			add:       []entity{{Name: "Alice", Observations: []string{"imposter"}}, {Name: "Bob"}},
			wantAdded: []string{"Bob"},
			wantGraph: []string{"Alice", "Bob"},
		},
		{
			name:      "duplicate within one batch",
			add:       []entity{{Name: "Alice"}, {Name: "Alice"}},
			wantAdded: []string{"Alice"},
			wantGraph: []string{"Alice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testStore(t)
			if tt.existing != nil {
				seedStore(t, store, knowledgeGraph{Entities: tt.existing})
			}

			added, err := store.addEntities(tt.add)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			addedNames := entityNames(knowledgeGraph{Entities: added})
			if strings.Join(addedNames, ",") != strings.Join(tt.wantAdded, ",") {
				t.Errorf("added = %v, want %v", addedNames, tt.wantAdded)
			}

			graph, err := store.snapshot()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(entityNames(graph), ",") != strings.Join(tt.wantGraph, ",") {
				t.Errorf("graph entities = %v, want %v", entityNames(graph), tt.wantGraph)
			}
		})
	}
}

func TestGraphStoreAddRelationsSkipsDuplicates(t *testing.T) {
	store := testStore(t)
	seedStore(t, store, knowledgeGraph{
		Entities:  []entity{{Name: "Alice"}, {Name: "Bob"}},
		Relations: []relation{{From: "Alice", To: "Bob", RelationType: "knows"}},
	})

	added, err := store.addRelations([]relation{
		{From: "Alice", To: "Bob", RelationType: "knows"},
		{From: "Bob", To: "Alice", RelationType: "knows"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(added) != 1 || added[0].From != "Bob" {
		t.Errorf("added = %+v, want only Bob->Alice", added)
	}

	graph, err := store.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph.Relations) != 2 {
		t.Errorf("relation count = %d, want 2", len(graph.Relations))
	}
}

func TestGraphStoreAppendObservations(t *testing.T) {
	store := testStore(t)
	seedStore(t, store, knowledgeGraph{
		Entities: []entity{{Name: "Alice", Observations: []string{"likes Go"}}},
	})

	results, err := store.appendObservations([]observation{
		{EntityName: "Alice", Contents: []string{"likes Go", "writes tests"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || len(results[0].Contents) != 1 || results[0].Contents[0] != "writes tests" {
		t.Errorf("results = %+v, want only the new observation reported", results)
	}

	graph, err := store.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph.Entities[0].Observations) != 2 {
		t.Errorf("observations = %v, want 2 entries", graph.Entities[0].Observations)
	}
}

func TestGraphStoreAppendObservationsUnknownEntity(t *testing.T) {
	store := testStore(t)

	_, err := store.appendObservations([]observation{
		{EntityName: "ghost", Contents: []string{"boo"}},
	})
	if err == nil {
		t.Fatal("expected error for unknown entity")
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Errorf("error %q does not name the entity", err)
	}
}

func TestGraphStoreRemoveEntitiesDropsTouchingRelations(t *testing.T) {
	store := testStore(t)
	seedStore(t, store, knowledgeGraph{
		Entities: []entity{{Name: "Alice"}, {Name: "Bob"}, {Name: "Carol"}},
		Relations: []relation{
			{From: "Alice", To: "Bob", RelationType: "knows"},
			{From: "Bob", To: "Carol", RelationType: "knows"},
		},
	})

	if err := store.removeEntities([]string{"Alice"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	graph, err := store.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(entityNames(graph), ",") != "Bob,Carol" {
		t.Errorf("entities = %v, want Bob and Carol", entityNames(graph))
	}
	if len(graph.Relations) != 1 || graph.Relations[0].From != "Bob" {
		t.Errorf("relations = %+v, want only Bob->Carol", graph.Relations)
	}
}

func TestGraphStoreRemoveObservations(t *testing.T) {
	store := testStore(t)
	seedStore(t, store, knowledgeGraph{
		Entities: []entity{{Name: "Alice", Observations: []string{"likes Go", "writes tests"}}},
	})

	err := store.removeObservations([]observationDeletion{
		{EntityName: "Alice", Observations: []string{"likes Go"}},
		{EntityName: "ghost", Observations: []string{"ignored"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	graph, err := store.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	obs := graph.Entities[0].Observations
	if len(obs) != 1 || obs[0] != "writes tests" {
		t.Errorf("observations = %v, want only the surviving entry", obs)
	}
}

func TestGraphStoreRemoveRelations(t *testing.T) {
	store := testStore(t)
	seedStore(t, store, knowledgeGraph{
		Entities: []entity{{Name: "Alice"}, {Name: "Bob"}},
		Relations: []relation{
			{From: "Alice", To: "Bob", RelationType: "knows"},
			{From: "Alice", To: "Bob", RelationType: "mentors"},
		},
	})

	err := store.removeRelations([]relation{{From: "Alice", To: "Bob", RelationType: "knows"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	graph, err := store.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph.Relations) != 1 || graph.Relations[0].RelationType != "mentors" {
		t.Errorf("relations = %+v, want only the mentors relation", graph.Relations)
	}
}

func TestGraphStoreSearch(t *testing.T) {
	store := testStore(t)
	seedStore(t, store, knowledgeGraph{
		Entities: []entity{
			{Name: "Alice", EntityType: "person", Observations: []string{"likes Go"}},
			{Name: "Bob", EntityType: "person", Observations: []string{"likes Rust"}},
			{Name: "Gopher", EntityType: "mascot"},
		},
		Relations: []relation{
			{From: "Alice", To: "Gopher", RelationType: "admires"},
			{From: "Alice", To: "Bob", RelationType: "knows"},
		},
	})

	tests := []struct {
		name      string
		query     string
		wantNames []string
	}{
		{name: "observation match is case-insensitive", query: "go", wantNames: []string{"Alice", "Gopher"}},
		{name: "name match", query: "bob", wantNames: []string{"Bob"}},
		{name: "type match", query: "mascot", wantNames: []string{"Gopher"}},
		{name: "no match", query: "zebra", wantNames: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graph, err := store.search(tt.query)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(entityNames(graph), ",") != strings.Join(tt.wantNames, ",") {
				t.Errorf("entities = %v, want %v", entityNames(graph), tt.wantNames)
			}
		})
	}

	// Relations survive only when both endpoints matched.
	graph, err := store.search("go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph.Relations) != 1 || graph.Relations[0].To != "Gopher" {
		t.Errorf("relations = %+v, want only Alice->Gopher", graph.Relations)
	}
}

func TestGraphStoreOpen(t *testing.T) {
	store := testStore(t)
	seedStore(t, store, knowledgeGraph{
		Entities: []entity{{Name: "Alice"}, {Name: "Bob"}, {Name: "Carol"}},
		Relations: []relation{
			{From: "Alice", To: "Bob", RelationType: "knows"},
			{From: "Bob", To: "Carol", RelationType: "knows"},
		},
	})

	graph, err := store.open([]string{"Alice", "Bob"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(entityNames(graph), ",") != "Alice,Bob" {
		t.Errorf("entities = %v, want Alice and Bob", entityNames(graph))
	}
	if len(graph.Relations) != 1 || graph.Relations[0].To != "Bob" {
		t.Errorf("relations = %+v, want only Alice->Bob", graph.Relations)
	}
}

func TestGraphStorePersistedDocument(t *testing.T) {
	store := testStore(t)

	_, err := store.addEntities([]entity{
		{Name: "Alice", EntityType: "person", Observations: []string{"likes Go"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(store.path)
	if err != nil {
		t.Fatalf("failed to read graph file: %v", err)
	}

	var doc struct {
		Entities []entity `json:"entities"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("graph file is not a JSON document: %v", err)
	}
	if len(doc.Entities) != 1 || doc.Entities[0].Name != "Alice" {
		t.Errorf("persisted entities = %+v, want Alice", doc.Entities)
	}
}

func TestGraphStoreCorruptFile(t *testing.T) {
	store := testStore(t)
	if err := os.WriteFile(store.path, []byte("not json"), 0600); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	if _, err := store.snapshot(); err == nil {
		t.Fatal("expected error for corrupt graph file")
	}
}

func TestGraphStoreUnwritablePath(t *testing.T) {
	store := graphStore{path: filepath.Join(t.TempDir(), "missing", "graph.json")}

	if _, err := store.addEntities([]entity{{Name: "Alice"}}); err == nil {
		t.Fatal("expected error when the parent directory does not exist")
	}
}
