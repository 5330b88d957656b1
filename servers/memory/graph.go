package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// graphStore persists a knowledge graph as a single JSON document. Every
// operation is load-modify-persist; the store itself holds no state beyond
// the file path, so concurrent callers race on the file and the last write
// wins.
type graphStore struct {
	path string
}

type entity struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entityType"`
	Observations []string `json:"observations"`
}

type relation struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relationType"`
}

type knowledgeGraph struct {
	Entities  []entity   `json:"entities"`
	Relations []relation `json:"relations"`
}

func (g graphStore) load() (knowledgeGraph, error) {
	graph := knowledgeGraph{Entities: []entity{}, Relations: []relation{}}

	data, err := os.ReadFile(g.path)
	if err != nil {
		// A store that was never written to is an empty graph.
		if errors.Is(err, fs.ErrNotExist) {
			return graph, nil
		}
		return knowledgeGraph{}, fmt.Errorf("read graph file %s: %w", g.path, err)
	}

	if err := json.Unmarshal(data, &graph); err != nil {
		return knowledgeGraph{}, fmt.Errorf("decode graph file %s: %w", g.path, err)
	}
	return graph, nil
}

func (g graphStore) persist(graph knowledgeGraph) error {
	data, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	if err := os.WriteFile(g.path, data, 0600); err != nil {
		return fmt.Errorf("write graph file %s: %w", g.path, err)
	}
	return nil
}

// addEntities inserts the given entities and returns the ones that were
// actually new. Names already present in the graph are skipped silently.
func (g graphStore) addEntities(entities []entity) ([]entity, error) {
	graph, err := g.load()
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(graph.Entities))
	for _, e := range graph.Entities {
		known[e.Name] = true
	}

	var added []entity
	for _, e := range entities {
		if known[e.Name] {
			continue
		}
		known[e.Name] = true
		graph.Entities = append(graph.Entities, e)
		added = append(added, e)
	}

	if err := g.persist(graph); err != nil {
		return nil, err
	}
	return added, nil
}

// addRelations inserts the given relations and returns the ones that were
// actually new. A relation is a duplicate when from, to, and type all match.
func (g graphStore) addRelations(relations []relation) ([]relation, error) {
	graph, err := g.load()
	if err != nil {
		return nil, err
	}

	known := make(map[relation]bool, len(graph.Relations))
	for _, r := range graph.Relations {
		known[r] = true
	}

	var added []relation
	for _, r := range relations {
		if known[r] {
			continue
		}
		known[r] = true
		graph.Relations = append(graph.Relations, r)
		added = append(added, r)
	}

	if err := g.persist(graph); err != nil {
		return nil, err
	}
	return added, nil
}

// appendObservations attaches new observation contents to existing entities
// and returns, per entity, the contents that were actually new. An unknown
// entity name fails the whole batch.
func (g graphStore) appendObservations(additions []observation) ([]observation, error) {
	graph, err := g.load()
	if err != nil {
		return nil, err
	}

	index := entityIndex(graph)
	var results []observation
	for _, add := range additions {
		i, ok := index[add.EntityName]
		if !ok {
			return nil, fmt.Errorf("unknown entity %q", add.EntityName)
		}

		seen := make(map[string]bool, len(graph.Entities[i].Observations))
		for _, existing := range graph.Entities[i].Observations {
			seen[existing] = true
		}

		var fresh []string
		for _, content := range add.Contents {
			if seen[content] {
				continue
			}
			seen[content] = true
			fresh = append(fresh, content)
			graph.Entities[i].Observations = append(graph.Entities[i].Observations, content)
		}
		results = append(results, observation{EntityName: add.EntityName, Contents: fresh})
	}

	if err := g.persist(graph); err != nil {
		return nil, err
	}
	return results, nil
}

// removeEntities deletes the named entities together with every relation that
// touches them. Unknown names are ignored.
func (g graphStore) removeEntities(names []string) error {
	graph, err := g.load()
	if err != nil {
		return err
	}

	doomed := stringSet(names)

	entities := graph.Entities[:0:0]
	for _, e := range graph.Entities {
		if !doomed[e.Name] {
			entities = append(entities, e)
		}
	}
	graph.Entities = entities

	relations := graph.Relations[:0:0]
	for _, r := range graph.Relations {
		if !doomed[r.From] && !doomed[r.To] {
			relations = append(relations, r)
		}
	}
	graph.Relations = relations

	return g.persist(graph)
}

// removeObservations strips the listed observation contents from their
// entities. Unknown entities and unknown contents are ignored.
func (g graphStore) removeObservations(deletions []observationDeletion) error {
	graph, err := g.load()
	if err != nil {
		return err
	}

	index := entityIndex(graph)
	for _, del := range deletions {
		i, ok := index[del.EntityName]
		if !ok {
			continue
		}

		doomed := stringSet(del.Observations)
		kept := graph.Entities[i].Observations[:0:0]
		for _, content := range graph.Entities[i].Observations {
			if !doomed[content] {
				kept = append(kept, content)
			}
		}
		graph.Entities[i].Observations = kept
	}

	return g.persist(graph)
}

// removeRelations deletes exact from/to/type matches. Unknown relations are
// ignored.
func (g graphStore) removeRelations(relations []relation) error {
	graph, err := g.load()
	if err != nil {
		return err
	}

	doomed := make(map[relation]bool, len(relations))
	for _, r := range relations {
		doomed[r] = true
	}

	kept := graph.Relations[:0:0]
	for _, r := range graph.Relations {
		if !doomed[r] {
			kept = append(kept, r)
		}
	}
	graph.Relations = kept

	return g.persist(graph)
}

func (g graphStore) snapshot() (knowledgeGraph, error) {
	return g.load()
}

// search returns the subgraph of entities whose name, type, or observations
// contain the query, matched case-insensitively.
func (g graphStore) search(query string) (knowledgeGraph, error) {
	graph, err := g.load()
	if err != nil {
		return knowledgeGraph{}, err
	}

	q := strings.ToLower(query)
	var matched []entity
	for _, e := range graph.Entities {
		if entityMatches(e, q) {
			matched = append(matched, e)
		}
	}

	return subgraph(graph, matched), nil
}

// open returns the subgraph of the named entities.
func (g graphStore) open(names []string) (knowledgeGraph, error) {
	graph, err := g.load()
	if err != nil {
		return knowledgeGraph{}, err
	}

	wanted := stringSet(names)
	var matched []entity
	for _, e := range graph.Entities {
		if wanted[e.Name] {
			matched = append(matched, e)
		}
	}

	return subgraph(graph, matched), nil
}

func entityMatches(e entity, loweredQuery string) bool {
	if strings.Contains(strings.ToLower(e.Name), loweredQuery) ||
		strings.Contains(strings.ToLower(e.EntityType), loweredQuery) {
		return true
	}
	for _, content := range e.Observations {
		if strings.Contains(strings.ToLower(content), loweredQuery) {
			return true
		}
	}
	return false
}

// subgraph keeps the given entities and only the relations whose endpoints
// both survive.
func subgraph(graph knowledgeGraph, entities []entity) knowledgeGraph {
	names := make(map[string]bool, len(entities))
	for _, e := range entities {
		names[e.Name] = true
	}

	var relations []relation
	for _, r := range graph.Relations {
		if names[r.From] && names[r.To] {
			relations = append(relations, r)
		}
	}

	return knowledgeGraph{Entities: entities, Relations: relations}
}

func entityIndex(graph knowledgeGraph) map[string]int {
	index := make(map[string]int, len(graph.Entities))
	for i, e := range graph.Entities {
		index[e.Name] = i
	}
	return index
}

func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
