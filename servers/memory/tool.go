package memory

import mcp "github.com/mcpwire/go-mcp"

var toolList = mcp.ListToolsResult{
	Tools: []mcp.Tool{
		{
			Name:        "create_entities",
			Description: "Create new entities in the knowledge graph. Names that already exist are skipped.",
			InputSchema: createEntitiesSchema,
		},
		{
			Name:        "create_relations",
			Description: "Create new relations between entities. Exact duplicates are skipped.",
			InputSchema: createRelationsSchema,
		},
		{
			Name:        "add_observations",
			Description: "Attach new observations to existing entities.",
			InputSchema: addObservationsSchema,
		},
		{
			Name:        "delete_entities",
			Description: "Delete entities and every relation that touches them.",
			InputSchema: deleteEntitiesSchema,
		},
		{
			Name:        "delete_observations",
			Description: "Remove specific observations from entities.",
			InputSchema: deleteObservationsSchema,
		},
		{
			Name:        "delete_relations",
			Description: "Delete exact relation matches from the knowledge graph.",
			InputSchema: deleteRelationsSchema,
		},
		{
			Name:        "read_graph",
			Description: "Read the entire knowledge graph.",
			InputSchema: readGraphSchema,
		},
		{
			Name:        "search_nodes",
			Description: "Find entities whose name, type, or observations match a query.",
			InputSchema: searchNodesSchema,
		},
		{
			Name:        "open_nodes",
			Description: "Retrieve specific entities by name, with the relations between them.",
			InputSchema: openNodesSchema,
		},
	},
}
