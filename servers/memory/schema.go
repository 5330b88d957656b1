package memory

// Tool argument payloads. The JSON field names are the tool contract and
// mirror the input schemas below.

type createEntitiesArgs struct {
	Entities []entity `json:"entities"`
}

type createRelationsArgs struct {
	Relations []relation `json:"relations"`
}

type addObservationsArgs struct {
	Observations []observation `json:"observations"`
}

type observation struct {
	EntityName string   `json:"entityName"`
	Contents   []string `json:"contents"`
}

type deleteEntitiesArgs struct {
	EntityNames []string `json:"entityNames"`
}

type deleteObservationsArgs struct {
	Deletions []observationDeletion `json:"deletions"`
}

type observationDeletion struct {
	EntityName   string   `json:"entityName"`
	Observations []string `json:"observations"`
}

type deleteRelationsArgs struct {
	Relations []relation `json:"relations"`
}

type searchNodesArgs struct {
	Query string `json:"query"`
}

type openNodesArgs struct {
	Names []string `json:"names"`
}

var entitySchema = `{
  "type": "object",
  "properties": {
    "name": { "type": "string", "description": "Unique entity name" },
    "entityType": { "type": "string", "description": "Entity category" },
    "observations": {
      "type": "array",
      "items": { "type": "string" },
      "description": "Facts recorded about the entity"
    }
  },
  "required": ["name", "entityType", "observations"]
}`

var relationSchema = `{
  "type": "object",
  "properties": {
    "from": { "type": "string", "description": "Source entity name" },
    "to": { "type": "string", "description": "Target entity name" },
    "relationType": { "type": "string", "description": "Relation category, in active voice" }
  },
  "required": ["from", "to", "relationType"]
}`

var createEntitiesSchema = []byte(`{
  "type": "object",
  "properties": {
    "entities": { "type": "array", "items": ` + entitySchema + ` }
  },
  "required": ["entities"]
}`)

var createRelationsSchema = []byte(`{
  "type": "object",
  "properties": {
    "relations": { "type": "array", "items": ` + relationSchema + ` }
  },
  "required": ["relations"]
}`)

var addObservationsSchema = []byte(`{
  "type": "object",
  "properties": {
    "observations": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "entityName": { "type": "string", "description": "Entity to extend" },
          "contents": {
            "type": "array",
            "items": { "type": "string" },
            "description": "Facts to record"
          }
        },
        "required": ["entityName", "contents"]
      }
    }
  },
  "required": ["observations"]
}`)

var deleteEntitiesSchema = []byte(`{
  "type": "object",
  "properties": {
    "entityNames": {
      "type": "array",
      "items": { "type": "string" },
      "description": "Entity names to delete"
    }
  },
  "required": ["entityNames"]
}`)

var deleteObservationsSchema = []byte(`{
  "type": "object",
  "properties": {
    "deletions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "entityName": { "type": "string", "description": "Entity to trim" },
          "observations": {
            "type": "array",
            "items": { "type": "string" },
            "description": "Facts to remove"
          }
        },
        "required": ["entityName", "observations"]
      }
    }
  },
  "required": ["deletions"]
}`)

var deleteRelationsSchema = []byte(`{
  "type": "object",
  "properties": {
    "relations": { "type": "array", "items": ` + relationSchema + ` }
  },
  "required": ["relations"]
}`)

var readGraphSchema = []byte(`{
  "type": "object",
  "properties": {}
}`)

var searchNodesSchema = []byte(`{
  "type": "object",
  "properties": {
    "query": {
      "type": "string",
      "description": "Matched against entity names, types, and observations"
    }
  },
  "required": ["query"]
}`)

var openNodesSchema = []byte(`{
  "type": "object",
  "properties": {
    "names": {
      "type": "array",
      "items": { "type": "string" },
      "description": "Entity names to retrieve"
    }
  },
  "required": ["names"]
}`)
