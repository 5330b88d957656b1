package memory

import (
	"context"
	"encoding/json"
	"fmt"

	mcp "github.com/mcpwire/go-mcp"
)

// Handler serves knowledge-graph tools over MCP. Entities, relations, and
// observations are persisted to a single JSON file.
//
// Handler.HandleRequest is a mcp.RequestHandlerFunc and can be registered on
// a session or server directly.
type Handler struct {
	store graphStore
}

// NewHandler creates a memory handler persisting its knowledge graph to
// memoryFilePath. The file is created on first write.
func NewHandler(memoryFilePath string) Handler {
	return Handler{
		store: graphStore{path: memoryFilePath},
	}
}

// HandleRequest dispatches tools/list and tools/call requests. Any other
// method is answered with a method-not-found error.
func (h Handler) HandleRequest(_ context.Context, _ *mcp.ServerSession, msg mcp.JSONRPCMessage) (any, error) {
	switch msg.Method {
	case mcp.MethodToolsList:
		return toolList, nil
	case mcp.MethodToolsCall:
		return h.callTool(msg)
	default:
		return nil, mcp.JSONRPCError{
			Code:    mcp.JSONRPCMethodNotFoundCode,
			Message: fmt.Sprintf("method not found: %s", msg.Method),
		}
	}
}

func (h Handler) callTool(msg mcp.JSONRPCMessage) (mcp.CallToolResult, error) {
	var params mcp.CallToolParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return mcp.CallToolResult{}, mcp.JSONRPCError{
			Code:    mcp.JSONRPCInvalidParamsCode,
			Message: fmt.Sprintf("failed to unmarshal params: %s", err),
		}
	}

	var result mcp.CallToolResult
	var err error

	switch params.Name {
	case "create_entities":
		result, err = h.createEntities(params)
	case "create_relations":
		result, err = h.createRelations(params)
	case "add_observations":
		result, err = h.addObservations(params)
	case "delete_entities":
		result, err = h.deleteEntities(params)
	case "delete_observations":
		result, err = h.deleteObservations(params)
	case "delete_relations":
		result, err = h.deleteRelations(params)
	case "read_graph":
		result, err = h.readGraph()
	case "search_nodes":
		result, err = h.searchNodes(params)
	case "open_nodes":
		result, err = h.openNodes(params)
	default:
		return mcp.CallToolResult{}, mcp.JSONRPCError{
			Code:    mcp.JSONRPCInvalidParamsCode,
			Message: fmt.Sprintf("tool not found: %s", params.Name),
		}
	}

	if err != nil {
		return mcp.CallToolResult{
			Content: []mcp.Content{
				{
					Type: mcp.ContentTypeText,
					Text: err.Error(),
				},
			},
			IsError: true,
		}, nil
	}

	return result, nil
}

// textResult wraps text in a single-content tool result.
func textResult(text string) mcp.CallToolResult {
	return mcp.CallToolResult{
		Content: []mcp.Content{
			{
				Type: mcp.ContentTypeText,
				Text: text,
			},
		},
	}
}

// jsonResult marshals v and wraps it in a single-content tool result.
func jsonResult(v any) (mcp.CallToolResult, error) {
	bs, err := json.Marshal(v)
	if err != nil {
		return mcp.CallToolResult{}, err
	}
	return textResult(string(bs)), nil
}

func (h Handler) createEntities(params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var args createEntitiesArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return mcp.CallToolResult{}, err
	}

	entities, err := h.store.addEntities(args.Entities)
	if err != nil {
		return mcp.CallToolResult{}, err
	}
	return jsonResult(entities)
}

func (h Handler) createRelations(params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var args createRelationsArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return mcp.CallToolResult{}, err
	}

	relations, err := h.store.addRelations(args.Relations)
	if err != nil {
		return mcp.CallToolResult{}, err
	}
	return jsonResult(relations)
}

func (h Handler) addObservations(params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var args addObservationsArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return mcp.CallToolResult{}, err
	}

	observations, err := h.store.appendObservations(args.Observations)
	if err != nil {
		return mcp.CallToolResult{}, err
	}
	return jsonResult(observations)
}

func (h Handler) deleteEntities(params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var args deleteEntitiesArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return mcp.CallToolResult{}, err
	}

	if err := h.store.removeEntities(args.EntityNames); err != nil {
		return mcp.CallToolResult{}, err
	}
	return textResult("Entities deleted successfully"), nil
}

func (h Handler) deleteObservations(params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var args deleteObservationsArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return mcp.CallToolResult{}, err
	}

	if err := h.store.removeObservations(args.Deletions); err != nil {
		return mcp.CallToolResult{}, err
	}
	return textResult("Observations deleted successfully"), nil
}

func (h Handler) deleteRelations(params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var args deleteRelationsArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return mcp.CallToolResult{}, err
	}

	if err := h.store.removeRelations(args.Relations); err != nil {
		return mcp.CallToolResult{}, err
	}
	return textResult("Relations deleted successfully"), nil
}

func (h Handler) readGraph() (mcp.CallToolResult, error) {
	graph, err := h.store.snapshot()
	if err != nil {
		return mcp.CallToolResult{}, err
	}
	return jsonResult(graph)
}

func (h Handler) searchNodes(params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var args searchNodesArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return mcp.CallToolResult{}, err
	}

	graph, err := h.store.search(args.Query)
	if err != nil {
		return mcp.CallToolResult{}, err
	}
	return jsonResult(graph)
}

func (h Handler) openNodes(params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var args openNodesArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return mcp.CallToolResult{}, err
	}

	graph, err := h.store.open(args.Names)
	if err != nil {
		return mcp.CallToolResult{}, err
	}
	return jsonResult(graph)
}
