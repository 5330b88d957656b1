package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	mcp "github.com/mcpwire/go-mcp"
)

// Handler serves filesystem tools over MCP. Every operation is restricted to
// the configured root directories; paths that escape them, directly or
// through symlinks, are rejected.
//
// Handler.HandleRequest is a mcp.RequestHandlerFunc and can be registered on
// a session or server directly.
type Handler struct {
	rootPaths []string
}

// NewHandler creates a filesystem handler restricted to the given root
// directories.
//
// It returns an error if any root does not exist, is not a directory, or
// cannot be accessed.
func NewHandler(roots []string) (Handler, error) {
	if len(roots) == 0 {
		return Handler{}, fmt.Errorf("at least one root directory is required")
	}
	normalized := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(filepath.Clean(root))
		if err != nil {
			return Handler{}, fmt.Errorf("failed to resolve root directory: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return Handler{}, fmt.Errorf("failed to stat root directory: %w", err)
		}
		if !info.IsDir() {
			return Handler{}, fmt.Errorf("root directory is not a directory: %s", root)
		}
		normalized = append(normalized, abs)
	}

	return Handler{rootPaths: normalized}, nil
}

// HandleRequest dispatches tools/list and tools/call requests. Any other
// method is answered with a method-not-found error.
func (h Handler) HandleRequest(ctx context.Context, sess *mcp.ServerSession, msg mcp.JSONRPCMessage) (any, error) {
	switch msg.Method {
	case mcp.MethodToolsList:
		return toolList, nil
	case mcp.MethodToolsCall:
		return h.callTool(ctx, sess, msg)
	default:
		return nil, mcp.JSONRPCError{
			Code:    mcp.JSONRPCMethodNotFoundCode,
			Message: fmt.Sprintf("method not found: %s", msg.Method),
		}
	}
}

func (h Handler) callTool(ctx context.Context, sess *mcp.ServerSession, msg mcp.JSONRPCMessage) (mcp.CallToolResult, error) {
	var params mcp.CallToolParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return mcp.CallToolResult{}, mcp.JSONRPCError{
			Code:    mcp.JSONRPCInvalidParamsCode,
			Message: fmt.Sprintf("failed to unmarshal params: %s", err),
		}
	}

	progress := func(current, total float64) {
		if params.Meta.ProgressToken == "" {
			return
		}
		// Progress is best effort, the call itself goes on.
		_ = sess.Progress(ctx, mcp.ProgressParams{
			ProgressToken: params.Meta.ProgressToken,
			Progress:      current,
			Total:         total,
		})
	}

	var result mcp.CallToolResult
	var err error

	switch params.Name {
	case "read_file":
		result, err = readFile(h.rootPaths, params)
	case "read_multiple_files":
		result, err = readMultipleFiles(h.rootPaths, params)
	case "write_file":
		result, err = writeFile(h.rootPaths, params)
	case "edit_file":
		result, err = editFile(h.rootPaths, params)
	case "create_directory":
		result, err = createDirectory(h.rootPaths, params)
	case "list_directory":
		result, err = listDirectory(h.rootPaths, params)
	case "directory_tree":
		result, err = directoryTree(h.rootPaths, params)
	case "move_file":
		result, err = moveFile(h.rootPaths, params)
	case "search_files":
		result, err = searchFiles(h.rootPaths, params, progress)
	case "get_file_info":
		result, err = getFileInfo(h.rootPaths, params)
	case "list_allowed_directories":
		result, err = listAllowedDirectories(h.rootPaths), nil
	default:
		return mcp.CallToolResult{}, mcp.JSONRPCError{
			Code:    mcp.JSONRPCInvalidParamsCode,
			Message: fmt.Sprintf("tool not found: %s", params.Name),
		}
	}

	if err != nil {
		// Tool failures are reported in-band so the client sees what went
		// wrong instead of a bare protocol error.
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
