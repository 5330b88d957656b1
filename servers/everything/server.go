package everything

import (
	"context"
	"fmt"
	"sync"

	mcp "github.com/mcpwire/go-mcp"
)

// Server is a demonstration MCP server that exercises the full server-side
// surface of the protocol: tools, progress reporting, client-side sampling,
// log streaming, and resource update notifications. It exists primarily for
// testing MCP client implementations.
type Server struct {
	resourceSubscribers *sync.Map // map[resourceURI]struct{}

	logMu    sync.RWMutex
	logLevel mcp.LogLevel

	updateResourceSubs chan string
	logs               chan mcp.LogParams

	done               chan struct{}
	resourceSubsClosed chan struct{}
}

// NewServer creates a demonstration server. A background goroutine simulates
// periodic updates to subscribed resources; callers must call Close when
// finished to stop it.
func NewServer() *Server {
	s := &Server{
		resourceSubscribers: new(sync.Map),
		logLevel:            mcp.LogLevelDebug,
		updateResourceSubs:  make(chan string),
		logs:                make(chan mcp.LogParams, 10),
		done:                make(chan struct{}),
		resourceSubsClosed:  make(chan struct{}),
	}

	go s.simulateResourceUpdates()

	return s
}

// Close stops the background tasks.
func (s *Server) Close() {
	close(s.done)
	<-s.resourceSubsClosed
}

// HandleRequest dispatches post-handshake client requests. It satisfies
// mcp.RequestHandlerFunc.
func (s *Server) HandleRequest(ctx context.Context, sess *mcp.ServerSession, msg mcp.JSONRPCMessage) (any, error) {
	switch msg.Method {
	case mcp.MethodToolsList:
		return s.listTools(), nil
	case mcp.MethodToolsCall:
		return s.callTool(ctx, sess, msg)
	case mcp.MethodResourcesSubscribe:
		return s.subscribeResource(msg)
	case mcp.MethodResourcesUnsubscribe:
		return s.unsubscribeResource(msg)
	default:
		return nil, mcp.JSONRPCError{
			Code:    mcp.JSONRPCMethodNotFoundCode,
			Message: fmt.Sprintf("method not found: %s", msg.Method),
		}
	}
}
