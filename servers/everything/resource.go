package everything

import (
	"encoding/json"
	"fmt"
	"iter"
	"time"

	mcp "github.com/mcpwire/go-mcp"
)

func (s *Server) subscribeResource(msg mcp.JSONRPCMessage) (any, error) {
	var params mcp.SubscribeResourceParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil, mcp.JSONRPCError{
			Code:    mcp.JSONRPCInvalidParamsCode,
			Message: fmt.Sprintf("invalid subscribe params: %s", err),
		}
	}

	s.log(fmt.Sprintf("SubscribeResource: %s", params.URI), mcp.LogLevelDebug)
	s.resourceSubscribers.Store(params.URI, struct{}{})

	return struct{}{}, nil
}

func (s *Server) unsubscribeResource(msg mcp.JSONRPCMessage) (any, error) {
	var params mcp.SubscribeResourceParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil, mcp.JSONRPCError{
			Code:    mcp.JSONRPCInvalidParamsCode,
			Message: fmt.Sprintf("invalid unsubscribe params: %s", err),
		}
	}

	s.log(fmt.Sprintf("UnsubscribeResource: %s", params.URI), mcp.LogLevelDebug)
	s.resourceSubscribers.Delete(params.URI)

	return struct{}{}, nil
}

// ResourceUpdates implements mcp.ResourceUpdater. Each yielded URI is
// broadcast to connected clients as a resource-updated notification.
func (s *Server) ResourceUpdates() iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			select {
			case <-s.done:
				return
			case uri := <-s.updateResourceSubs:
				if !yield(uri) {
					return
				}
			}
		}
	}
}

// simulateResourceUpdates periodically reports every subscribed resource as
// updated, so clients can exercise their subscription handling.
func (s *Server) simulateResourceUpdates() {
	defer close(s.resourceSubsClosed)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		s.resourceSubscribers.Range(func(key, _ any) bool {
			uri, _ := key.(string)

			s.log(fmt.Sprintf("simulateResourceUpdates: Resource %s updated", uri), mcp.LogLevelDebug)

			select {
			case s.updateResourceSubs <- uri:
			case <-s.done:
				return false
			}

			return true
		})
	}
}
