package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// InitializationOptions describes the identity this server presents during
// the handshake. The values are fixed at session construction and echoed in
// every initialize result.
type InitializationOptions struct {
	ServerInfo   Info
	Capabilities ServerCapabilities
	Instructions string
}

// RequestHandlerFunc processes a forwarded client request. The returned value
// is marshaled into the response result; a returned JSONRPCError is relayed
// to the client verbatim, any other error becomes an internal error response.
// The session is passed in so handlers can invoke its outbound operations
// mid-request.
type RequestHandlerFunc func(ctx context.Context, sess *ServerSession, msg JSONRPCMessage) (any, error)

// NotificationHandlerFunc processes a forwarded client notification. There is
// no reply channel for notifications, so a returned error is only logged.
type NotificationHandlerFunc func(ctx context.Context, sess *ServerSession, msg JSONRPCMessage) error

// ServerSession is the server's half of one MCP conversation. It enforces the
// initialization handshake on inbound traffic, forwards post-handshake
// messages to the registered handlers, and exposes the typed operations a
// server may direct at its client.
//
// Inbound handling is sequential: the transport pump delivers one message at
// a time, so HandleRequest and HandleNotification never run concurrently with
// each other. Outbound operations have no such restriction and may be called
// from any goroutine at any time.
type ServerSession struct {
	transport TransportSession
	opts      InitializationOptions
	guard     lifecycleGuard
	logger    *slog.Logger

	requestHandler      RequestHandlerFunc
	notificationHandler NotificationHandlerFunc
}

// ServerSessionOption customizes a ServerSession at construction.
type ServerSessionOption func(*ServerSession)

// WithSessionLogger sets the logger the session and its transport use.
func WithSessionLogger(logger *slog.Logger) ServerSessionOption {
	return func(s *ServerSession) {
		s.logger = logger
	}
}

// WithRequestHandler registers the handler that receives post-handshake
// client requests. Without one, every forwarded request is answered with a
// method-not-found error.
func WithRequestHandler(h RequestHandlerFunc) ServerSessionOption {
	return func(s *ServerSession) {
		s.requestHandler = h
	}
}

// WithNotificationHandler registers the handler that receives post-handshake
// client notifications.
func WithNotificationHandler(h NotificationHandlerFunc) ServerSessionOption {
	return func(s *ServerSession) {
		s.notificationHandler = h
	}
}

// NewServerSession wires a session over the given transport. The session
// starts uninitialized and stays that way until the client completes the
// initialize handshake.
func NewServerSession(transport TransportSession, opts InitializationOptions, options ...ServerSessionOption) *ServerSession {
	s := &ServerSession{
		transport: transport,
		opts:      opts,
		logger:    slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With(
		slog.String("package", "mcp"),
		slog.String("sessionID", transport.ID()),
	)
	return s
}

// ID returns the unique identifier of the underlying transport session.
func (s *ServerSession) ID() string { return s.transport.ID() }

// HandleRequest dispatches one inbound client request. Handshake requests are
// answered by the session itself; anything else is checked against the
// lifecycle state and either rejected with a protocol error response or
// forwarded to the request handler. Every request produces exactly one reply.
func (s *ServerSession) HandleRequest(ctx context.Context, msg JSONRPCMessage) error {
	action, err := s.guard.checkRequest(msg.Method)
	if err != nil {
		var oe *ProtocolOrderingError
		errors.As(err, &oe)
		s.logger.Warn("request before initialization",
			slog.String("method", msg.Method), slog.String("state", oe.State))
		return s.transport.Reply(ctx, JSONRPCMessage{
			ID: msg.ID,
			Error: &JSONRPCError{
				Code:    JSONRPCNotInitializedCode,
				Message: "server not initialized",
				Data:    map[string]any{"method": oe.Method, "state": oe.State},
			},
		})
	}

	if action == actionHandshake {
		return s.replyInitialize(ctx, msg)
	}

	if s.requestHandler == nil {
		return s.transport.Reply(ctx, JSONRPCMessage{
			ID: msg.ID,
			Error: &JSONRPCError{
				Code:    JSONRPCMethodNotFoundCode,
				Message: fmt.Sprintf("method not found: %s", msg.Method),
			},
		})
	}

	result, err := s.requestHandler(ctx, s, msg)
	if err != nil {
		var jsonErr JSONRPCError
		if !errors.As(err, &jsonErr) {
			jsonErr = JSONRPCError{
				Code:    JSONRPCInternalErrorCode,
				Message: err.Error(),
			}
		}
		return s.transport.Reply(ctx, JSONRPCMessage{ID: msg.ID, Error: &jsonErr})
	}

	resBs, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result for %s: %w", msg.Method, err)
	}
	return s.transport.Reply(ctx, JSONRPCMessage{ID: msg.ID, Result: resBs})
}

// HandleNotification dispatches one inbound client notification. The
// initialized acknowledgment completes the handshake and is absorbed here;
// other notifications are forwarded once the handshake is done. Premature
// notifications have no reply channel, so the ordering error is returned to
// the caller instead of the peer.
func (s *ServerSession) HandleNotification(ctx context.Context, msg JSONRPCMessage) error {
	action, err := s.guard.checkNotification(msg.Method)
	if err != nil {
		return err
	}
	if action == actionHandshake {
		return nil
	}

	if s.notificationHandler == nil {
		return nil
	}
	return s.notificationHandler(ctx, s, msg)
}

func (s *ServerSession) replyInitialize(ctx context.Context, msg JSONRPCMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.transport.Reply(ctx, JSONRPCMessage{
				ID: msg.ID,
				Error: &JSONRPCError{
					Code:    JSONRPCInvalidParamsCode,
					Message: fmt.Sprintf("invalid initialize params: %s", err),
				},
			})
		}
	}
	s.logger.Info("initialize requested",
		slog.String("clientName", params.ClientInfo.Name),
		slog.String("clientProtocolVersion", params.ProtocolVersion))

	resBs, err := json.Marshal(initializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    s.opts.Capabilities,
		ServerInfo:      s.opts.ServerInfo,
		Instructions:    s.opts.Instructions,
	})
	if err != nil {
		return fmt.Errorf("marshal initialize result: %w", err)
	}
	return s.transport.Reply(ctx, JSONRPCMessage{ID: msg.ID, Result: resBs})
}

// Ping checks that the client is alive. It blocks until the client answers or
// the session closes.
func (s *ServerSession) Ping(ctx context.Context) error {
	res, err := s.transport.SendRequest(ctx, JSONRPCMessage{Method: MethodPing})
	if err != nil {
		return err
	}
	if res.Error != nil {
		return res.Error
	}
	return nil
}

// ListRoots asks the client for its current root list.
func (s *ServerSession) ListRoots(ctx context.Context) (RootList, error) {
	res, err := s.transport.SendRequest(ctx, JSONRPCMessage{Method: MethodRootsList})
	if err != nil {
		return RootList{}, err
	}
	if res.Error != nil {
		return RootList{}, res.Error
	}

	var roots RootList
	if err := json.Unmarshal(res.Result, &roots); err != nil {
		return RootList{}, fmt.Errorf("unmarshal roots list: %w", err)
	}
	return roots, nil
}

// CreateMessage asks the client to sample a message from its language model.
func (s *ServerSession) CreateMessage(ctx context.Context, params SamplingParams) (SamplingResult, error) {
	paramsBs, err := json.Marshal(params)
	if err != nil {
		return SamplingResult{}, fmt.Errorf("marshal sampling params: %w", err)
	}

	res, err := s.transport.SendRequest(ctx, JSONRPCMessage{
		Method: MethodSamplingCreateMessage,
		Params: paramsBs,
	})
	if err != nil {
		return SamplingResult{}, err
	}
	if res.Error != nil {
		return SamplingResult{}, res.Error
	}

	var result SamplingResult
	if err := json.Unmarshal(res.Result, &result); err != nil {
		return SamplingResult{}, fmt.Errorf("unmarshal sampling result: %w", err)
	}
	return result, nil
}

// LogMessage streams a log entry to the client.
func (s *ServerSession) LogMessage(ctx context.Context, params LogParams) error {
	return s.notify(ctx, MethodNotificationsMessage, params)
}

// ResourceUpdated tells the client that a resource it subscribed to changed.
func (s *ServerSession) ResourceUpdated(ctx context.Context, uri string) error {
	return s.notify(ctx, MethodNotificationsResourcesUpdated, resourceUpdatedParams{URI: uri})
}

// Progress reports progress on a long-running operation the client is
// tracking through a progress token.
func (s *ServerSession) Progress(ctx context.Context, params ProgressParams) error {
	return s.notify(ctx, MethodNotificationsProgress, params)
}

// PromptListChanged tells the client the prompt list changed.
func (s *ServerSession) PromptListChanged(ctx context.Context) error {
	return s.notify(ctx, MethodNotificationsPromptsListChanged, nil)
}

// ResourceListChanged tells the client the resource list changed.
func (s *ServerSession) ResourceListChanged(ctx context.Context) error {
	return s.notify(ctx, MethodNotificationsResourcesListChanged, nil)
}

// ToolListChanged tells the client the tool list changed.
func (s *ServerSession) ToolListChanged(ctx context.Context) error {
	return s.notify(ctx, MethodNotificationsToolsListChanged, nil)
}

func (s *ServerSession) notify(ctx context.Context, method string, params any) error {
	msg := JSONRPCMessage{Method: method}
	if params != nil {
		paramsBs, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal %s params: %w", method, err)
		}
		msg.Params = paramsBs
	}
	return s.transport.SendNotification(ctx, msg)
}
