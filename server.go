package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"
)

// PromptListUpdater provides an iterator that emits whenever the server's
// prompt list changes. Each emission is broadcast to every connected client
// as a prompts list-changed notification.
type PromptListUpdater interface {
	PromptListUpdates() iter.Seq[struct{}]
}

// ResourceListUpdater provides an iterator that emits whenever the server's
// resource list changes.
type ResourceListUpdater interface {
	ResourceListUpdates() iter.Seq[struct{}]
}

// ToolListUpdater provides an iterator that emits whenever the server's tool
// list changes.
type ToolListUpdater interface {
	ToolListUpdates() iter.Seq[struct{}]
}

// ResourceUpdater provides an iterator that emits the URI of each resource
// that changed. Each emission is broadcast as a resource-updated
// notification.
type ResourceUpdater interface {
	ResourceUpdates() iter.Seq[string]
}

// LogStreamer provides an iterator of log entries to stream to connected
// clients as message notifications.
type LogStreamer interface {
	LogStreams() iter.Seq[LogParams]
}

// ServerOption represents the options for the server.
type ServerOption func(*Server)

// Server accepts client sessions from a transport and runs the protocol on
// each of them: it performs the initialization handshake, forwards requests
// and notifications to the registered handlers, keeps sessions alive with
// periodic pings, and fans updater events out to every connected client.
type Server struct {
	info         Info
	instructions string
	capabilities ServerCapabilities
	transport    ServerTransport

	requestHandler      RequestHandlerFunc
	notificationHandler NotificationHandlerFunc

	promptListUpdater   PromptListUpdater
	resourceListUpdater ResourceListUpdater
	toolListUpdater     ToolListUpdater
	resourceUpdater     ResourceUpdater
	logStreamer         LogStreamer

	pingInterval         time.Duration
	pingTimeout          time.Duration
	pingTimeoutThreshold int
	sendTimeout          time.Duration

	logger *slog.Logger

	onClientConnected    func(string)
	onClientDisconnected func(string)

	sessionsWaitGroup *sync.WaitGroup

	done               chan struct{}
	promptListClosed   chan struct{}
	resourceListClosed chan struct{}
	resourceClosed     chan struct{}
	toolListClosed     chan struct{}
	logClosed          chan struct{}
}

// broadcastFunc delivers one updater event to one connected session through
// its typed outbound operations.
type broadcastFunc func(ctx context.Context, sess *ServerSession) error

var (
	defaultServerPingInterval         = 30 * time.Second
	defaultServerPingTimeout          = 30 * time.Second
	defaultServerPingTimeoutThreshold = 3
	defaultServerSendTimeout          = 30 * time.Second
)

// NewServer creates a server with the given identity that accepts sessions
// from transport.
func NewServer(info Info, transport ServerTransport, options ...ServerOption) Server {
	s := Server{
		info:               info,
		transport:          transport,
		logger:             slog.Default(),
		sessionsWaitGroup:  &sync.WaitGroup{},
		done:               make(chan struct{}),
		promptListClosed:   make(chan struct{}),
		resourceListClosed: make(chan struct{}),
		resourceClosed:     make(chan struct{}),
		toolListClosed:     make(chan struct{}),
		logClosed:          make(chan struct{}),
	}
	for _, opt := range options {
		opt(&s)
	}
	if s.pingInterval == 0 {
		s.pingInterval = defaultServerPingInterval
	}
	if s.pingTimeout == 0 {
		s.pingTimeout = defaultServerPingTimeout
	}
	if s.pingTimeoutThreshold == 0 {
		s.pingTimeoutThreshold = defaultServerPingTimeoutThreshold
	}
	if s.sendTimeout == 0 {
		s.sendTimeout = defaultServerSendTimeout
	}

	// Updaters imply the matching declared capability even when the caller
	// didn't spell it out.

	if s.promptListUpdater != nil {
		if s.capabilities.Prompts == nil {
			s.capabilities.Prompts = &PromptsCapability{}
		}
		s.capabilities.Prompts.ListChanged = true
	}
	if s.resourceListUpdater != nil || s.resourceUpdater != nil {
		if s.capabilities.Resources == nil {
			s.capabilities.Resources = &ResourcesCapability{}
		}
		if s.resourceListUpdater != nil {
			s.capabilities.Resources.ListChanged = true
		}
		if s.resourceUpdater != nil {
			s.capabilities.Resources.Subscribe = true
		}
	}
	if s.toolListUpdater != nil {
		if s.capabilities.Tools == nil {
			s.capabilities.Tools = &ToolsCapability{}
		}
		s.capabilities.Tools.ListChanged = true
	}
	if s.logStreamer != nil && s.capabilities.Logging == nil {
		s.capabilities.Logging = &LoggingCapability{}
	}

	return s
}

// WithServerCapabilities declares the capability set announced in the
// initialization result.
func WithServerCapabilities(capabilities ServerCapabilities) ServerOption {
	return func(s *Server) {
		s.capabilities = capabilities
	}
}

// WithServerRequestHandler registers the handler that receives every
// post-handshake client request.
func WithServerRequestHandler(h RequestHandlerFunc) ServerOption {
	return func(s *Server) {
		s.requestHandler = h
	}
}

// WithServerNotificationHandler registers the handler that receives every
// post-handshake client notification.
func WithServerNotificationHandler(h NotificationHandlerFunc) ServerOption {
	return func(s *Server) {
		s.notificationHandler = h
	}
}

// WithPromptListUpdater returns a ServerOption that configures the prompt list updater implementation.
func WithPromptListUpdater(updater PromptListUpdater) ServerOption {
	return func(s *Server) {
		s.promptListUpdater = updater
	}
}

// WithResourceListUpdater returns a ServerOption that configures the resource list updater implementation.
func WithResourceListUpdater(updater ResourceListUpdater) ServerOption {
	return func(s *Server) {
		s.resourceListUpdater = updater
	}
}

// WithToolListUpdater returns a ServerOption that configures the tool list updater implementation.
func WithToolListUpdater(updater ToolListUpdater) ServerOption {
	return func(s *Server) {
		s.toolListUpdater = updater
	}
}

// WithResourceUpdater returns a ServerOption that configures the resource updater implementation.
func WithResourceUpdater(updater ResourceUpdater) ServerOption {
	return func(s *Server) {
		s.resourceUpdater = updater
	}
}

// WithLogStreamer returns a ServerOption that configures the log streamer implementation.
func WithLogStreamer(streamer LogStreamer) ServerOption {
	return func(s *Server) {
		s.logStreamer = streamer
	}
}

// WithInstructions returns a ServerOption that configures the server instructions.
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// WithServerPingInterval returns a ServerOption that configures the server's ping interval.
func WithServerPingInterval(interval time.Duration) ServerOption {
	return func(s *Server) {
		s.pingInterval = interval
	}
}

// WithServerPingTimeout returns a ServerOption that configures the server's ping timeout.
func WithServerPingTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.pingTimeout = timeout
	}
}

// WithServerPingTimeoutThreshold sets the ping timeout threshold for the server.
// If the number of consecutive ping timeouts exceeds the threshold, the server will close the session.
func WithServerPingTimeoutThreshold(threshold int) ServerOption {
	return func(s *Server) {
		s.pingTimeoutThreshold = threshold
	}
}

// WithServerSendTimeout returns a ServerOption that configures the server's send timeout.
func WithServerSendTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.sendTimeout = timeout
	}
}

// WithServerOnClientConnected sets the callback for when a client connects.
// The callback's parameter is the ID of the session.
func WithServerOnClientConnected(onClientConnected func(string)) ServerOption {
	return func(s *Server) {
		s.onClientConnected = onClientConnected
	}
}

// WithServerOnClientDisconnected sets the callback for when a client disconnects.
// The callback's parameter is the ID of the session.
func WithServerOnClientDisconnected(onClientDisconnected func(string)) ServerOption {
	return func(s *Server) {
		s.onClientDisconnected = onClientDisconnected
	}
}

// WithServerLogger sets the logger for the server.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger.With(
			slog.String("package", "mcp"),
			slog.String("component", "server"),
		)
	}
}

// Serve starts accepting sessions from the transport and runs the protocol
// on each until the server is shut down.
//
// Serve blocks until the server is shut down.
func (s Server) Serve() {
	broadcasts := make(chan broadcastFunc, 10)

	if s.promptListUpdater != nil {
		go s.listenListUpdates(s.promptListUpdater.PromptListUpdates(),
			(*ServerSession).PromptListChanged, broadcasts, s.promptListClosed)
	} else {
		close(s.promptListClosed)
	}

	if s.resourceListUpdater != nil {
		go s.listenListUpdates(s.resourceListUpdater.ResourceListUpdates(),
			(*ServerSession).ResourceListChanged, broadcasts, s.resourceListClosed)
	} else {
		close(s.resourceListClosed)
	}

	if s.toolListUpdater != nil {
		go s.listenListUpdates(s.toolListUpdater.ToolListUpdates(),
			(*ServerSession).ToolListChanged, broadcasts, s.toolListClosed)
	} else {
		close(s.toolListClosed)
	}

	if s.resourceUpdater != nil {
		go s.listenResourceUpdates(broadcasts)
	} else {
		close(s.resourceClosed)
	}

	if s.logStreamer != nil {
		go s.listenLogs(broadcasts)
	} else {
		close(s.logClosed)
	}

	s.start(broadcasts)
}

// Shutdown gracefully shuts down the server by terminating all active sessions and cleaning up resources.
// It returns an error if the shutdown process fails or if the context is cancelled before the shutdown completes.
func (s Server) Shutdown(ctx context.Context) error {
	// Signal the server to shutdown and terminates all sessions
	close(s.done)

	// Wait for all sessions to finish
	s.sessionsWaitGroup.Wait()

	// Close the transport so the Sessions loop in the start function breaks.
	if err := s.transport.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown transport: %w", err)
	}

	// Wait for all updater goroutines to finish

	select {
	case <-ctx.Done():
		return fmt.Errorf("failed to close PromptListUpdater: %w", ctx.Err())
	case <-s.promptListClosed:
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("failed to close ResourceListUpdater: %w", ctx.Err())
	case <-s.resourceListClosed:
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("failed to close ToolListUpdater: %w", ctx.Err())
	case <-s.toolListClosed:
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("failed to close ResourceUpdater: %w", ctx.Err())
	case <-s.resourceClosed:
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("failed to close LogStreamer: %w", ctx.Err())
	case <-s.logClosed:
	}

	return nil
}

func (s Server) start(broadcasts <-chan broadcastFunc) {
	// These channels keep the broadcaster's session map in sync with the
	// sessions coming and going below.
	sessions := make(chan *ServerSession, 5)
	removedSessions := make(chan string, 5)

	go s.broadcast(broadcasts, sessions, removedSessions)

	// This loop would break when the transport is closed.
	for sess := range s.transport.Sessions() {
		ws := newWireSession(sess, s.logger)
		ss := NewServerSession(ws, InitializationOptions{
			ServerInfo:   s.info,
			Capabilities: s.capabilities,
			Instructions: s.instructions,
		},
			WithSessionLogger(s.logger),
			WithRequestHandler(s.requestHandler),
			WithNotificationHandler(s.notificationHandler),
		)

		// Updates the broadcaster about new sessions
		sessions <- ss

		s.sessionsWaitGroup.Add(1)

		// This session closes itself when consecutive pings fail beyond the
		// threshold or the server shuts down.
		go func() {
			defer s.sessionsWaitGroup.Done()

			if s.onClientConnected != nil {
				s.onClientConnected(sess.ID())
			}

			listenCtx, listenCancel := context.WithCancel(context.Background())
			listenDone := make(chan struct{})
			go func() {
				defer close(listenDone)
				ws.listen(listenCtx, ss)
			}()

			s.keepalive(ss, sess, listenDone)
			listenCancel()
			<-listenDone

			if s.onClientDisconnected != nil {
				s.onClientDisconnected(sess.ID())
			}

			// Notify the broadcaster about removed sessions
			select {
			case <-s.done:
			case removedSessions <- sess.ID():
			}
		}()
	}
}

// keepalive pings the client on an interval and stops the raw session once
// consecutive failures pass the threshold, the inbound stream ends, or the
// server shuts down.
func (s Server) keepalive(ss *ServerSession, sess Session, listenDone <-chan struct{}) {
	defer sess.Stop()

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	failedPings := 0

	for {
		if failedPings > s.pingTimeoutThreshold {
			s.logger.Warn("too many pings failed, closing session",
				slog.String("sessionID", sess.ID()))
			return
		}

		select {
		case <-s.done:
			return
		case <-listenDone:
			return
		case <-pingTicker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.pingTimeout)
		err := ss.Ping(ctx)
		cancel()

		if err != nil {
			if errors.Is(err, ErrSessionClosed) {
				return
			}
			s.logger.Warn("failed to ping client",
				slog.String("sessionID", sess.ID()),
				slog.String("err", err.Error()))
			failedPings++
			continue
		}
		failedPings = 0
	}
}

func (s Server) broadcast(messages <-chan broadcastFunc, sessions <-chan *ServerSession, removedSession <-chan string) {
	// Store all active sessions in a map for easy lookup
	sessMap := make(map[string]*ServerSession)

	for {
		select {
		case <-s.done:
			return
		case sess := <-sessions:
			sessMap[sess.ID()] = sess
		case sessID := <-removedSession:
			delete(sessMap, sessID)
		case send := <-messages:
			ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
			// Broadcast the event to all active sessions
			for _, sess := range sessMap {
				if err := send(ctx, sess); err != nil {
					s.logger.Error("failed to broadcast message",
						slog.String("sessionID", sess.ID()),
						slog.String("err", err.Error()))
				}
			}
			cancel()
		}
	}
}

func (s Server) listenListUpdates(
	updates iter.Seq[struct{}],
	notify func(*ServerSession, context.Context) error,
	messages chan<- broadcastFunc,
	closed chan<- struct{},
) {
	defer close(closed)

	for range updates {
		send := func(ctx context.Context, sess *ServerSession) error {
			return notify(sess, ctx)
		}
		select {
		case <-s.done:
			return
		case messages <- send:
		}
	}
}

func (s Server) listenResourceUpdates(messages chan<- broadcastFunc) {
	defer close(s.resourceClosed)

	for uri := range s.resourceUpdater.ResourceUpdates() {
		send := func(ctx context.Context, sess *ServerSession) error {
			return sess.ResourceUpdated(ctx, uri)
		}
		select {
		case <-s.done:
			return
		case messages <- send:
		}
	}
}

func (s Server) listenLogs(messages chan<- broadcastFunc) {
	defer close(s.logClosed)

	for params := range s.logStreamer.LogStreams() {
		// Validate eagerly so a bad entry is reported once, not per session.
		if _, err := json.Marshal(params); err != nil {
			s.logger.Error("failed to marshal log params", "err", err)
			continue
		}
		send := func(ctx context.Context, sess *ServerSession) error {
			return sess.LogMessage(ctx, params)
		}
		select {
		case <-s.done:
			return
		case messages <- send:
		}
	}
}
