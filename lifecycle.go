package mcp

import "fmt"

// lifecycleState tracks how far a session has progressed through the
// initialization handshake. It only ever moves forward: once a session is
// initialized there is no path back to an earlier state.
type lifecycleState int

const (
	stateNotInitialized lifecycleState = iota
	stateInitializing
	stateInitialized
)

// inboundAction is the lifecycle guard's verdict on an inbound message that
// passed the ordering check.
type inboundAction int

const (
	// actionHandshake marks handshake traffic: the initialize request, which
	// owes a handshake reply, or the initialized notification, which is
	// absorbed by the guard itself.
	actionHandshake inboundAction = iota
	// actionForward marks domain traffic to hand to the registered handler.
	actionForward
)

// lifecycleGuard owns the initialization state machine of a single session. It
// classifies every inbound message as handshake or domain traffic and rejects
// domain traffic that arrives before the handshake completed.
//
// The guard is not safe for concurrent use. Inbound messages are delivered to
// a session one at a time in arrival order, and the guard must only be touched
// from that delivery path.
type lifecycleGuard struct {
	state lifecycleState
}

// ProtocolOrderingError reports that the peer sent domain traffic before the
// initialization handshake completed. For requests the session answers the
// peer with a protocol error; for notifications there is no reply channel, so
// the error is surfaced locally instead.
type ProtocolOrderingError struct {
	// Method is the method name of the offending message.
	Method string
	// State describes the handshake progress at the time the message arrived.
	State string
}

func (e *ProtocolOrderingError) Error() string {
	return fmt.Sprintf("received %q before initialization was complete (state: %s)", e.Method, e.State)
}

// checkRequest classifies an inbound request. The initialize request advances
// a fresh session to the initializing state and is always answered, even when
// repeated. Any other request is rejected until the handshake completed.
func (g *lifecycleGuard) checkRequest(method string) (inboundAction, error) {
	if method == MethodInitialize {
		// A repeated initialize is re-answered without regressing the state.
		if g.state == stateNotInitialized {
			g.state = stateInitializing
		}
		return actionHandshake, nil
	}

	if g.state != stateInitialized {
		return 0, &ProtocolOrderingError{Method: method, State: g.state.String()}
	}
	return actionForward, nil
}

// checkNotification classifies an inbound notification. The initialized
// notification completes the handshake and is tolerated as a no-op once the
// session is already initialized. Any other notification is rejected until
// the handshake completed.
func (g *lifecycleGuard) checkNotification(method string) (inboundAction, error) {
	if method == MethodNotificationsInitialized {
		g.state = stateInitialized
		return actionHandshake, nil
	}

	if g.state != stateInitialized {
		return 0, &ProtocolOrderingError{Method: method, State: g.state.String()}
	}
	return actionForward, nil
}

func (s lifecycleState) String() string {
	switch s {
	case stateNotInitialized:
		return "not-initialized"
	case stateInitializing:
		return "initializing"
	case stateInitialized:
		return "initialized"
	default:
		return "unknown"
	}
}
