package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/tidwall/gjson"
)

// ErrSessionClosed is returned by outbound requests that were still waiting
// for a response when the underlying session ended. Callers that receive it
// must assume the request was never answered.
var ErrSessionClosed = errors.New("session closed")

// Session is a raw bidirectional message stream between the server and a
// single client. Implementations frame and transport messages; they do not
// interpret them.
type Session interface {
	// ID returns the unique identifier of the session.
	ID() string

	// Send transmits a message to the client. It blocks until the message is
	// accepted by the transport or ctx is done.
	Send(ctx context.Context, msg JSONRPCMessage) error

	// Messages yields raw inbound payloads in arrival order. The iterator
	// ends when the session is stopped or the peer disconnects.
	Messages() iter.Seq[[]byte]

	// Stop terminates the session and releases its resources.
	Stop()
}

// ServerTransport accepts client sessions. A transport may produce a single
// session over its lifetime (stdio) or many (SSE).
type ServerTransport interface {
	// Sessions yields each new client session as it connects. The iterator
	// ends when the transport shuts down.
	Sessions() iter.Seq[Session]

	// Shutdown stops accepting sessions and closes the existing ones. It
	// blocks until cleanup completes or ctx is done.
	Shutdown(ctx context.Context) error
}

// TransportSession is the message-passing surface a ServerSession talks to.
// It hides correlation: callers send requests and get matched responses back,
// without ever seeing the interleaved wire traffic.
type TransportSession interface {
	// ID returns the unique identifier of the underlying session.
	ID() string

	// SendRequest assigns the message a fresh request ID, transmits it, and
	// blocks until the matching response arrives, ctx is done, or the session
	// closes. A session that closes with the request still pending yields
	// ErrSessionClosed.
	SendRequest(ctx context.Context, msg JSONRPCMessage) (JSONRPCMessage, error)

	// SendNotification transmits a fire-and-forget message. It returns once
	// the transport accepts the payload.
	SendNotification(ctx context.Context, msg JSONRPCMessage) error

	// Reply transmits a response to a request received from the peer.
	Reply(ctx context.Context, msg JSONRPCMessage) error
}

// Receiver consumes the requests and notifications a wireSession extracts
// from the inbound stream. Messages are delivered one at a time in arrival
// order; a slow receiver delays everything behind it.
type Receiver interface {
	HandleRequest(ctx context.Context, msg JSONRPCMessage) error
	HandleNotification(ctx context.Context, msg JSONRPCMessage) error
}

// wireSession implements TransportSession over a raw Session. It owns the
// inbound pump and the table of in-flight outbound requests.
type wireSession struct {
	sess   Session
	logger *slog.Logger

	// pendingRequests maps an outbound request ID to the channel its waiting
	// caller blocks on. Entries are removed when the response arrives or the
	// session closes.
	pendingRequests cmap.ConcurrentMap[string, chan JSONRPCMessage]

	done      chan struct{}
	closeOnce sync.Once
}

func newWireSession(sess Session, logger *slog.Logger) *wireSession {
	return &wireSession{
		sess:            sess,
		logger:          logger.With(slog.String("sessionID", sess.ID())),
		pendingRequests: cmap.New[chan JSONRPCMessage](),
		done:            make(chan struct{}),
	}
}

func (w *wireSession) ID() string { return w.sess.ID() }

func (w *wireSession) SendRequest(ctx context.Context, msg JSONRPCMessage) (JSONRPCMessage, error) {
	reqID := uuid.New().String()
	msg.JSONRPC = JSONRPCVersion
	msg.ID = MustString(reqID)

	// Buffered so the pump never blocks handing over the response, even when
	// the caller already gave up on ctx.
	results := make(chan JSONRPCMessage, 1)
	w.pendingRequests.Set(reqID, results)
	defer w.pendingRequests.Remove(reqID)

	if err := w.sess.Send(ctx, msg); err != nil {
		return JSONRPCMessage{}, fmt.Errorf("send request %s: %w", msg.Method, err)
	}

	select {
	case <-ctx.Done():
		return JSONRPCMessage{}, ctx.Err()
	case <-w.done:
		return JSONRPCMessage{}, ErrSessionClosed
	case res := <-results:
		return res, nil
	}
}

func (w *wireSession) SendNotification(ctx context.Context, msg JSONRPCMessage) error {
	msg.JSONRPC = JSONRPCVersion
	msg.ID = ""
	if err := w.sess.Send(ctx, msg); err != nil {
		return fmt.Errorf("send notification %s: %w", msg.Method, err)
	}
	return nil
}

func (w *wireSession) Reply(ctx context.Context, msg JSONRPCMessage) error {
	msg.JSONRPC = JSONRPCVersion
	if err := w.sess.Send(ctx, msg); err != nil {
		return fmt.Errorf("send response: %w", err)
	}
	return nil
}

// listen consumes the raw inbound stream until it ends or ctx is done. Each
// payload is classified by envelope shape: a method with an ID is a request,
// a method without one is a notification, and an ID without a method is a
// response to one of our outbound requests. Requests and notifications are
// handed to the receiver synchronously, preserving arrival order.
func (w *wireSession) listen(ctx context.Context, receiver Receiver) {
	defer w.close()

	for payload := range w.sess.Messages() {
		if ctx.Err() != nil {
			return
		}

		if !gjson.ValidBytes(payload) {
			w.logger.Warn("discarding malformed payload", slog.String("payload", string(payload)))
			continue
		}

		// A literal null id counts as absent, so such messages classify as
		// notifications rather than requests.
		idValue := gjson.GetBytes(payload, "id")
		hasID := idValue.Exists() && idValue.Type != gjson.Null
		hasMethod := gjson.GetBytes(payload, "method").Exists()

		var msg JSONRPCMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			w.logger.Warn("discarding undecodable payload", slog.String("err", err.Error()))
			continue
		}

		switch {
		case hasMethod && hasID:
			if err := receiver.HandleRequest(ctx, msg); err != nil {
				w.logger.Error("handle request", slog.String("method", msg.Method), slog.String("err", err.Error()))
			}
		case hasMethod:
			if err := receiver.HandleNotification(ctx, msg); err != nil {
				w.logger.Error("handle notification", slog.String("method", msg.Method), slog.String("err", err.Error()))
			}
		case hasID:
			w.dispatchResponse(msg)
		default:
			w.logger.Warn("discarding message with neither id nor method", slog.String("payload", string(payload)))
		}
	}
}

func (w *wireSession) dispatchResponse(msg JSONRPCMessage) {
	results, ok := w.pendingRequests.Get(string(msg.ID))
	if !ok {
		w.logger.Warn("response with no pending request", slog.String("id", string(msg.ID)))
		return
	}
	results <- msg
}

// close wakes every caller still blocked in SendRequest. Safe to call more
// than once.
func (w *wireSession) close() {
	w.closeOnce.Do(func() {
		close(w.done)
	})
}
