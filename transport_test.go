package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"testing"
	"time"
)

// fakeRawSession is a raw Session fed by hand: inbound payloads go through the
// inbound channel, outbound messages come back out on the outbound channel.
type fakeRawSession struct {
	inbound  chan []byte
	outbound chan JSONRPCMessage
}

func newFakeRawSession() *fakeRawSession {
	return &fakeRawSession{
		inbound:  make(chan []byte, 16),
		outbound: make(chan JSONRPCMessage, 16),
	}
}

func (f *fakeRawSession) ID() string { return "raw-session" }

func (f *fakeRawSession) Send(ctx context.Context, msg JSONRPCMessage) error {
	select {
	case f.outbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeRawSession) Messages() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for payload := range f.inbound {
			if !yield(payload) {
				return
			}
		}
	}
}

func (f *fakeRawSession) Stop() {}

// sentMessage pulls the next outbound message or fails the test.
func (f *fakeRawSession) sentMessage(t *testing.T) JSONRPCMessage {
	t.Helper()
	select {
	case msg := <-f.outbound:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for outbound message")
		return JSONRPCMessage{}
	}
}

type fakeReceiver struct {
	requests      chan JSONRPCMessage
	notifications chan JSONRPCMessage
}

func newFakeReceiver() *fakeReceiver {
	return &fakeReceiver{
		requests:      make(chan JSONRPCMessage, 16),
		notifications: make(chan JSONRPCMessage, 16),
	}
}

func (f *fakeReceiver) HandleRequest(_ context.Context, msg JSONRPCMessage) error {
	f.requests <- msg
	return nil
}

func (f *fakeReceiver) HandleNotification(_ context.Context, msg JSONRPCMessage) error {
	f.notifications <- msg
	return nil
}

func startWireSession(t *testing.T) (*wireSession, *fakeRawSession, *fakeReceiver) {
	t.Helper()

	raw := newFakeRawSession()
	receiver := newFakeReceiver()
	ws := newWireSession(raw, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ws.listen(ctx, receiver)

	return ws, raw, receiver
}

func TestWireSession_RequestResponseCorrelation(t *testing.T) {
	ws, raw, _ := startWireSession(t)
	defer close(raw.inbound)

	resultCh := make(chan JSONRPCMessage, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := ws.SendRequest(context.Background(), JSONRPCMessage{Method: MethodPing})
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- res
	}()

	sent := raw.sentMessage(t)
	if sent.Method != MethodPing {
		t.Errorf("sent method = %s, want %s", sent.Method, MethodPing)
	}
	if sent.ID == "" {
		t.Fatal("request went out without an ID")
	}
	if sent.JSONRPC != JSONRPCVersion {
		t.Errorf("jsonrpc = %s, want %s", sent.JSONRPC, JSONRPCVersion)
	}

	raw.inbound <- []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":"%s","result":{"ok":true}}`, sent.ID))

	select {
	case res := <-resultCh:
		if res.ID != sent.ID {
			t.Errorf("response ID = %s, want %s", res.ID, sent.ID)
		}
	case err := <-errCh:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for response")
	}
}

func TestWireSession_IndependentConcurrentRequests(t *testing.T) {
	ws, raw, _ := startWireSession(t)
	defer close(raw.inbound)

	type outcome struct {
		method string
		res    JSONRPCMessage
		err    error
	}
	outcomes := make(chan outcome, 2)
	sendReq := func(method string) {
		res, err := ws.SendRequest(context.Background(), JSONRPCMessage{Method: method})
		outcomes <- outcome{method: method, res: res, err: err}
	}
	go sendReq(MethodPing)
	go sendReq(MethodRootsList)

	first := raw.sentMessage(t)
	second := raw.sentMessage(t)
	if first.ID == second.ID {
		t.Fatal("concurrent requests share an ID")
	}

	byMethod := map[string]MustString{
		first.Method:  first.ID,
		second.Method: second.ID,
	}

	// Answer in reverse arrival order; each caller must still get its own
	// response.
	raw.inbound <- []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":"%s","result":{"which":"second"}}`, second.ID))
	raw.inbound <- []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":"%s","result":{"which":"first"}}`, first.ID))

	for i := 0; i < 2; i++ {
		select {
		case out := <-outcomes:
			if out.err != nil {
				t.Fatalf("%s: unexpected error: %v", out.method, out.err)
			}
			if out.res.ID != byMethod[out.method] {
				t.Errorf("%s: response ID = %s, want %s", out.method, out.res.ID, byMethod[out.method])
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for outcomes")
		}
	}
}

func TestWireSession_PendingRequestUnblocksOnClose(t *testing.T) {
	ws, raw, _ := startWireSession(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := ws.SendRequest(context.Background(), JSONRPCMessage{Method: MethodPing})
		errCh <- err
	}()

	raw.sentMessage(t)

	// The session ends with the request still pending.
	close(raw.inbound)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrSessionClosed) {
			t.Errorf("expected ErrSessionClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pending request did not unblock on close")
	}
}

func TestWireSession_RequestContextCancellation(t *testing.T) {
	ws, raw, _ := startWireSession(t)
	defer close(raw.inbound)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := ws.SendRequest(ctx, JSONRPCMessage{Method: MethodPing})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
	raw.sentMessage(t)
}

func TestWireSession_InboundClassification(t *testing.T) {
	_, raw, receiver := startWireSession(t)
	defer close(raw.inbound)

	raw.inbound <- []byte(`{"jsonrpc":"2.0","id":"1","method":"tools/list"}`)
	raw.inbound <- []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)

	select {
	case msg := <-receiver.requests:
		if msg.Method != MethodToolsList {
			t.Errorf("request method = %s, want %s", msg.Method, MethodToolsList)
		}
		if msg.ID != MustString("1") {
			t.Errorf("request ID = %s, want 1", msg.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for request")
	}

	select {
	case msg := <-receiver.notifications:
		if msg.Method != MethodNotificationsInitialized {
			t.Errorf("notification method = %s, want %s", msg.Method, MethodNotificationsInitialized)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWireSession_NullIDClassifiesAsNotification(t *testing.T) {
	_, raw, receiver := startWireSession(t)
	defer close(raw.inbound)

	// Some clients emit "id": null on notifications; that must not make the
	// message a request.
	raw.inbound <- []byte(`{"jsonrpc":"2.0","id":null,"method":"notifications/initialized"}`)

	select {
	case msg := <-receiver.notifications:
		if msg.Method != MethodNotificationsInitialized {
			t.Errorf("notification method = %s, want %s", msg.Method, MethodNotificationsInitialized)
		}
		if msg.ID != "" {
			t.Errorf("notification carries ID %s", msg.ID)
		}
	case msg := <-receiver.requests:
		t.Fatalf("null-id message classified as request: %+v", msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for null-id notification")
	}
}

func TestWireSession_MalformedPayloadIsSkipped(t *testing.T) {
	_, raw, receiver := startWireSession(t)
	defer close(raw.inbound)

	raw.inbound <- []byte(`{not json`)
	raw.inbound <- []byte(`{"jsonrpc":"2.0"}`)
	raw.inbound <- []byte(`{"jsonrpc":"2.0","id":"1","method":"ping"}`)

	// The garbage before it must not break delivery of the valid request.
	select {
	case msg := <-receiver.requests:
		if msg.Method != MethodPing {
			t.Errorf("request method = %s, want %s", msg.Method, MethodPing)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for request after malformed payloads")
	}
}

func TestWireSession_UnsolicitedResponseIsDropped(t *testing.T) {
	_, raw, receiver := startWireSession(t)
	defer close(raw.inbound)

	raw.inbound <- []byte(`{"jsonrpc":"2.0","id":"nobody-asked","result":{}}`)
	raw.inbound <- []byte(`{"jsonrpc":"2.0","id":"1","method":"ping"}`)

	select {
	case msg := <-receiver.requests:
		if msg.Method != MethodPing {
			t.Errorf("request method = %s, want %s", msg.Method, MethodPing)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for request after unsolicited response")
	}
}

func TestWireSession_NotificationHasNoID(t *testing.T) {
	raw := newFakeRawSession()
	ws := newWireSession(raw, slog.Default())

	err := ws.SendNotification(context.Background(), JSONRPCMessage{
		Method: MethodNotificationsToolsListChanged,
		ID:     MustString("stale"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := raw.sentMessage(t)
	if sent.ID != "" {
		t.Errorf("notification carries ID %s", sent.ID)
	}
	if sent.JSONRPC != JSONRPCVersion {
		t.Errorf("jsonrpc = %s, want %s", sent.JSONRPC, JSONRPCVersion)
	}
}

func TestWireSession_ReplyKeepsRequestID(t *testing.T) {
	raw := newFakeRawSession()
	ws := newWireSession(raw, slog.Default())

	err := ws.Reply(context.Background(), JSONRPCMessage{
		ID:     MustString("42"),
		Result: json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := raw.sentMessage(t)
	if sent.ID != MustString("42") {
		t.Errorf("reply ID = %s, want 42", sent.ID)
	}
}
