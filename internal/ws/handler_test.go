package ws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"callbridge/internal/calls"
	"callbridge/internal/sessions"
)

type fakeWsConn struct {
	mu     sync.Mutex
	wrote  []any
	closed bool
}

func (f *fakeWsConn) ReadMessage() (int, []byte, error) { return 0, nil, errors.New("not used") }

func (f *fakeWsConn) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wrote = append(f.wrote, v)
	return nil
}

func (f *fakeWsConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWsConn) messages() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]any, len(f.wrote))
	copy(out, f.wrote)
	return out
}

// waitFor polls until at least n messages were written.
func (f *fakeWsConn) waitFor(t *testing.T, n int) []any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		msgs := f.messages()
		if len(msgs) >= n {
			return msgs
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d messages, have %d", n, len(msgs))
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type fakeCallService struct {
	mu sync.Mutex

	startRec calls.CallRecord
	startErr error
	started  []string // destinations

	answered []string // callID:userID
	hungUp   []string

	answerErr error
	hangupErr error
}

func (f *fakeCallService) StartOutbound(ctx context.Context, userID, from, to string) (calls.CallRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, to)
	return f.startRec, f.startErr
}

func (f *fakeCallService) Answer(ctx context.Context, callID, userID string) (calls.ConnectDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, callID+":"+userID)
	return calls.ConnectDecision{ClientIdentity: userID}, f.answerErr
}

func (f *fakeCallService) Hangup(ctx context.Context, callID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hungUp = append(f.hungUp, callID)
	return f.hangupErr
}

func newTestHandler(t *testing.T) (*Handler, *fakeCallService, *sessions.Registry) {
	t.Helper()
	svc := &fakeCallService{}
	registry := sessions.NewRegistry()
	return NewHandler(svc, registry, nil), svc, registry
}

func TestHandleRegister(t *testing.T) {
	ctx := context.Background()
	h, _, registry := newTestHandler(t)
	conn := &fakeWsConn{}
	cl := newClient(conn)

	h.handleMessage(ctx, cl, []byte(`{"type":"register","userId":"user-1"}`))

	msgs := conn.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one reply, got %d", len(msgs))
	}
	ack, ok := msgs[0].(RegisterSuccess)
	if !ok || ack.UserID != "user-1" || ack.Type != KindRegisterSuccess {
		t.Fatalf("unexpected reply %+v", msgs[0])
	}
	if _, ok := registry.Lookup("user-1"); !ok {
		t.Fatalf("registration must land in the registry")
	}
}

func TestHandleRegisterMissingUserID(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newTestHandler(t)
	conn := &fakeWsConn{}
	cl := newClient(conn)

	h.handleMessage(ctx, cl, []byte(`{"type":"register"}`))
	msgs := conn.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one reply, got %d", len(msgs))
	}
	if e, ok := msgs[0].(ErrorMessage); !ok || e.Type != KindError {
		t.Fatalf("expected error reply, got %+v", msgs[0])
	}
}

func TestHandleInitiateCall(t *testing.T) {
	ctx := context.Background()
	h, svc, registry := newTestHandler(t)
	svc.startRec = calls.CallRecord{CallID: "call-1", Status: calls.CallStatusInitiated}

	conn := &fakeWsConn{}
	cl := newClient(conn)
	h.handleMessage(ctx, cl, []byte(`{"type":"register","userId":"user-1"}`))
	h.handleMessage(ctx, cl, []byte(`{"type":"initiate_call","to":"+15551234567"}`))

	msgs := conn.waitFor(t, 2)
	initiated, ok := msgs[1].(CallInitiated)
	if !ok || initiated.CallID != "call-1" || initiated.To != "+15551234567" {
		t.Fatalf("unexpected reply %+v", msgs[1])
	}
	if _, ok := registry.ResolveCallInitiator("call-1"); !ok {
		t.Fatalf("initiating connection must be bound to the call")
	}
}

func TestHandleInitiateCallFailure(t *testing.T) {
	ctx := context.Background()
	h, svc, _ := newTestHandler(t)
	svc.startRec = calls.CallRecord{CallID: "call-1", Status: calls.CallStatusFailed}
	svc.startErr = errors.New("carrier unreachable")

	conn := &fakeWsConn{}
	cl := newClient(conn)
	h.handleMessage(ctx, cl, []byte(`{"type":"register","userId":"user-1"}`))
	h.handleMessage(ctx, cl, []byte(`{"type":"initiate_call","to":"+15551234567"}`))

	msgs := conn.waitFor(t, 2)
	failed, ok := msgs[1].(CallFailed)
	if !ok || failed.CallID != "call-1" || failed.Reason == "" {
		t.Fatalf("unexpected reply %+v", msgs[1])
	}
}

func TestHandleInitiateCallRequiresRegistration(t *testing.T) {
	ctx := context.Background()
	h, svc, _ := newTestHandler(t)
	conn := &fakeWsConn{}
	cl := newClient(conn)

	h.handleMessage(ctx, cl, []byte(`{"type":"initiate_call","to":"+15551234567"}`))
	msgs := conn.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one reply, got %d", len(msgs))
	}
	if _, ok := msgs[0].(ErrorMessage); !ok {
		t.Fatalf("expected error reply, got %+v", msgs[0])
	}
	if len(svc.started) != 0 {
		t.Fatalf("unregistered connection must not place calls")
	}
}

func TestHandleAnswerAndHangup(t *testing.T) {
	ctx := context.Background()
	h, svc, _ := newTestHandler(t)
	conn := &fakeWsConn{}
	cl := newClient(conn)

	h.handleMessage(ctx, cl, []byte(`{"type":"register","userId":"user-1"}`))
	h.handleMessage(ctx, cl, []byte(`{"type":"answer_call","callId":"call-1"}`))
	h.handleMessage(ctx, cl, []byte(`{"type":"hangup","callId":"call-1"}`))

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.answered) != 1 || svc.answered[0] != "call-1:user-1" {
		t.Fatalf("unexpected answers %v", svc.answered)
	}
	if len(svc.hungUp) != 1 || svc.hungUp[0] != "call-1" {
		t.Fatalf("unexpected hangups %v", svc.hungUp)
	}
}

func TestHandleUnknownMessageType(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newTestHandler(t)
	conn := &fakeWsConn{}
	cl := newClient(conn)

	h.handleMessage(ctx, cl, []byte(`{"type":"dance"}`))
	h.handleMessage(ctx, cl, []byte(`not json`))

	msgs := conn.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected two error replies, got %d", len(msgs))
	}
	for _, m := range msgs {
		if _, ok := m.(ErrorMessage); !ok {
			t.Fatalf("expected error reply, got %+v", m)
		}
	}
}
