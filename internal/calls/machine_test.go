package calls

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type sinkRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *sinkRecorder) CallStatusChanged(ctx context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *sinkRecorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func newTestMachine(t *testing.T, window time.Duration) (*Machine, *MemoryStore, *sinkRecorder) {
	t.Helper()
	store := NewMemoryStore()
	sink := &sinkRecorder{}
	m := NewMachine(store, sink, nil, window)
	m.SetClock(func() time.Time { return testEpoch })
	return m, store, sink
}

func TestMachineApplyEmitsOnTransition(t *testing.T) {
	ctx := context.Background()
	m, store, sink := newTestMachine(t, time.Minute)
	if err := store.Create(ctx, newTestRecord("call-1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec, applied, err := m.Apply(ctx, ByInternal("call-1"), CallStatusRinging, "", 0)
	if err != nil || !applied {
		t.Fatalf("apply ringing: applied=%v err=%v", applied, err)
	}
	if rec.Status != CallStatusRinging {
		t.Fatalf("expected ringing, got %s", rec.Status)
	}

	events := sink.snapshot()
	if len(events) != 1 || events[0].Status != CallStatusRinging || events[0].CallID != "call-1" {
		t.Fatalf("unexpected events %+v", events)
	}

	// A no-op transition emits nothing.
	_, applied, err = m.Apply(ctx, ByInternal("call-1"), CallStatusRinging, "", 0)
	if err != nil || applied {
		t.Fatalf("duplicate ringing: applied=%v err=%v", applied, err)
	}
	if got := len(sink.snapshot()); got != 1 {
		t.Fatalf("no-op must not emit, have %d events", got)
	}
}

func TestMachineApplyProviderStatus(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestMachine(t, time.Minute)
	if err := store.Create(ctx, newTestRecord("call-1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec, applied, err := m.ApplyProviderStatus(ctx, ByInternal("call-1"), "busy", 0)
	if err != nil || !applied {
		t.Fatalf("busy: applied=%v err=%v", applied, err)
	}
	if rec.Status != CallStatusFailed {
		t.Fatalf("busy must map to failed, got %s", rec.Status)
	}
	if rec.ErrorDetail != "provider reported busy" {
		t.Fatalf("unexpected error detail %q", rec.ErrorDetail)
	}
}

func TestMachineApplyProviderStatusUnknown(t *testing.T) {
	ctx := context.Background()
	m, store, sink := newTestMachine(t, time.Minute)
	if err := store.Create(ctx, newTestRecord("call-1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, applied, err := m.ApplyProviderStatus(ctx, ByInternal("call-1"), "weird-status", 0)
	if !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
	if applied {
		t.Fatalf("unknown status must not apply")
	}
	rec, err := store.FindByInternal(ctx, "call-1")
	if err != nil || rec.Status != CallStatusInitiated {
		t.Fatalf("record must be unchanged, got status=%s err=%v", rec.Status, err)
	}
	if len(sink.snapshot()) != 0 {
		t.Fatalf("unknown status must not emit")
	}
}

func TestArmNoAnswerFiresWhileRinging(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestMachine(t, 10*time.Millisecond)

	rec := newTestRecord("call-1")
	rec.Direction = DirectionInbound
	rec.Status = CallStatusRinging
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	m.ArmNoAnswer("call-1")

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := store.FindByInternal(ctx, "call-1")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.Status == CallStatusNoAnswer {
			if got.EndedAt == nil {
				t.Fatalf("no-answer is terminal; EndedAt must be set")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timer never fired, status still %s", got.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestArmNoAnswerIsNoopAfterAnswer(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestMachine(t, 20*time.Millisecond)

	rec := newTestRecord("call-1")
	rec.Direction = DirectionInbound
	rec.Status = CallStatusRinging
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	m.ArmNoAnswer("call-1")
	if _, applied, err := m.Apply(ctx, ByInternal("call-1"), CallStatusAnswered, "", 0); err != nil || !applied {
		t.Fatalf("answer: applied=%v err=%v", applied, err)
	}

	// Let the timer fire; the call already left ringing, so nothing may change.
	time.Sleep(100 * time.Millisecond)
	got, err := store.FindByInternal(ctx, "call-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != CallStatusAnswered {
		t.Fatalf("late timer regressed status to %s", got.Status)
	}
	if got.EndedAt != nil {
		t.Fatalf("answered call must not have EndedAt")
	}
}
