package calls

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// EventSink consumes applied status transitions.
// Implementations must not block; delivery is best-effort.
type EventSink interface {
	CallStatusChanged(ctx context.Context, e Event)
}

// Machine owns state-transition legality for call records.
//
// All status mutations in the system funnel through Apply, which delegates the
// per-record atomicity to the store. Transition requests against a record that
// is already terminal succeed silently without changing anything; that single
// rule is what makes duplicate webhooks, out-of-order delivery, and late
// no-answer timers all safe.
type Machine struct {
	store Store
	sink  EventSink
	log   *slog.Logger
	clock func() time.Time

	noAnswerWindow time.Duration
}

func NewMachine(store Store, sink EventSink, log *slog.Logger, noAnswerWindow time.Duration) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		store:          store,
		sink:           sink,
		log:            log,
		clock:          time.Now,
		noAnswerWindow: noAnswerWindow,
	}
}

// SetClock is for deterministic tests.
func (m *Machine) SetClock(clock func() time.Time) { m.clock = clock }

// Apply moves a record to status and emits an event if a transition happened.
func (m *Machine) Apply(ctx context.Context, key Key, status CallStatus, errorDetail string, durationSeconds int) (CallRecord, bool, error) {
	rec, applied, err := m.store.UpdateStatus(ctx, key, StatusUpdate{
		Status:          status,
		ErrorDetail:     errorDetail,
		DurationSeconds: durationSeconds,
		At:              m.clock().UTC(),
	})
	if err != nil {
		return CallRecord{}, false, err
	}
	if applied {
		m.emit(ctx, rec)
	}
	return rec, applied, nil
}

// ApplyProviderStatus reconciles a provider webhook status against a record.
// Unrecognized status values are rejected with ErrUnknownStatus and leave the
// record unchanged.
func (m *Machine) ApplyProviderStatus(ctx context.Context, key Key, providerStatus string, durationSeconds int) (CallRecord, bool, error) {
	status, ok := MapProviderStatus(providerStatus)
	if !ok {
		m.log.Warn("unrecognized provider status", "status", providerStatus)
		return CallRecord{}, false, fmt.Errorf("%w: %q", ErrUnknownStatus, providerStatus)
	}
	detail := ""
	if status == CallStatusFailed {
		detail = "provider reported " + providerStatus
	}
	return m.Apply(ctx, key, status, detail, durationSeconds)
}

// ArmNoAnswer starts the advisory no-answer timer for an inbound call that just
// entered ringing. The timer is never cancelled explicitly: if the call left
// ringing before it fires, the terminal-absorption rule turns it into a no-op.
func (m *Machine) ArmNoAnswer(callID string) {
	time.AfterFunc(m.noAnswerWindow, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// no-answer is only legal from ringing, so a call that moved on in the
		// meantime absorbs this as a no-op.
		if _, applied, err := m.Apply(ctx, ByInternal(callID), CallStatusNoAnswer, "", 0); err != nil {
			m.log.Error("no-answer transition failed", "call_id", callID, "err", err)
		} else if applied {
			m.log.Info("call marked no-answer", "call_id", callID)
		}
	})
}

func (m *Machine) emit(ctx context.Context, rec CallRecord) {
	if m.sink == nil {
		return
	}
	m.sink.CallStatusChanged(ctx, Event{
		CallID:    rec.CallID,
		Status:    rec.Status,
		FromParty: rec.FromParty,
		ToParty:   rec.ToParty,
		Direction: rec.Direction,
	})
}
