package calls

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("calls: not found")
	ErrConflict        = errors.New("calls: conflict")
	ErrUnknownStatus   = errors.New("calls: unknown provider status")
	ErrInvalidArgument = errors.New("calls: invalid argument")
)

// Key addresses a record by exactly one of its two identifiers.
type Key struct {
	Internal string
	Provider string
}

func ByInternal(callID string) Key     { return Key{Internal: callID} }
func ByProvider(providerID string) Key { return Key{Provider: providerID} }

// StatusUpdate is the input to Store.UpdateStatus.
// At is the transition time recorded into EndedAt for terminal statuses.
type StatusUpdate struct {
	Status          CallStatus
	ErrorDetail     string
	DurationSeconds int
	At              time.Time
}

// applyTransition mutates rec per upd when the transition is legal, reporting
// whether anything changed. Both store implementations share it so the
// transition rules cannot drift between the durable and in-memory paths.
func applyTransition(rec *CallRecord, upd StatusUpdate) bool {
	if !canTransition(rec.Status, upd.Status) {
		return false
	}
	rec.Status = upd.Status
	if upd.Status == CallStatusFailed && upd.ErrorDetail != "" {
		rec.ErrorDetail = upd.ErrorDetail
	}
	if upd.DurationSeconds > 0 {
		rec.DurationSeconds = upd.DurationSeconds
	}
	if upd.Status.IsTerminal() {
		at := upd.At
		rec.EndedAt = &at
	}
	return true
}

// Store is the call record store.
//
// Contract:
// - Records are reachable by internal id always, and by provider id once linked;
//   lookups by either key agree.
// - UpdateStatus is the single serialization point for concurrent writers on the
//   same record: the read-modify-write is atomic per record, and a record already
//   in a terminal state absorbs the update as a silent no-op (applied=false).
//   Updates on different records never block each other.
// - Records are never deleted by the running system.
type Store interface {
	Create(ctx context.Context, rec CallRecord) error
	LinkProviderID(ctx context.Context, callID, providerCallID string) error

	FindByInternal(ctx context.Context, callID string) (CallRecord, error)
	FindByProvider(ctx context.Context, providerCallID string) (CallRecord, error)

	UpdateStatus(ctx context.Context, key Key, upd StatusUpdate) (CallRecord, bool, error)

	// ListByParty returns every record where identity is either party, newest first.
	ListByParty(ctx context.Context, identity string) ([]CallRecord, error)
}
