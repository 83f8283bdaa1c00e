package calls

import "time"

// CallRecord is one call attempt, inbound or outbound.
//
// Identity invariants:
// - CallID is generated locally, unique, and immutable; it exists before any
//   provider identifier does.
// - ProviderCallID, once linked, is immutable and unique among records.
// - A record is reachable by either key once both are known.
//
// Lifecycle invariants:
// - Status only moves forward per the transition rules in machine.go.
// - EndedAt is set exactly once, iff Status is terminal.
// - ErrorDetail is set only on failed records.
type CallRecord struct {
	CallID         string `json:"call_id" db:"call_id"`
	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`

	FromParty string `json:"from" db:"from_party"`
	ToParty   string `json:"to" db:"to_party"`

	Direction Direction  `json:"direction" db:"direction"`
	Status    CallStatus `json:"status" db:"status"`

	ErrorDetail string `json:"error_detail,omitempty" db:"error_detail"`

	// DurationSeconds comes from the provider's completed callback when present.
	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	CallStatusRinging   CallStatus = "ringing"
	CallStatusAnswered  CallStatus = "answered"
	CallStatusCompleted CallStatus = "completed"
	CallStatusNoAnswer  CallStatus = "no-answer"
	CallStatusFailed    CallStatus = "failed"
)

// IsTerminal reports whether a status absorbs all further updates.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusNoAnswer, CallStatusFailed:
		return true
	default:
		return false
	}
}

// statusRank orders statuses along the forward-only lifecycle. All terminal
// statuses share the top rank.
var statusRank = map[CallStatus]int{
	CallStatusInitiated: 0,
	CallStatusRinging:   1,
	CallStatusAnswered:  2,
	CallStatusCompleted: 3,
	CallStatusNoAnswer:  3,
	CallStatusFailed:    3,
}

// canTransition reports whether a record may move from one status to another.
//
// Rules:
// - terminal states absorb everything;
// - status only moves forward, so a stale out-of-order webhook (ringing after
//   answered) is a silent no-op;
// - no-answer is reachable only from ringing, so a late no-answer timer can
//   never regress an answered call.
func canTransition(from, to CallStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == CallStatusNoAnswer {
		return from == CallStatusRinging
	}
	return statusRank[to] > statusRank[from]
}

// providerStatusMap is the fixed lookup table from provider wire statuses to
// internal statuses. Provider webhooks may carry values we never emit ourselves
// (busy, canceled, in-progress); anything not listed here is rejected with
// ErrUnknownStatus and leaves the record unchanged.
var providerStatusMap = map[string]CallStatus{
	"initiated":   CallStatusInitiated,
	"queued":      CallStatusInitiated,
	"ringing":     CallStatusRinging,
	"answered":    CallStatusAnswered,
	"in-progress": CallStatusAnswered,
	"completed":   CallStatusCompleted,
	"no-answer":   CallStatusNoAnswer,
	"busy":        CallStatusFailed,
	"canceled":    CallStatusFailed,
	"failed":      CallStatusFailed,
}

// MapProviderStatus translates a provider status value.
// The second return is false for unrecognized values.
func MapProviderStatus(v string) (CallStatus, bool) {
	s, ok := providerStatusMap[v]
	return s, ok
}

// Event is emitted for every applied status transition and consumed by the
// notification fan-out.
type Event struct {
	CallID    string     `json:"call_id"`
	Status    CallStatus `json:"status"`
	FromParty string     `json:"from"`
	ToParty   string     `json:"to"`
	Direction Direction  `json:"direction"`
}
