package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"callbridge/internal/directory"

	"github.com/google/uuid"
)

// CallControl is the external call-control service boundary.
//
// Place returns the provider's call identifier. Both operations must honor ctx
// deadlines; the orchestrator always calls them with a bounded context.
type CallControl interface {
	Place(ctx context.Context, from, to, statusCallbackURL string) (string, error)
	Terminate(ctx context.Context, providerCallID string) error
}

// DirectoryLookup resolves dialed numbers to application users.
type DirectoryLookup interface {
	ByPhoneNumber(ctx context.Context, number string) (directory.User, error)
}

// Notifier fans a call event out to a user over whichever channel reaches them.
// Implementations are fire-and-forget: they log failures and never return them.
type Notifier interface {
	IncomingCall(ctx context.Context, userID, fromNumber, toNumber, callID string)
	CallStatusChanged(ctx context.Context, e Event)
}

var ErrCallCapExceeded = errors.New("calls: concurrent call cap exceeded")

// InboundDecision tells the webhook layer how to answer the provider.
type InboundDecision struct {
	Action InboundAction
	CallID string
}

type InboundAction string

const (
	// InboundActionReject: no user owns the dialed number; terminate at the provider.
	InboundActionReject InboundAction = "reject"
	// InboundActionHold: play a hold message while the user decides.
	InboundActionHold InboundAction = "hold"
)

// ConnectDecision tells the provider to bridge the inbound leg to a client endpoint.
type ConnectDecision struct {
	ClientIdentity string
}

// ServiceConfig carries the deployment policy values the orchestrator needs.
type ServiceConfig struct {
	// FromNumber is the default outbound caller id.
	FromNumber string
	// StatusCallbackURL is where the provider posts status updates.
	StatusCallbackURL string

	NoAnswerTimeout  time.Duration
	PlacementTimeout time.Duration
}

// Service orchestrates call setup and teardown around the state machine.
//
// Ordering invariant: the record is always created before the external
// placement request, so a failed placement is itself recorded. No external I/O
// happens inside a record's critical section; placement runs before the link,
// fan-out runs after the mutation is applied.
type Service struct {
	store    Store
	machine  *Machine
	control  CallControl
	dir      DirectoryLookup
	notifier Notifier
	caps     CapLimiter
	cfg      ServiceConfig
	log      *slog.Logger
	clock    func() time.Time
}

func NewService(store Store, control CallControl, dir DirectoryLookup, notifier Notifier, caps CapLimiter, cfg ServiceConfig, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if caps == nil {
		caps = NoopCapLimiter{}
	}
	s := &Service{
		store:    store,
		control:  control,
		dir:      dir,
		notifier: notifier,
		caps:     caps,
		cfg:      cfg,
		log:      log,
		clock:    time.Now,
	}
	// The service sits between the machine and the notifier so it can observe
	// terminal transitions (cap release) before fanning events out.
	s.machine = NewMachine(store, s, log, cfg.NoAnswerTimeout)
	return s
}

// SetClock is for deterministic tests.
func (s *Service) SetClock(clock func() time.Time) {
	s.clock = clock
	s.machine.SetClock(clock)
}

// StartOutbound places a new outbound call for userID.
//
// The returned record carries the internal call id even when placement fails,
// so callers can always surface it.
func (s *Service) StartOutbound(ctx context.Context, userID, from, to string) (CallRecord, error) {
	if userID == "" || to == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	if from == "" {
		from = s.cfg.FromNumber
	}

	ok, err := s.caps.Acquire(ctx, userID)
	if err != nil {
		return CallRecord{}, fmt.Errorf("call cap check: %w", err)
	}
	if !ok {
		return CallRecord{}, ErrCallCapExceeded
	}

	rec := CallRecord{
		CallID:    uuid.NewString(),
		FromParty: userID,
		ToParty:   to,
		Direction: DirectionOutbound,
		Status:    CallStatusInitiated,
		StartedAt: s.clock().UTC(),
	}
	if err := s.store.Create(ctx, rec); err != nil {
		s.caps.Release(ctx, userID)
		return CallRecord{}, fmt.Errorf("create call record: %w", err)
	}

	placeCtx, cancel := context.WithTimeout(ctx, s.cfg.PlacementTimeout)
	defer cancel()
	providerID, err := s.control.Place(placeCtx, from, to, s.cfg.StatusCallbackURL)
	if err != nil {
		s.log.Error("outbound placement failed", "call_id", rec.CallID, "to", to, "err", err)
		failed, _, applyErr := s.machine.Apply(ctx, ByInternal(rec.CallID), CallStatusFailed, err.Error(), 0)
		if applyErr != nil {
			s.log.Error("failed-state transition failed", "call_id", rec.CallID, "err", applyErr)
			return rec, fmt.Errorf("place call: %w", err)
		}
		return failed, fmt.Errorf("place call: %w", err)
	}

	if err := s.store.LinkProviderID(ctx, rec.CallID, providerID); err != nil {
		// The call is live at the provider either way; the record stays
		// reachable by internal id and status webhooks will log unknown-sid.
		s.log.Error("provider id link failed", "call_id", rec.CallID, "provider_call_id", providerID, "err", err)
	}
	rec.ProviderCallID = providerID

	s.log.Info("outbound call placed", "call_id", rec.CallID, "provider_call_id", providerID, "to", to)
	return rec, nil
}

// HandleInbound processes a provider-originated call to one of our numbers.
//
// An unmapped destination produces a reject decision and leaves no state
// behind, so repeated unmapped calls are independent.
func (s *Service) HandleInbound(ctx context.Context, fromNumber, toNumber, providerCallID string) (InboundDecision, error) {
	if fromNumber == "" || toNumber == "" {
		return InboundDecision{}, ErrInvalidArgument
	}

	// The provider retries this webhook on timeouts; a CallSid we already hold
	// re-returns the original decision without ringing the user again.
	if providerCallID != "" {
		if existing, err := s.store.FindByProvider(ctx, providerCallID); err == nil {
			s.log.Info("duplicate inbound webhook absorbed", "call_id", existing.CallID, "provider_call_id", providerCallID)
			return InboundDecision{Action: InboundActionHold, CallID: existing.CallID}, nil
		} else if !errors.Is(err, ErrNotFound) {
			return InboundDecision{}, fmt.Errorf("inbound lookup: %w", err)
		}
	}

	user, err := s.dir.ByPhoneNumber(ctx, toNumber)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			s.log.Info("inbound call to unmapped number rejected", "from", fromNumber, "to", toNumber)
			return InboundDecision{Action: InboundActionReject}, nil
		}
		return InboundDecision{}, fmt.Errorf("directory lookup: %w", err)
	}

	rec := CallRecord{
		CallID:         uuid.NewString(),
		ProviderCallID: providerCallID,
		FromParty:      fromNumber,
		ToParty:        user.UserID,
		Direction:      DirectionInbound,
		Status:         CallStatusRinging,
		StartedAt:      s.clock().UTC(),
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return InboundDecision{}, fmt.Errorf("create call record: %w", err)
	}

	s.machine.ArmNoAnswer(rec.CallID)
	s.notifier.IncomingCall(ctx, user.UserID, fromNumber, toNumber, rec.CallID)

	s.log.Info("inbound call ringing", "call_id", rec.CallID, "from", fromNumber, "user_id", user.UserID)
	return InboundDecision{Action: InboundActionHold, CallID: rec.CallID}, nil
}

// Answer produces the bridge instruction for an inbound call the user accepted.
// The record moves to answered only on the provider's status callback, never here.
func (s *Service) Answer(ctx context.Context, callID, userID string) (ConnectDecision, error) {
	if callID == "" || userID == "" {
		return ConnectDecision{}, ErrInvalidArgument
	}
	rec, err := s.store.FindByInternal(ctx, callID)
	if err != nil {
		return ConnectDecision{}, err
	}
	if rec.Direction == DirectionInbound && rec.ToParty != userID {
		return ConnectDecision{}, fmt.Errorf("%w: call %s does not target user %s", ErrInvalidArgument, callID, userID)
	}
	return ConnectDecision{ClientIdentity: userID}, nil
}

// Hangup ends a call. When the provider knows the call, the local record is
// completed only after the provider confirms termination.
func (s *Service) Hangup(ctx context.Context, callID string) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	rec, err := s.store.FindByInternal(ctx, callID)
	if err != nil {
		return err
	}
	if rec.Status.IsTerminal() {
		return nil
	}

	if rec.ProviderCallID != "" {
		termCtx, cancel := context.WithTimeout(ctx, s.cfg.PlacementTimeout)
		defer cancel()
		if err := s.control.Terminate(termCtx, rec.ProviderCallID); err != nil {
			return fmt.Errorf("terminate call: %w", err)
		}
	}

	_, _, err = s.machine.Apply(ctx, ByInternal(callID), CallStatusCompleted, "", 0)
	return err
}

// HandleStatusCallback reconciles a provider status webhook.
//
// A status for an unknown provider id is logged and acknowledged; duplicates
// and out-of-order deliveries are absorbed by the state machine.
func (s *Service) HandleStatusCallback(ctx context.Context, providerCallID, providerStatus string, durationSeconds int) error {
	if providerCallID == "" {
		return ErrInvalidArgument
	}
	if _, err := s.store.FindByProvider(ctx, providerCallID); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.Warn("status webhook for unknown provider call",
				"provider_call_id", providerCallID, "status", providerStatus, "duration", durationSeconds)
			return nil
		}
		return err
	}

	_, _, err := s.machine.ApplyProviderStatus(ctx, ByProvider(providerCallID), providerStatus, durationSeconds)
	return err
}

// History returns every call where identity is either party, newest first.
func (s *Service) History(ctx context.Context, identity string) ([]CallRecord, error) {
	return s.store.ListByParty(ctx, identity)
}

// CallStatusChanged implements EventSink. The service observes terminal
// transitions to release outbound call caps, then forwards to the fan-out.
func (s *Service) CallStatusChanged(ctx context.Context, e Event) {
	if e.Direction == DirectionOutbound && e.Status.IsTerminal() {
		s.caps.Release(ctx, e.FromParty)
	}
	if s.notifier != nil {
		s.notifier.CallStatusChanged(ctx, e)
	}
}
