// Package notify delivers call-state events to users via whichever channel
// currently reaches them: the live connection when one is registered, and push
// notification for incoming calls when a push token is on file.
package notify

import (
	"context"
	"log/slog"
	"time"

	"callbridge/internal/calls"
	"callbridge/internal/directory"
	"callbridge/internal/sessions"
	"callbridge/internal/ws"
)

// PushSender is the external best-effort push notifier boundary.
type PushSender interface {
	SendIncomingCallAlert(ctx context.Context, token, callerLabel, callID string) error
}

// DirectoryLookup resolves a user's push token.
type DirectoryLookup interface {
	ByUserID(ctx context.Context, userID string) (directory.User, error)
}

// Notifier implements calls.Notifier.
//
// Delivery is fire-and-forget on every channel: failures are logged, never
// propagated, never retried here. Live connection and push are independent
// channels for incoming calls; both may fire for the same event.
type Notifier struct {
	registry *sessions.Registry
	dir      DirectoryLookup
	push     PushSender
	log      *slog.Logger

	pushTimeout time.Duration
}

func New(registry *sessions.Registry, dir DirectoryLookup, push PushSender, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		registry:    registry,
		dir:         dir,
		push:        push,
		log:         log,
		pushTimeout: 10 * time.Second,
	}
}

func (n *Notifier) IncomingCall(ctx context.Context, userID, fromNumber, toNumber, callID string) {
	n.sendLive(userID, ws.IncomingCall{
		Type:   ws.KindIncomingCall,
		From:   fromNumber,
		To:     toNumber,
		CallID: callID,
	})

	if n.push == nil {
		return
	}
	user, err := n.dir.ByUserID(ctx, userID)
	if err != nil {
		n.log.Warn("push token lookup failed", "user_id", userID, "err", err)
		return
	}
	if user.PushToken == "" {
		return
	}

	// Detached from the caller's lifetime; the webhook response must not wait
	// on the push provider.
	go func() {
		pushCtx, cancel := context.WithTimeout(context.Background(), n.pushTimeout)
		defer cancel()
		if err := n.push.SendIncomingCallAlert(pushCtx, user.PushToken, fromNumber, callID); err != nil {
			n.log.Warn("incoming call push failed", "user_id", userID, "call_id", callID, "err", err)
			return
		}
		n.log.Info("incoming call push sent", "user_id", userID, "call_id", callID)
	}()
}

func (n *Notifier) CallStatusChanged(ctx context.Context, e calls.Event) {
	msg := ws.CallStatus{
		Type:   ws.KindCallStatus,
		CallID: e.CallID,
		Status: string(e.Status),
	}

	// The initiating connection gets the update even when the user registry
	// entry has since been replaced. If that send fails, the user's current
	// connection is still worth trying.
	delivered := false
	if conn, ok := n.registry.ResolveCallInitiator(e.CallID); ok {
		if err := conn.Send(msg); err != nil {
			n.log.Warn("live notification send failed", "call_id", e.CallID, "err", err)
		} else {
			delivered = true
		}
	}
	if !delivered {
		n.sendLive(userParty(e), msg)
	}

	if e.Status.IsTerminal() {
		n.registry.ReleaseCallInitiator(e.CallID)
	}
}

func (n *Notifier) sendLive(userID string, msg any) {
	if userID == "" {
		return
	}
	conn, ok := n.registry.Lookup(userID)
	if !ok {
		return
	}
	if err := conn.Send(msg); err != nil {
		n.log.Warn("live notification send failed", "user_id", userID, "err", err)
	}
}

// userParty picks the side of the call that is an application user: the callee
// for inbound calls, the initiator for outbound ones.
func userParty(e calls.Event) string {
	if e.Direction == calls.DirectionInbound {
		return e.ToParty
	}
	return e.FromParty
}
