// Package ws hosts the live bidirectional connection between an application
// user and the broker. Each connection runs one ordered read loop; record and
// registry mutations it triggers all go through the call service.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"callbridge/internal/calls"
	"callbridge/internal/sessions"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// placementGrace bounds the detached outbound-placement task; the orchestrator
// applies its own tighter provider timeout inside it.
const placementGrace = 30 * time.Second

// CallService is the slice of the orchestrator the connection protocol drives.
type CallService interface {
	StartOutbound(ctx context.Context, userID, from, to string) (calls.CallRecord, error)
	Answer(ctx context.Context, callID, userID string) (calls.ConnectDecision, error)
	Hangup(ctx context.Context, callID string) error
}

type Handler struct {
	calls    CallService
	registry *sessions.Registry
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(callSvc CallService, registry *sessions.Registry, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		calls:    callSvc,
		registry: registry,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are mobile apps, not browsers; origin checks do not apply.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades the request and runs the connection's read loop until it closes.
func (h *Handler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	cl := newClient(conn)
	defer h.teardown(cl)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("websocket read ended", "user_id", cl.userID, "err", err)
			}
			return
		}
		h.handleMessage(c.Request.Context(), cl, raw)
	}
}

func (h *Handler) handleMessage(ctx context.Context, cl *client, raw []byte) {
	msg, err := parseClientMessage(raw)
	if err != nil {
		h.send(cl, ErrorMessage{Type: KindError, Message: "invalid JSON"})
		return
	}

	switch msg.Type {
	case kindRegister:
		h.handleRegister(cl, msg)
	case kindInitiateCall:
		h.handleInitiateCall(cl, msg)
	case kindAnswerCall:
		h.handleAnswerCall(ctx, cl, msg)
	case kindHangup:
		h.handleHangup(ctx, cl, msg)
	default:
		h.send(cl, ErrorMessage{Type: KindError, Message: "unknown message type"})
	}
}

func (h *Handler) handleRegister(cl *client, msg clientMessage) {
	if msg.UserID == "" {
		h.send(cl, ErrorMessage{Type: KindError, Message: "userId required"})
		return
	}
	cl.userID = msg.UserID
	h.registry.Register(msg.UserID, cl)
	h.send(cl, RegisterSuccess{Type: KindRegisterSuccess, UserID: msg.UserID})
	h.log.Info("connection registered", "user_id", msg.UserID)
}

func (h *Handler) handleInitiateCall(cl *client, msg clientMessage) {
	if cl.userID == "" {
		h.send(cl, ErrorMessage{Type: KindError, Message: "register first"})
		return
	}
	if msg.To == "" {
		h.send(cl, ErrorMessage{Type: KindError, Message: "to required"})
		return
	}

	// Placement blocks on the provider; run it off the read loop so the
	// connection keeps processing messages meanwhile.
	userID := cl.userID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), placementGrace)
		defer cancel()

		rec, err := h.calls.StartOutbound(ctx, userID, msg.From, msg.To)
		if err != nil {
			h.log.Warn("outbound call failed", "user_id", userID, "to", msg.To, "err", err)
			h.send(cl, CallFailed{Type: KindCallFailed, CallID: rec.CallID, Reason: err.Error()})
			return
		}
		h.registry.BindCallInitiator(rec.CallID, cl)
		h.send(cl, CallInitiated{Type: KindCallInitiated, CallID: rec.CallID, To: msg.To})
	}()
}

func (h *Handler) handleAnswerCall(ctx context.Context, cl *client, msg clientMessage) {
	userID := cl.userID
	if msg.UserID != "" {
		userID = msg.UserID
	}
	if msg.CallID == "" || userID == "" {
		h.send(cl, ErrorMessage{Type: KindError, Message: "callId and userId required"})
		return
	}
	if _, err := h.calls.Answer(ctx, msg.CallID, userID); err != nil {
		h.send(cl, ErrorMessage{Type: KindError, Message: "answer failed: " + err.Error()})
	}
}

func (h *Handler) handleHangup(ctx context.Context, cl *client, msg clientMessage) {
	if msg.CallID == "" {
		h.send(cl, ErrorMessage{Type: KindError, Message: "callId required"})
		return
	}
	if err := h.calls.Hangup(ctx, msg.CallID); err != nil {
		h.send(cl, ErrorMessage{Type: KindError, Message: "hangup failed: " + err.Error()})
	}
}

func (h *Handler) teardown(cl *client) {
	if cl.userID != "" {
		h.registry.Unregister(cl.userID, cl)
		h.log.Info("connection closed", "user_id", cl.userID)
	}
	_ = cl.conn.Close()
}

func (h *Handler) send(cl *client, v any) {
	if err := cl.Send(v); err != nil {
		h.log.Debug("websocket send failed", "user_id", cl.userID, "err", err)
	}
}
