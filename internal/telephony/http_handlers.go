package telephony

import (
	"context"
	"net/http"

	"callbridge/internal/calls"
	"callbridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WebhookHandler converts provider webhooks to internal calls, delegates to the
// orchestrator, and writes TwiML. No business logic here.
//
// Webhook error posture: the provider retries on non-2xx, so processing
// failures on the status path are logged and acknowledged anyway.

type InboundHandler interface {
	HandleInbound(ctx context.Context, fromNumber, toNumber, providerCallID string) (calls.InboundDecision, error)
}

type StatusHandler interface {
	HandleStatusCallback(ctx context.Context, providerCallID, providerStatus string, durationSeconds int) error
}

type WebhookHandler struct {
	Inbound InboundHandler
	Status  StatusHandler

	// HoldPrompt is spoken to the caller while the callee decides.
	HoldPrompt string
}

const defaultHoldPrompt = "Please hold while we try to connect you."

// HandleInboundCall serves the provider's inbound-call webhook.
func (h WebhookHandler) HandleInboundCall(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseInboundCall(c.Request)
	if err != nil {
		log.Warn("inbound webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	decision, err := h.Inbound.HandleInbound(c.Request.Context(), form.From, form.To, form.CallSid)
	if err != nil {
		// Refuse the call rather than leave the caller hanging on a broker fault.
		log.Error("inbound call handling failed", "from", form.From, "to", form.To, "err", err)
		twiml, renderErr := RejectTwiML()
		h.writeTwiML(c, twiml, renderErr)
		return
	}

	switch decision.Action {
	case calls.InboundActionHold:
		prompt := h.HoldPrompt
		if prompt == "" {
			prompt = defaultHoldPrompt
		}
		twiml, err := SayTwiML(prompt)
		h.writeTwiML(c, twiml, err)
	default:
		twiml, err := RejectTwiML()
		h.writeTwiML(c, twiml, err)
	}
}

// HandleStatusCallback serves the provider's asynchronous status webhook.
func (h WebhookHandler) HandleStatusCallback(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseStatusCallback(c.Request)
	if err != nil {
		log.Warn("status webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	if err := h.Status.HandleStatusCallback(c.Request.Context(), form.CallSid, form.CallStatus, form.CallDurationSec); err != nil {
		// Ack regardless; retries would only replay the same update.
		log.Error("status webhook processing failed",
			"provider_call_id", form.CallSid, "status", form.CallStatus, "err", err)
	}
	c.Status(http.StatusOK)
}

// HandleOutboundAnswer serves the TwiML executed when an outbound callee
// answers, for deployments that do not configure an external voice document.
func (h WebhookHandler) HandleOutboundAnswer(c *gin.Context) {
	twiml, err := SayTwiML("Connecting your call.")
	h.writeTwiML(c, twiml, err)
}

func (h WebhookHandler) writeTwiML(c *gin.Context, twiml string, err error) {
	if err != nil {
		logger.FromGin(c).Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}
