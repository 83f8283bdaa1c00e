package httpapi

import (
	"errors"
	"net/http"

	"callbridge/internal/calls"
	"callbridge/internal/directory"
	"callbridge/internal/telephony"
	"callbridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Calls     *calls.Service
	Directory *directory.Service
}

// --- Calls ---

type startCallRequest struct {
	UserID string `json:"user_id"`
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
}

// StartCall places an outbound call on behalf of a user.
func (h Handlers) StartCall(c *gin.Context) {
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.To == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and to required"})
		return
	}

	rec, err := h.Calls.StartOutbound(c.Request.Context(), req.UserID, req.From, req.To)
	if err != nil {
		if errors.Is(err, calls.ErrCallCapExceeded) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many active calls"})
			return
		}
		// A failed placement still has a record worth surfacing.
		logger.FromGin(c).Warn("start call failed", "user_id", req.UserID, "to", req.To, "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "call placement failed", "call_id": rec.CallID})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"call_id":          rec.CallID,
		"provider_call_id": rec.ProviderCallID,
		"status":           rec.Status,
	})
}

type connectCallRequest struct {
	CallID string `json:"call_id"`
	UserID string `json:"user_id"`
}

// ConnectCall accepts an inbound call on behalf of a user and returns the
// bridge instruction document the provider executes.
func (h Handlers) ConnectCall(c *gin.Context) {
	var req connectCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.CallID == "" || req.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id and user_id required"})
		return
	}

	decision, err := h.Calls.Answer(c.Request.Context(), req.CallID, req.UserID)
	if err != nil {
		h.writeCallError(c, err)
		return
	}
	twiml, err := telephony.DialClientTwiML(decision.ClientIdentity)
	if err != nil {
		logger.FromGin(c).Error("bridge document render failed", "call_id", req.CallID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "bridge failed"})
		return
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}

type hangupRequest struct {
	CallID string `json:"call_id"`
}

func (h Handlers) Hangup(c *gin.Context) {
	var req hangupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.CallID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return
	}
	if err := h.Calls.Hangup(c.Request.Context(), req.CallID); err != nil {
		h.writeCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_id": req.CallID, "status": calls.CallStatusCompleted})
}

// CallLogs returns a user's full call history, newest first.
func (h Handlers) CallLogs(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	rows, err := h.Calls.History(c.Request.Context(), userID)
	if err != nil {
		h.writeCallError(c, err)
		return
	}
	if rows == nil {
		rows = []calls.CallRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "calls": rows})
}

// CallSummary returns aggregate outcome counts for a user's history.
func (h Handlers) CallSummary(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	sum, err := h.Calls.Summarize(c.Request.Context(), userID)
	if err != nil {
		h.writeCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// --- Directory ---

type registerUserRequest struct {
	UserID      string `json:"user_id"`
	PhoneNumber string `json:"phone_number"`
	PushToken   string `json:"push_token,omitempty"`
}

// RegisterUser upserts a user's phone number and push token.
func (h Handlers) RegisterUser(c *gin.Context) {
	var req registerUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	user, err := h.Directory.Register(c.Request.Context(), req.UserID, req.PhoneNumber, req.PushToken)
	if err != nil {
		if errors.Is(err, directory.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and phone_number required"})
			return
		}
		logger.FromGin(c).Error("user registration failed", "user_id", req.UserID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": user.UserID, "phone_number": user.PhoneNumber})
}

func (h Handlers) writeCallError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case errors.Is(err, calls.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.FromGin(c).Error("call operation failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
