package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"rillcall/internal/core/domain"
	"rillcall/internal/core/ports"
	"rillcall/internal/infrastructure/presence"
	apperrors "rillcall/pkg/errors"

	"github.com/gin-gonic/gin"
)

// CallHandler exposes the call engine's intents to the local UI.
type CallHandler struct {
	calls    ports.CallService
	presence ports.PresenceDirectory
}

func NewCallHandler(calls ports.CallService, dir ports.PresenceDirectory) *CallHandler {
	return &CallHandler{
		calls:    calls,
		presence: dir,
	}
}

func (h *CallHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/calls", h.NewCall)
	api.POST("/calls/accept", h.AcceptCall)
	api.POST("/calls/decline", h.intent(h.calls.DeclineCall))
	api.POST("/calls/cancel", h.intent(h.calls.CancelCall))
	api.POST("/calls/hangup", h.intent(h.calls.Hangup))
	api.GET("/calls/current", h.CurrentCall)
	api.GET("/clients", h.ListClients)
}

type NewCallRequest struct {
	Target domain.ParticipantID  `json:"target"`
	Proxy  *domain.ParticipantID `json:"proxy,omitempty"`
}

type AcceptCallRequest struct {
	// From answers an invitation from this caller instead of the prompted call.
	From *domain.ParticipantID `json:"from,omitempty"`
}

func (h *CallHandler) NewCall(c *gin.Context) {
	var req NewCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	if err := h.calls.NewCall(c.Request.Context(), req.Target, req.Proxy); err != nil {
		_ = c.Error(err)
		return
	}
	h.respondSnapshot(c)
}

func (h *CallHandler) AcceptCall(c *gin.Context) {
	var req AcceptCallRequest
	// the body is optional
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		_ = c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	var err error
	if req.From != nil {
		err = h.calls.AnswerCall(c.Request.Context(), *req.From)
	} else {
		err = h.calls.AcceptCall(c.Request.Context())
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.respondSnapshot(c)
}

// intent adapts a body-less engine intent to a handler.
func (h *CallHandler) intent(fn func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(c.Request.Context()); err != nil {
			_ = c.Error(err)
			return
		}
		h.respondSnapshot(c)
	}
}

func (h *CallHandler) CurrentCall(c *gin.Context) {
	h.respondSnapshot(c)
}

func (h *CallHandler) respondSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"self": h.calls.Self(),
		"call": h.calls.Snapshot(),
	})
}

// ListClients returns the online participants other than the local one.
func (h *CallHandler) ListClients(c *gin.Context) {
	all, err := h.presence.List(c.Request.Context())
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.ErrCodeServiceUnavailable, "presence directory unavailable"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"clients": presence.Others(all, h.calls.Self()),
	})
}
