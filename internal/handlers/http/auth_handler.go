package http

import (
	"net/http"
	"time"

	"rillcall/internal/core/services"
	"rillcall/pkg/errors"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService services.AuthService
	tokenTTL    time.Duration
}

func NewAuthHandler(authService services.AuthService, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		tokenTTL:    tokenTTL,
	}
}

// SetupRoutes registers the routes on an authenticated group.
func (h *AuthHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/auth/refresh", h.RefreshToken)
}

// RefreshToken trades a valid token for a fresh one.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	p, err := services.ParticipantFromContext(c.Request.Context())
	if err != nil {
		_ = c.Error(errors.NewUnauthorizedError("authentication required"))
		return
	}

	accessToken, err := h.authService.GenerateToken(p)
	if err != nil {
		_ = c.Error(errors.NewInternalError("failed to generate token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"expires_in":   int(h.tokenTTL / time.Second),
	})
}
