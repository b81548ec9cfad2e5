package middleware

import (
	"errors"
	"strings"

	"rillcall/internal/core/domain"
	"rillcall/internal/core/services"
	apperrors "rillcall/pkg/errors"
	"rillcall/pkg/logger"

	"github.com/gin-gonic/gin"
)

const participantKey = "participant"

// bearerToken reads the token from the Authorization header, falling back
// to the token query parameter that browsers use for websockets.
func bearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", errors.New("authorization header required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}

// AuthMiddleware admits requests carrying a token minted for the local
// participant's user.
func AuthMiddleware(authService services.AuthService, local domain.ParticipantID) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			abortWithAppError(c, apperrors.NewUnauthorizedError(err.Error()))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			abortWithAppError(c, apperrors.NewUnauthorizedError(err.Error()))
			return
		}
		if err := authService.Authorize(claims, local); err != nil {
			abortWithAppError(c, apperrors.NewForbiddenError("token was not issued for "+local.Username))
			return
		}

		p := claims.Participant()
		c.Set(participantKey, p)
		ctx := services.WithParticipant(c.Request.Context(), p)
		c.Request = c.Request.WithContext(logger.WithParticipant(ctx, p.String()))
		c.Next()
	}
}

// ParticipantFrom returns the participant stored by AuthMiddleware.
func ParticipantFrom(c *gin.Context) (domain.ParticipantID, bool) {
	v, ok := c.Get(participantKey)
	if !ok {
		return domain.ParticipantID{}, false
	}
	p, ok := v.(domain.ParticipantID)
	return p, ok
}
