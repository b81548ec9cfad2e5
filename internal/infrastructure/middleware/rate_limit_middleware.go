package middleware

import (
	"net"
	"net/http"
	"strings"

	"rillcall/pkg/config"
	apperrors "rillcall/pkg/errors"
	"rillcall/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientIP prefers the first X-Forwarded-For hop, then the remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NewHTTPRateLimitMiddleware limits UI requests per client address. It is a
// pass-through when rate limiting is disabled.
func NewHTTPRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	var limiter *ratelimit.Keyed[string]
	if cfg.RateLimiting.Enabled {
		limiter = ratelimit.New[string](rate.Limit(cfg.RateLimiting.HTTP.RequestsPerSecond), cfg.RateLimiting.HTTP.Burst)
	}

	return func(c *gin.Context) {
		if !limiter.Allow(clientIP(c.Request)) {
			abortWithAppError(c, apperrors.NewRateLimitError())
			return
		}
		c.Next()
	}
}
