package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Middleware throttles a route by client IP under policy. Denials and store
// failures produce the same 429 response.
func Middleware(limiter *Limiter, policy Policy, message string, logger *slog.Logger) gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(policy.Window.Seconds()))
	return func(c *gin.Context) {
		allowed, err := limiter.AllowPolicy(c.Request.Context(), c.ClientIP(), policy)
		if err != nil {
			logger.Error("Rate limit check failed, denying request",
				"action", policy.Action,
				"path", c.Request.URL.Path,
				"error", err,
			)
		}
		if !allowed {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": message,
				"errors":  []string{"rate_limit_exceeded"},
			})
			return
		}
		c.Next()
	}
}
