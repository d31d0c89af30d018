package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/rcarraroia/comademig/internal/observability/context"
)

const (
	actorAdminKey   = "admin_key"
	actorCronSecret = "cron_secret"
)

// AdminKeyRequired authenticates operator requests with the static admin key.
// An unset key locks the admin surface instead of opening it.
func (s *Server) AdminKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !bearerMatches(c, s.cfg.AdminAPIKey) {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), actorAdminKey, "admin")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// SchedulerAuthRequired guards the reconcile trigger with the cron secret or
// the admin key. Non-POST requests pass through so the handler answers 405.
func (s *Server) SchedulerAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		actor := ""
		switch {
		case bearerMatches(c, s.cfg.CronSecret):
			actor = actorCronSecret
		case bearerMatches(c, s.cfg.AdminAPIKey):
			actor = actorAdminKey
		default:
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), actor, "scheduler")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// bearerMatches compares the bearer token in constant time. An empty
// expected value never matches.
func bearerMatches(c *gin.Context, expected string) bool {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return false
	}
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) != 2 || parts[0] != "Bearer" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(parts[1]), []byte(expected)) == 1
}
