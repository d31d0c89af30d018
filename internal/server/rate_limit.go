package server

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rcarraroia/comademig/internal/observability/logger"
	"go.uber.org/zap"
)

const rateLimitReasonClientRate = "client-rate"

// RegistrationRateLimit throttles registrations per client address. When the
// limiter backend is unreachable the request goes through.
func (s *Server) RegistrationRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil || !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		result, err := s.limiter.Allow(ctx, c.ClientIP())
		if err != nil {
			logger.WithContext(ctx, s.log).Warn("registration rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			s.denyRateLimit(c, endpoint, rateLimitReasonClientRate, retryAfter)
			return
		}

		s.recordRateLimitAllowed(ctx, endpoint)
		c.Next()
	}
}

func (s *Server) denyRateLimit(c *gin.Context, endpoint, reason string, retryAfter int) {
	ctx := c.Request.Context()
	logger.WithContext(ctx, s.log).Warn("registration rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	if s.obsMetrics != nil {
		s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, reason)
	}

	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func (s *Server) recordRateLimitAllowed(ctx context.Context, endpoint string) {
	if s.obsMetrics == nil {
		return
	}
	s.obsMetrics.RecordRateLimitAllowed(ctx, endpoint)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
