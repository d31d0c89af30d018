package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
)

const (
	keyRegistrationClient = "registration:client:%s"

	// Five registrations per client per minute.
	registrationRate  = 5.0 / 60.0
	registrationBurst = 5
)

type RegistrationLimiter struct {
	bucket *TokenBucket
}

func NewRegistrationLimiter(client *redis.Client) *RegistrationLimiter {
	if client == nil {
		return nil
	}
	return &RegistrationLimiter{bucket: NewTokenBucket(client, registrationRate, registrationBurst)}
}

func (l *RegistrationLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow consumes one token for clientKey. A disabled limiter allows everything.
func (l *RegistrationLimiter) Allow(ctx context.Context, clientKey string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		clientKey = "unknown"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyRegistrationClient, clientKey))
}
