package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rcarraroia/comademig/internal/clock"
	gatewaydomain "github.com/rcarraroia/comademig/internal/gateway/domain"
	"github.com/rcarraroia/comademig/internal/observability/logger"
	"github.com/rcarraroia/comademig/internal/observability/metrics"
	"github.com/rcarraroia/comademig/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultPollInterval    = time.Second
	DefaultPollMaxAttempts = 15
	DefaultPollTimeout     = 15 * time.Second
)

type PollerParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Gateway gatewaydomain.Gateway
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Poller struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	gateway gatewaydomain.Gateway
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewPoller(p PollerParams) domain.Poller {
	return &Poller{
		db:      p.DB,
		log:     p.Log.Named("payment.poller"),
		repo:    p.Repo,
		gateway: p.Gateway,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (p *Poller) Poll(ctx context.Context, paymentID string, opts domain.PollOptions) domain.PollResult {
	opts = withPollDefaults(opts)
	log := logger.WithContext(ctx, p.log).With(zap.String("payment_id", paymentID))

	start := p.clock.Now()
	result := domain.PollResult{}
	var (
		lastErr  error
		recorded gatewaydomain.PaymentStatus
	)

	finish := func() domain.PollResult {
		result.Duration = p.clock.Now().Sub(start)
		return result
	}

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			result.TimedOut = true
			result.Error = err.Error()
			return finish()
		}

		result.Attempts = attempt
		status, err := p.gateway.GetPaymentStatus(ctx, paymentID)
		if err != nil {
			lastErr = err
			p.metrics.RecordPollAttempt(ctx, "error")
			log.Warn("payment status check failed", zap.Int("attempt", attempt), zap.Error(err))
		} else {
			lastErr = nil
			result.Status = status
			p.metrics.RecordPollAttempt(ctx, string(status))
			if status != recorded {
				p.writeBack(ctx, log, paymentID, status)
				recorded = status
			}
			if opts.OnStatus != nil {
				opts.OnStatus(status, attempt)
			}

			switch {
			case status == gatewaydomain.StatusConfirmed:
				result.Success = true
				log.Info("payment confirmed", zap.Int("attempts", attempt))
				return finish()
			case status.IsTerminalFailure():
				result.Error = fmt.Sprintf("payment %s", statusWord(status))
				log.Info("payment settled without confirmation", zap.String("status", string(status)))
				return finish()
			}
		}

		if attempt == opts.MaxAttempts {
			break
		}
		if p.clock.Now().Sub(start)+opts.Interval > opts.Timeout {
			break
		}

		select {
		case <-ctx.Done():
			result.TimedOut = true
			result.Error = ctx.Err().Error()
			return finish()
		case <-p.clock.After(opts.Interval):
		}
	}

	result.TimedOut = true
	if lastErr != nil {
		result.Error = lastErr.Error()
	} else {
		result.Error = "payment confirmation timed out"
	}
	log.Info("payment confirmation timed out", zap.Int("attempts", result.Attempts))
	return finish()
}

func (p *Poller) writeBack(ctx context.Context, log *zap.Logger, paymentID string, status gatewaydomain.PaymentStatus) {
	if p.repo == nil || p.db == nil {
		return
	}
	if _, err := p.repo.UpdateStatus(context.WithoutCancel(ctx), p.db, paymentID, status, p.clock.Now().UTC()); err != nil {
		log.Warn("failed to record payment status", zap.String("status", string(status)), zap.Error(err))
	}
}

func withPollDefaults(opts domain.PollOptions) domain.PollOptions {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultPollMaxAttempts
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPollTimeout
	}
	return opts
}

func statusWord(status gatewaydomain.PaymentStatus) string {
	switch status {
	case gatewaydomain.StatusRefused:
		return "refused"
	case gatewaydomain.StatusCancelled:
		return "cancelled"
	default:
		return string(status)
	}
}
