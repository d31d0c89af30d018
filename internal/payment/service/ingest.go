package service

import (
	"context"
	"strings"

	"github.com/rcarraroia/comademig/internal/clock"
	gatewaydomain "github.com/rcarraroia/comademig/internal/gateway/domain"
	"github.com/rcarraroia/comademig/internal/observability/logger"
	"github.com/rcarraroia/comademig/internal/observability/metrics"
	"github.com/rcarraroia/comademig/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type IngestParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Ingester struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewIngester(p IngestParams) domain.EventIngester {
	return &Ingester{
		db:      p.DB,
		log:     p.Log.Named("payment.webhook"),
		repo:    p.Repo,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

// Ingest reports whether a stored record changed. Events for payments this
// service never created are acknowledged and dropped.
func (s *Ingester) Ingest(ctx context.Context, event gatewaydomain.PaymentEvent) (bool, error) {
	paymentID := strings.TrimSpace(event.PaymentID)
	if paymentID == "" {
		return false, gatewaydomain.ErrInvalidPayload
	}
	log := logger.WithContext(ctx, s.log).With(
		zap.String("provider", event.Provider),
		zap.String("event_type", event.EventType),
		zap.String("payment_id", paymentID),
	)
	s.metrics.RecordPaymentEvent(ctx, event.Provider, event.EventType)

	applied, err := s.repo.UpdateStatus(ctx, s.db, paymentID, event.Status, s.clock.Now().UTC())
	if err != nil {
		return false, err
	}
	if !applied {
		log.Info("payment event did not change any record")
		return false, nil
	}
	log.Info("payment event applied", zap.String("status", string(event.Status)))
	return true, nil
}
