package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rcarraroia/comademig/internal/clock"
	gatewaydomain "github.com/rcarraroia/comademig/internal/gateway/domain"
	"github.com/rcarraroia/comademig/internal/observability/logger"
	"github.com/rcarraroia/comademig/internal/payment/domain"
	"github.com/rcarraroia/comademig/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type InitiatorParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Gateway gatewaydomain.Gateway
	Clock   clock.Clock
}

type Initiator struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	gateway gatewaydomain.Gateway
	clock   clock.Clock
}

func NewInitiator(p InitiatorParams) domain.Initiator {
	return &Initiator{
		db:      p.DB,
		log:     p.Log.Named("payment.initiator"),
		genID:   p.GenID,
		repo:    p.Repo,
		gateway: p.Gateway,
		clock:   p.Clock,
	}
}

// staleReservation is how long an INITIATING record may sit without a
// gateway payment id before another request may create the payment again.
const staleReservation = time.Minute

func (s *Initiator) Initiate(ctx context.Context, req domain.InitiateRequest) (*domain.Initiation, error) {
	if err := validateInitiate(req); err != nil {
		return nil, err
	}
	log := logger.WithContext(ctx, s.log).With(
		zap.String("attempt_id", req.AttemptID),
		zap.String("method", string(req.Method)),
	)

	existing, err := s.repo.FindByAttemptID(ctx, s.db, req.AttemptID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.resume(ctx, log, req, existing)
	}

	now := s.clock.Now().UTC()
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "BRL"
	}
	record := domain.Record{
		ID:                s.genID.Generate(),
		AttemptID:         req.AttemptID,
		GatewayCustomerID: req.CustomerID,
		Method:            req.Method,
		AmountCents:       req.AmountCents,
		Currency:          currency,
		Status:            domain.StatusInitiating,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Reserve(ctx, s.db, &record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			existing, findErr := s.repo.FindByAttemptID(ctx, s.db, req.AttemptID)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return s.resume(ctx, log, req, existing)
			}
		}
		return nil, err
	}

	return s.create(ctx, log, req, record)
}

// create issues the gateway charge for a reserved record. The reservation is
// dropped only when the gateway rejected the request outright; after a
// timeout or a 5xx the charge may exist, so the record stays INITIATING and
// a retry looks the payment up by its external reference.
func (s *Initiator) create(ctx context.Context, log *zap.Logger, req domain.InitiateRequest, record domain.Record) (*domain.Initiation, error) {
	payment, err := s.gateway.CreatePayment(ctx, gatewaydomain.PaymentRequest{
		CustomerID:        req.CustomerID,
		BillingType:       req.Method,
		ValueCents:        req.AmountCents,
		DueDate:           s.clock.Now().UTC(),
		Description:       req.Description,
		ExternalReference: req.AttemptID,
	})
	if err != nil {
		if gatewaydomain.IsClientError(err) {
			if delErr := s.repo.DeleteReservation(context.WithoutCancel(ctx), s.db, int64(record.ID)); delErr != nil {
				log.Error("failed to release payment reservation", zap.Error(delErr))
			}
		} else {
			log.Warn("payment creation outcome unknown, keeping reservation", zap.Error(err))
		}
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return s.settle(ctx, log, req, record, payment, false)
}

// settle charges the card when needed and stores the gateway payment on the
// record.
func (s *Initiator) settle(ctx context.Context, log *zap.Logger, req domain.InitiateRequest, record domain.Record, payment *gatewaydomain.Payment, recovered bool) (*domain.Initiation, error) {
	now := s.clock.Now().UTC()
	status := payment.Status
	var refusal error
	if req.Method == gatewaydomain.BillingCreditCard && status == gatewaydomain.StatusPending {
		charged, chargeErr := s.gateway.ChargeCard(ctx, payment.ID, *req.Card)
		switch {
		case chargeErr == nil:
			status = charged.Status
		case gatewaydomain.IsClientError(chargeErr):
			status = gatewaydomain.StatusRefused
			refusal = chargeErr
		default:
			// The charge may still have gone through; the poller settles it.
			log.Warn("card charge outcome unknown", zap.String("payment_id", payment.ID), zap.Error(chargeErr))
			status = gatewaydomain.StatusPending
		}
	}

	record.GatewayPaymentID = &payment.ID
	record.Status = status
	record.UpdatedAt = now
	if payment.InvoiceURL != "" {
		record.InvoiceURL = &payment.InvoiceURL
	}
	if status == gatewaydomain.StatusConfirmed {
		record.ConfirmedAt = &now
	}
	if err := s.repo.AttachGatewayPayment(context.WithoutCancel(ctx), s.db, int64(record.ID), payment.ID, status, payment.InvoiceURL, now); err != nil {
		log.Error("failed to store gateway payment id", zap.String("payment_id", payment.ID), zap.Error(err))
	}

	initiation := &domain.Initiation{Record: record, Reused: recovered}
	if refusal != nil {
		log.Info("card refused", zap.String("payment_id", payment.ID), zap.Error(refusal))
		return initiation, fmt.Errorf("%w: %v", domain.ErrPaymentRefused, refusal)
	}
	if status.IsTerminalFailure() {
		return initiation, fmt.Errorf("%w: status %s", domain.ErrPaymentRefused, status)
	}

	log.Info("payment created",
		zap.String("payment_id", payment.ID),
		zap.String("status", string(status)),
		zap.Bool("recovered", recovered),
	)
	return initiation, nil
}

// resume answers a repeated attempt. A record still waiting for its gateway
// id is resolved against the gateway before anything is charged again.
func (s *Initiator) resume(ctx context.Context, log *zap.Logger, req domain.InitiateRequest, existing *domain.Record) (*domain.Initiation, error) {
	if existing.Status != domain.StatusInitiating && existing.PaymentID() != "" {
		return s.reuse(log, existing)
	}

	payment, err := s.gateway.FindPaymentByExternalReference(ctx, req.AttemptID)
	if err == nil {
		log.Info("payment recovered by external reference", zap.String("payment_id", payment.ID))
		return s.settle(ctx, log, req, *existing, payment, true)
	}
	if !errors.Is(err, gatewaydomain.ErrPaymentNotFound) {
		return nil, fmt.Errorf("find payment by reference: %w", err)
	}

	// Nothing at the gateway yet: either a create is still in flight or the
	// last one never reached it. Only a stale reservation may be retried.
	now := s.clock.Now().UTC()
	claimed, err := s.repo.ReclaimReservation(ctx, s.db, int64(existing.ID), now.Add(-staleReservation), now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, domain.ErrAttemptInProgress
	}
	log.Info("retrying payment creation for stale reservation")
	return s.create(ctx, log, req, *existing)
}

func (s *Initiator) reuse(log *zap.Logger, existing *domain.Record) (*domain.Initiation, error) {
	log.Info("payment attempt already initiated", zap.String("payment_id", existing.PaymentID()))
	initiation := &domain.Initiation{Record: *existing, Reused: true}
	if existing.Status.IsTerminalFailure() {
		return initiation, fmt.Errorf("%w: status %s", domain.ErrPaymentRefused, existing.Status)
	}
	return initiation, nil
}

func validateInitiate(req domain.InitiateRequest) error {
	if strings.TrimSpace(req.AttemptID) == "" {
		return domain.ErrInvalidAttemptID
	}
	if req.AmountCents <= 0 {
		return domain.ErrInvalidAmount
	}
	if !req.Method.Valid() {
		return domain.ErrInvalidMethod
	}
	if req.Method == gatewaydomain.BillingCreditCard && req.Card == nil {
		return domain.ErrMissingCard
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		return errors.New("missing_customer_id")
	}
	return nil
}
