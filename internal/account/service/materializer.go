package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"github.com/rcarraroia/comademig/internal/account/domain"
	"github.com/rcarraroia/comademig/internal/account/password"
	"github.com/rcarraroia/comademig/internal/clock"
	"github.com/rcarraroia/comademig/internal/config"
	gatewaydomain "github.com/rcarraroia/comademig/internal/gateway/domain"
	"github.com/rcarraroia/comademig/internal/observability/logger"
	plandomain "github.com/rcarraroia/comademig/internal/plan/domain"
	"github.com/rcarraroia/comademig/internal/providers/email"
	"github.com/rcarraroia/comademig/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultCommissionPercent = 10

var errSubscriptionExists = errors.New("subscription_exists")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Plans   plandomain.Service
	Gateway gatewaydomain.Gateway
	Clock   clock.Clock
	Email   email.Provider                   `optional:"true"`
	Config  *config.RegistrationConfigHolder `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	plans   plandomain.Service
	gateway gatewaydomain.Gateway
	clock   clock.Clock
	email   email.Provider
	config  *config.RegistrationConfigHolder
}

func New(p Params) domain.Materializer {
	mailer := p.Email
	if mailer == nil {
		mailer = email.Discard{}
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("account.materializer"),
		genID:   p.GenID,
		repo:    p.Repo,
		plans:   p.Plans,
		gateway: p.Gateway,
		clock:   p.Clock,
		email:   mailer,
		config:  p.Config,
	}
}

func (s *Service) Materialize(ctx context.Context, req domain.MaterializeRequest) (*domain.MaterializeResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	log := logger.WithContext(ctx, s.log).With(
		zap.String("payment_id", req.PaymentID),
		zap.String("source", req.Source),
	)

	existing, err := s.repo.FindSubscriptionByPaymentID(ctx, s.db, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Info("payment already materialized", zap.String("user_id", existing.UserID))
		return &domain.MaterializeResult{UserID: existing.UserID, SubscriptionID: int64(existing.ID), AlreadyExisted: true}, nil
	}

	if err := s.verifyConfirmed(ctx, req.PaymentID); err != nil {
		return nil, err
	}

	plan, err := s.plans.Get(ctx, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}

	confirmedAt := req.ConfirmedAt.UTC()
	if confirmedAt.IsZero() {
		confirmedAt = s.clock.Now().UTC()
	}

	var result domain.MaterializeResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userID, err := s.resolveUser(ctx, tx, req.Registrant, confirmedAt)
		if err != nil {
			return err
		}

		profile := domain.Profile{
			UserID:                  userID,
			Name:                    strings.TrimSpace(req.Registrant.Name),
			Email:                   strings.ToLower(strings.TrimSpace(req.Registrant.Email)),
			CPF:                     digitsOnly(req.Registrant.CPF),
			Phone:                   digitsOnly(req.Registrant.Phone),
			Address:                 datatypes.NewJSONType(req.Registrant.Address),
			MemberType:              req.Registrant.MemberType,
			Status:                  domain.ProfileStatusActive,
			GatewayCustomerID:       req.CustomerID,
			PaymentConfirmedAt:      &confirmedAt,
			RegistrationFlowVersion: domain.FlowVersion,
			CreatedAt:               confirmedAt,
			UpdatedAt:               confirmedAt,
		}
		if err := s.repo.UpsertProfile(ctx, tx, &profile); err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}

		sub := domain.Subscription{
			ID:                s.genID.Generate(),
			UserID:            userID,
			PlanID:            plan.ID,
			Status:            domain.SubscriptionStatusActive,
			ValueCents:        plan.ValueCents,
			StartDate:         confirmedAt,
			NextBillingDate:   plan.Cycle.NextBillingDate(confirmedAt),
			GatewayPaymentID:  req.PaymentID,
			GatewayCustomerID: req.CustomerID,
			ProcessingContext: processingContext(req),
			CreatedAt:         confirmedAt,
			UpdatedAt:         confirmedAt,
		}
		if err := s.repo.InsertSubscription(ctx, tx, &sub); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return errSubscriptionExists
			}
			return fmt.Errorf("insert subscription: %w", err)
		}

		result = domain.MaterializeResult{UserID: userID, SubscriptionID: int64(sub.ID)}
		return nil
	})
	if lostRace(err) {
		// Another materialization of the same payment may have committed
		// between our reads and our writes.
		existing, findErr := s.repo.FindSubscriptionByPaymentID(ctx, s.db, req.PaymentID)
		if findErr != nil {
			return nil, findErr
		}
		if existing != nil {
			log.Info("payment materialized concurrently", zap.String("user_id", existing.UserID))
			return &domain.MaterializeResult{UserID: existing.UserID, SubscriptionID: int64(existing.ID), AlreadyExisted: true}, nil
		}
	}
	if err != nil {
		return nil, err
	}

	result.CommissionCreated = s.createCommission(ctx, log, req, result.UserID, plan)
	s.sendWelcome(ctx, log, req.Registrant, plan, confirmedAt)

	log.Info("account materialized",
		zap.String("user_id", result.UserID),
		zap.Int64("subscription_id", result.SubscriptionID),
		zap.Bool("commission_created", result.CommissionCreated),
	)
	return &result, nil
}

// verifyConfirmed re-reads the gateway status right before any write, so a
// payment refunded after the caller's check never becomes an account.
func (s *Service) verifyConfirmed(ctx context.Context, paymentID string) error {
	status, err := s.gateway.GetPaymentStatus(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("verify payment status: %w", err)
	}
	if status != gatewaydomain.StatusConfirmed {
		return fmt.Errorf("%w: %s", domain.ErrPaymentUnconfirmed, status)
	}
	return nil
}

func lostRace(err error) bool {
	return errors.Is(err, errSubscriptionExists) || errors.Is(err, domain.ErrEmailTaken) || db.IsDuplicateKeyErr(err)
}

// resolveUser reuses a user this flow created earlier for the same email and
// refuses emails owned by accounts from other flows.
func (s *Service) resolveUser(ctx context.Context, tx *gorm.DB, reg domain.Registrant, now time.Time) (string, error) {
	user, err := s.repo.FindUserByEmail(ctx, tx, reg.Email)
	if err != nil {
		return "", err
	}
	if user != nil {
		profile, err := s.repo.FindProfile(ctx, tx, user.ID)
		if err != nil {
			return "", err
		}
		if profile != nil && profile.RegistrationFlowVersion != domain.FlowVersion {
			return "", domain.ErrEmailTaken
		}
		return user.ID, nil
	}

	user = &domain.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(reg.Email)),
		PasswordHash: reg.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.InsertUser(ctx, tx, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return "", domain.ErrEmailTaken
		}
		return "", fmt.Errorf("insert user: %w", err)
	}
	return user.ID, nil
}

func (s *Service) createCommission(ctx context.Context, log *zap.Logger, req domain.MaterializeRequest, userID string, plan *plandomain.Plan) bool {
	if strings.TrimSpace(req.AffiliateID) == "" {
		return false
	}

	affiliate, err := s.repo.FindActiveAffiliate(ctx, s.db, req.AffiliateID)
	if err != nil {
		log.Warn("affiliate lookup failed", zap.Error(err))
		return false
	}
	if affiliate == nil {
		log.Info("referral ignored, affiliate not active", zap.String("affiliate_ref", req.AffiliateID))
		return false
	}
	if affiliate.UserID != nil && *affiliate.UserID == userID {
		return false
	}

	pct := s.defaultPercent()
	if affiliate.CommissionPercentage != nil {
		pct = *affiliate.CommissionPercentage
	}
	amount, err := commissionAmount(plan.Price(), pct)
	if err != nil {
		log.Warn("commission amount", zap.Error(err))
		return false
	}

	created, err := s.repo.InsertCommission(ctx, s.db, &domain.Commission{
		ID:             s.genID.Generate(),
		AffiliateID:    affiliate.ID,
		ReferredUserID: userID,
		PaymentID:      req.PaymentID,
		AmountCents:    amount,
		Percentage:     pct,
		Status:         domain.CommissionStatusPending,
		CommissionType: domain.CommissionTypeFiliacao,
		CreatedAt:      s.clock.Now().UTC(),
	})
	if err != nil {
		log.Warn("failed to record commission", zap.String("affiliate_id", affiliate.ID), zap.Error(err))
		return false
	}
	return created
}

func (s *Service) defaultPercent() int {
	if s.config == nil {
		return defaultCommissionPercent
	}
	return s.config.Get().Flow.DefaultCommissionPercent
}

func (s *Service) sendWelcome(ctx context.Context, log *zap.Logger, reg domain.Registrant, plan *plandomain.Plan, confirmedAt time.Time) {
	err := s.email.SendTemplate(ctx, []string{reg.Email}, "welcome", map[string]any{
		"name":              reg.Name,
		"plan_name":         plan.Name,
		"next_billing_date": plan.Cycle.NextBillingDate(confirmedAt).Format("02/01/2006"),
	})
	if err != nil {
		log.Warn("welcome email not sent", zap.Error(err))
	}
}

// commissionAmount splits the price so that commission plus remainder equal
// the price to the cent.
func commissionAmount(price *money.Money, pct int) (int64, error) {
	if pct <= 0 {
		return 0, nil
	}
	if pct >= 100 {
		return price.Amount(), nil
	}
	parts, err := price.Allocate(pct, 100-pct)
	if err != nil {
		return 0, err
	}
	return parts[0].Amount(), nil
}

func processingContext(req domain.MaterializeRequest) datatypes.JSONMap {
	ctx := datatypes.JSONMap{
		"source":              req.Source,
		"flow_version":        domain.FlowVersion,
		"gateway_customer_id": req.CustomerID,
	}
	if req.AffiliateID != "" {
		ctx["affiliate_ref"] = req.AffiliateID
	}
	if req.Client.UserAgent != "" || req.Client.IP != "" {
		client := map[string]any{"ip": req.Client.IP}
		if req.Client.UserAgent != "" {
			ua := useragent.New(req.Client.UserAgent)
			browser, version := ua.Browser()
			client["browser"] = browser
			client["browser_version"] = version
			client["os"] = ua.OS()
			client["mobile"] = ua.Mobile()
		}
		ctx["client"] = client
	}
	return ctx
}

func validate(req domain.MaterializeRequest) error {
	if strings.TrimSpace(req.PaymentID) == "" {
		return domain.ErrMissingPaymentID
	}
	if strings.TrimSpace(req.PlanID) == "" {
		return domain.ErrMissingPlanID
	}
	if !strings.Contains(req.Registrant.Email, "@") {
		return domain.ErrInvalidEmail
	}
	if !req.Registrant.MemberType.Valid() {
		return domain.ErrInvalidMemberType
	}
	if !password.IsHash(req.Registrant.PasswordHash) {
		return domain.ErrInvalidPassword
	}
	return nil
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
