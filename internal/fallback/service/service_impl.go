package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/rcarraroia/comademig/internal/clock"
	"github.com/rcarraroia/comademig/internal/fallback/domain"
	"github.com/rcarraroia/comademig/internal/observability/logger"
	"github.com/rcarraroia/comademig/internal/observability/metrics"
	"github.com/rcarraroia/comademig/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	clock   clock.Clock
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("fallback.queue"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *Service) Store(ctx context.Context, req domain.StoreRequest) (bool, error) {
	paymentID := strings.TrimSpace(req.PaymentID)
	if paymentID == "" {
		return false, domain.ErrMissingPaymentID
	}
	if req.Source != domain.SourceConfirmationTimeout && req.Source != domain.SourceMaterializationError {
		return false, domain.ErrInvalidSource
	}

	now := s.clock.Now().UTC()
	item := domain.PendingRegistration{
		ID:               s.genID.Generate(),
		PaymentID:        paymentID,
		CustomerID:       req.CustomerID,
		RegistrationData: datatypes.NewJSONType(req.Data),
		PlanID:           req.PlanID,
		PaymentMethod:    req.PaymentMethod,
		AmountCents:      req.AmountCents,
		Status:           domain.StatusPending,
		Source:           req.Source,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if ref := strings.TrimSpace(req.AffiliateID); ref != "" {
		item.AffiliateID = &ref
	}
	if req.LastError != "" {
		lastErr := req.LastError
		item.LastError = &lastErr
	}

	stored, err := s.repo.Insert(ctx, s.db, &item)
	if err != nil {
		return false, err
	}

	log := logger.WithContext(ctx, s.log).With(
		zap.String("payment_id", paymentID),
		zap.String("source", string(req.Source)),
	)
	if !stored {
		log.Info("registration already queued")
		return false, nil
	}
	s.metrics.RecordFallbackStored(ctx, string(req.Source))
	log.Info("registration queued for reconciliation")
	return true, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	if req.Status != "" && !req.Status.Valid() {
		return domain.ListResponse{}, domain.ErrInvalidStatus
	}

	filter := domain.ListFilter{Status: req.Status, Limit: req.Limit() + 1}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListResponse{}, err
		}
		afterID, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return domain.ListResponse{}, pagination.ErrInvalidPageToken
		}
		filter.AfterID = afterID
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}

	page, info, err := pagination.BuildCursorPageInfo(items, req.Limit(), func(item *domain.PendingRegistration) pagination.Cursor {
		return pagination.NewCursor(item.ID.String(), item.CreatedAt)
	})
	if err != nil {
		return domain.ListResponse{}, err
	}
	if page == nil {
		page = []*domain.PendingRegistration{}
	}
	return domain.ListResponse{Items: page, PageInfo: info}, nil
}
