package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/rcarraroia/comademig/internal/clock"
	"github.com/rcarraroia/comademig/internal/config"
	"github.com/rcarraroia/comademig/internal/notification/domain"
	"github.com/rcarraroia/comademig/internal/observability/logger"
	"github.com/rcarraroia/comademig/internal/providers/email"
	"github.com/rcarraroia/comademig/internal/providers/slack"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	Clock  clock.Clock
	Config config.Config
	Slack  slack.Provider `optional:"true"`
	Email  email.Provider `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	clock       clock.Clock
	slack       slack.Provider
	email       email.Provider
	adminEmails []string
}

func New(p Params) domain.Notifier {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("notification"),
		genID:       p.GenID,
		repo:        p.Repo,
		clock:       p.Clock,
		slack:       p.Slack,
		email:       p.Email,
		adminEmails: p.Config.AdminEmails,
	}
}

func (s *Service) Notify(ctx context.Context, req domain.NotifyRequest) (*domain.Notification, error) {
	if strings.TrimSpace(req.Type) == "" || strings.TrimSpace(req.Title) == "" {
		return nil, domain.ErrInvalidNotification
	}
	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}

	n := &domain.Notification{
		ID:        s.genID.Generate(),
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Data:      datatypes.JSONMap(req.Data),
		Priority:  priority,
		Status:    domain.StatusUnread,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, n); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}

	s.fanOut(ctx, n)
	return n, nil
}

// fanOut pushes to Slack and email concurrently. Failures are logged.
func (s *Service) fanOut(ctx context.Context, n *domain.Notification) {
	log := logger.WithContext(ctx, s.log).With(
		zap.String("notification_type", n.Type),
		zap.String("notification_id", n.ID.String()),
	)

	var g errgroup.Group
	if s.slack != nil {
		g.Go(func() error {
			text := fmt.Sprintf("[%s] %s\n%s", strings.ToUpper(n.Priority), n.Title, n.Message)
			if err := s.slack.PostMessage(ctx, "", text); err != nil {
				return fmt.Errorf("slack: %w", err)
			}
			return nil
		})
	}
	if s.email != nil && len(s.adminEmails) > 0 && n.Type == domain.TypeFallbackSystemFailure {
		g.Go(func() error {
			data := map[string]any{"subject": n.Title}
			for k, v := range n.Data {
				data[k] = v
			}
			if err := s.email.SendTemplate(ctx, s.adminEmails, "fallback_failure", data); err != nil {
				return fmt.Errorf("email: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("notification fan-out incomplete", zap.Error(err))
	}
}
