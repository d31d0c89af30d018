package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/rcarraroia/comademig/internal/account/domain"
	"github.com/rcarraroia/comademig/internal/clock"
	"github.com/rcarraroia/comademig/internal/config"
	fallbackdomain "github.com/rcarraroia/comademig/internal/fallback/domain"
	gatewaydomain "github.com/rcarraroia/comademig/internal/gateway/domain"
	notificationdomain "github.com/rcarraroia/comademig/internal/notification/domain"
	obsmetrics "github.com/rcarraroia/comademig/internal/observability/metrics"
	"github.com/rcarraroia/comademig/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	jobName = "pending_registrations"

	SourceReconciler = "reconciler"
)

var ErrInvalidConfig = errors.New("invalid_reconciler_config")

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         fallbackdomain.Repository
	Gateway      gatewaydomain.Gateway
	Materializer accountdomain.Materializer
	Notifier     notificationdomain.Notifier
	Clock        clock.Clock
	Lock         *ratelimit.RunLock                `optional:"true"`
	Metrics      *obsmetrics.ReconcilerMetrics     `optional:"true"`
	Settings     *config.RegistrationConfigHolder `optional:"true"`
	Config       Config                            `optional:"true"`
}

// Reconciler finishes registrations whose payment outlived the live request.
type Reconciler struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         fallbackdomain.Repository
	gateway      gatewaydomain.Gateway
	materializer accountdomain.Materializer
	notifier     notificationdomain.Notifier
	clock        clock.Clock
	lock         *ratelimit.RunLock
	metrics      *obsmetrics.ReconcilerMetrics
	settings     *config.RegistrationConfigHolder
	cfg          Config
}

// Report summarizes one run. Errors lists "<payment_id>: <message>" for every
// row that did not complete, including rows still awaiting confirmation.
type Report struct {
	Success   bool     `json:"success"`
	Processed int      `json:"processed"`
	Completed int      `json:"completed"`
	// Failed counts rows that reached the retry ceiling in this run.
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
	Duration  int64    `json:"duration"`
	Message   string   `json:"message,omitempty"`
}

func New(p Params) (*Reconciler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Repo == nil || p.Gateway == nil ||
		p.Materializer == nil || p.Notifier == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	m := p.Metrics
	if m == nil {
		m = obsmetrics.Reconciler()
	}
	return &Reconciler{
		db:           p.DB,
		log:          p.Log.Named("reconciler").With(zap.String("component", "reconciler")),
		genID:        p.GenID,
		repo:         p.Repo,
		gateway:      p.Gateway,
		materializer: p.Materializer,
		notifier:     p.Notifier,
		clock:        p.Clock,
		lock:         p.Lock,
		metrics:      m,
		settings:     p.Settings,
		cfg:          p.Config.withDefaults(),
	}, nil
}

// config re-reads the hot-reloadable settings on every run.
func (r *Reconciler) config() Config {
	if r.settings == nil {
		return r.cfg
	}
	return fromSettings(r.settings.Get().Reconciler).withDefaults()
}

func (r *Reconciler) RunOnce(parent context.Context) (Report, error) {
	cfg := r.config()
	start := r.clock.Now()
	report := Report{Errors: []string{}}

	ctx, cancel := context.WithTimeout(withLogContext(parent), cfg.JobTimeout)
	defer cancel()

	token, acquired, err := r.lock.Acquire(ctx, cfg.LockTTL)
	if err != nil {
		// The processing lease still prevents double work on a row.
		r.logger(ctx).Warn("reconciler run lock unavailable", zap.Error(err))
		acquired = true
	}
	if !acquired {
		report.Success = true
		report.Message = "reconciler run already in progress"
		return report, nil
	}
	if token != "" {
		defer func() {
			if err := r.lock.Release(context.WithoutCancel(ctx), token); err != nil {
				r.logger(ctx).Warn("reconciler run lock release failed", zap.Error(err))
			}
		}()
	}

	run := &jobRun{
		runID:     r.genID.Generate().String(),
		batchSize: cfg.BatchSize,
		startedAt: start,
	}
	r.metrics.IncJobRun(jobName)
	r.logJobStart(ctx, run)

	err = r.process(ctx, cfg, run, &report)

	duration := r.clock.Now().Sub(start)
	report.Duration = duration.Milliseconds()
	r.metrics.ObserveJobDuration(jobName, duration)
	run.failed = err != nil
	r.logJobFinish(ctx, run, duration)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			r.metrics.IncJobTimeout(jobName)
		}
		r.metrics.IncJobError(jobName, err)
		report.Message = err.Error()
		return report, fmt.Errorf("%s: %w", jobName, err)
	}

	report.Success = true
	report.Message = fmt.Sprintf("processed %d pending registrations", report.Processed)
	return report, nil
}

func (r *Reconciler) process(ctx context.Context, cfg Config, run *jobRun, report *Report) error {
	now := r.clock.Now().UTC()
	recovered, err := r.repo.RecoverStale(ctx, r.db, now.Add(-cfg.RecoverAfter), now)
	if err != nil {
		return fmt.Errorf("recover stale leases: %w", err)
	}
	if recovered > 0 {
		r.logger(ctx).Warn("reconciler recovered stale leases", zap.Int64("count", recovered))
	}

	items, err := r.repo.Claim(ctx, r.db, cfg.BatchSize, cfg.RetryCeiling, now)
	if err != nil {
		return fmt.Errorf("claim pending registrations: %w", err)
	}

	for i, item := range items {
		if i > 0 && cfg.ItemDelay > 0 {
			select {
			case <-ctx.Done():
				r.releaseUnprocessed(ctx, items[i:])
				return ctx.Err()
			case <-r.clock.After(cfg.ItemDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			r.releaseUnprocessed(ctx, items[i:])
			return err
		}

		report.Processed++
		run.processed++
		r.reconcileItem(ctx, cfg, run, item, report)
	}
	return nil
}

func (r *Reconciler) reconcileItem(ctx context.Context, cfg Config, run *jobRun, item fallbackdomain.PendingRegistration, report *Report) {
	status, err := r.gateway.GetPaymentStatus(ctx, item.PaymentID)
	if err != nil {
		if gatewaydomain.IsTransient(err) {
			r.release(ctx, run, item, fmt.Sprintf("payment status unavailable: %v", err), report)
			return
		}
		r.fail(ctx, cfg.RetryCeiling, run, item, fmt.Errorf("check payment status: %w", err), report)
		return
	}

	switch {
	case status == gatewaydomain.StatusConfirmed:
	case status.IsTerminalFailure():
		// A refused or cancelled payment will never confirm; escalate now.
		r.fail(ctx, item.RetryCount+1, run, item, fmt.Errorf("payment %s", status), report)
		return
	default:
		r.release(ctx, run, item, fmt.Sprintf("payment not confirmed (%s)", status), report)
		return
	}

	data := item.RegistrationData.Data()
	_, err = r.materializer.Materialize(ctx, accountdomain.MaterializeRequest{
		PaymentID:   item.PaymentID,
		CustomerID:  item.CustomerID,
		PlanID:      item.PlanID,
		AffiliateID: item.Affiliate(),
		Registrant:  data.Registrant,
		ConfirmedAt: r.clock.Now().UTC(),
		Source:      SourceReconciler,
		Client:      data.Client,
	})
	if errors.Is(err, accountdomain.ErrPaymentUnconfirmed) {
		r.release(ctx, run, item, err.Error(), report)
		return
	}
	if err != nil {
		r.fail(ctx, cfg.RetryCeiling, run, item, fmt.Errorf("materialize account: %w", err), report)
		return
	}

	if err := r.repo.MarkCompleted(ctx, r.db, item.ID.Int64(), r.clock.Now().UTC()); err != nil {
		r.fail(ctx, cfg.RetryCeiling, run, item, fmt.Errorf("mark completed: %w", err), report)
		return
	}
	report.Completed++
	run.completed++
	r.metrics.AddItems(obsmetrics.ReconcilerOutcomeCompleted, 1)
	r.logger(ctx).Info("reconciler.item.completed",
		zap.String("item_id", item.ID.String()),
		zap.String("payment_id", item.PaymentID),
	)
}

// release hands the lease back without spending a retry.
func (r *Reconciler) release(ctx context.Context, run *jobRun, item fallbackdomain.PendingRegistration, reason string, report *Report) {
	run.deferred++
	report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", item.PaymentID, reason))
	r.metrics.AddItems(obsmetrics.ReconcilerOutcomeNotConfirmed, 1)
	if err := r.repo.Release(ctx, r.db, item.ID.Int64(), reason, r.clock.Now().UTC()); err != nil {
		r.logger(ctx).Error("reconciler release failed",
			zap.String("item_id", item.ID.String()),
			zap.Error(err),
		)
	}
}

func (r *Reconciler) fail(ctx context.Context, ceiling int, run *jobRun, item fallbackdomain.PendingRegistration, cause error, report *Report) {
	reason := cause.Error()
	report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", item.PaymentID, reason))

	exhausted, err := r.repo.RecordFailure(ctx, r.db, item.ID.Int64(), reason, ceiling, r.clock.Now().UTC())
	r.logItemError(ctx, run, item, cause, exhausted)
	if err != nil {
		r.logger(ctx).Error("reconciler record failure failed",
			zap.String("item_id", item.ID.String()),
			zap.Error(err),
		)
		return
	}
	if !exhausted {
		r.metrics.AddItems(obsmetrics.ReconcilerOutcomeRetry, 1)
		return
	}
	report.Failed++
	r.metrics.AddItems(obsmetrics.ReconcilerOutcomeExhausted, 1)
	r.escalate(ctx, item, reason)
}

func (r *Reconciler) escalate(ctx context.Context, item fallbackdomain.PendingRegistration, reason string) {
	_, err := r.notifier.Notify(context.WithoutCancel(ctx), notificationdomain.NotifyRequest{
		Type:    notificationdomain.TypeFallbackSystemFailure,
		Title:   "Falha no processamento de filiação",
		Message: fmt.Sprintf("A filiação do pagamento %s esgotou as tentativas automáticas e precisa de intervenção manual.", item.PaymentID),
		Data: map[string]any{
			"item_id":                      item.ID.String(),
			"payment_id":                   item.PaymentID,
			"error":                        reason,
			"requires_manual_intervention": true,
		},
		Priority: notificationdomain.PriorityHigh,
	})
	if err != nil {
		r.logger(ctx).Error("reconciler escalation failed",
			zap.String("item_id", item.ID.String()),
			zap.Error(err),
		)
	}
}

func (r *Reconciler) releaseUnprocessed(ctx context.Context, items []fallbackdomain.PendingRegistration) {
	ctx = context.WithoutCancel(ctx)
	now := r.clock.Now().UTC()
	for _, item := range items {
		if err := r.repo.Release(ctx, r.db, item.ID.Int64(), "run interrupted", now); err != nil {
			r.logger(ctx).Warn("reconciler release failed",
				zap.String("item_id", item.ID.String()),
				zap.Error(err),
			)
		}
	}
}

func (r *Reconciler) RunForever(ctx context.Context) {
	interval := r.config().RunInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	nextRun := r.clock.Now().Add(interval)

	for {
		if lag := r.clock.Now().Sub(nextRun); lag > 0 {
			r.metrics.ObserveRunLoopLag(lag)
		}
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Warn("reconciler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(interval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
