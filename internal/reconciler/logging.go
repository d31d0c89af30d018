package reconciler

import (
	"context"
	"time"

	fallbackdomain "github.com/rcarraroia/comademig/internal/fallback/domain"
	obscontext "github.com/rcarraroia/comademig/internal/observability/context"
	obslogger "github.com/rcarraroia/comademig/internal/observability/logger"
	obsmetrics "github.com/rcarraroia/comademig/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun tallies one pass over the fallback queue for the finish log line.
type jobRun struct {
	runID     string
	batchSize int
	startedAt time.Time

	processed int
	completed int
	deferred  int
	retried   int
	exhausted int
	failed    bool
}

func (j *jobRun) fields(duration time.Duration) []zap.Field {
	return []zap.Field{
		zap.String("job", jobName),
		zap.String("run_id", j.runID),
		zap.Int64("duration_ms", duration.Milliseconds()),
		zap.Int("processed", j.processed),
		zap.Int("completed", j.completed),
		zap.Int("deferred", j.deferred),
		zap.Int("retried", j.retried),
		zap.Int("exhausted", j.exhausted),
	}
}

func withLogContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return obscontext.WithActor(ctx, "system", "reconciler")
}

func (r *Reconciler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, r.log)
}

func (r *Reconciler) logJobStart(ctx context.Context, run *jobRun) {
	r.logger(ctx).Info("reconciler.job.start",
		zap.String("job", jobName),
		zap.String("run_id", run.runID),
		zap.Int("batch_size", run.batchSize),
	)
}

// logJobFinish warns when the run aborted or any row was escalated.
func (r *Reconciler) logJobFinish(ctx context.Context, run *jobRun, duration time.Duration) {
	log := r.logger(ctx)
	if run.failed || run.exhausted > 0 {
		log.Warn("reconciler.job.finish", run.fields(duration)...)
		return
	}
	log.Info("reconciler.job.finish", run.fields(duration)...)
}

func (r *Reconciler) logItemError(ctx context.Context, run *jobRun, item fallbackdomain.PendingRegistration, err error, exhausted bool) {
	if exhausted {
		run.exhausted++
	} else {
		run.retried++
	}
	r.logger(ctx).Error("reconciler.item.failed",
		zap.String("run_id", run.runID),
		zap.String("item_id", item.ID.String()),
		zap.String("payment_id", item.PaymentID),
		zap.Int("attempt", item.RetryCount+1),
		zap.Bool("exhausted", exhausted),
		zap.String("error_type", obsmetrics.ClassifyReconcilerJobReason(err)),
		zap.Error(err),
	)
}
