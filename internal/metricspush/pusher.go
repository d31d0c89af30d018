package metricspush

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rcarraroia/comademig/internal/config"
	"go.uber.org/zap"
)

const (
	ExporterRemoteWrite = "prometheus_remote_write"
	ExporterPushgateway = "prometheus_pushgateway"

	pushTimeout = 5 * time.Second
)

// Pusher ships a snapshot of gathered metrics to a remote collector.
type Pusher interface {
	Push(ctx context.Context, gatherer prometheus.Gatherer) error
}

// NewPusher returns nil when pushing is not configured. A configuration that
// cannot work is logged and also yields nil; the reconciler keeps running.
func NewPusher(cfg config.Config, logger *zap.Logger) Pusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	push := cfg.MetricsPush
	if push.Exporter == "" {
		return nil
	}
	log := logger.With(zap.String("exporter", push.Exporter))
	if push.Endpoint == "" {
		log.Warn("metrics push disabled: METRICS_PUSH_ENDPOINT is empty")
		return nil
	}
	if u, err := url.ParseRequestURI(push.Endpoint); err != nil || u.Host == "" {
		log.Warn("metrics push disabled: invalid METRICS_PUSH_ENDPOINT", zap.String("endpoint", push.Endpoint))
		return nil
	}

	job := strings.TrimSpace(cfg.AppName) + "_reconciler"
	labels := map[string]string{"environment": strings.TrimSpace(cfg.Environment)}

	switch push.Exporter {
	case ExporterRemoteWrite:
		labels["job"] = job
		return NewRemoteWritePusher(push.Endpoint, push.AuthToken, labels)
	case ExporterPushgateway:
		return NewPushgatewayPusher(push.Endpoint, job, labels)
	default:
		log.Warn("metrics push disabled: unknown exporter")
		return nil
	}
}
