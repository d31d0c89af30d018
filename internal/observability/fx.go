package observability

import (
	"github.com/rcarraroia/comademig/internal/observability/logger"
	"github.com/rcarraroia/comademig/internal/observability/metrics"
	"github.com/rcarraroia/comademig/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(LoadConfig, splitConfig),
	fx.Provide(
		logger.New,
		logger.ProvideGormLogger,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.ReconcilerWithConfig,
	),
	// The tracer provider installs the global otel provider as a side effect.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

type componentConfigs struct {
	fx.Out

	Logger  logger.Config
	Tracing tracing.Config
	Metrics metrics.Config
}

func splitConfig(cfg Config) componentConfigs {
	t := cfg.Telemetry
	return componentConfigs{
		Logger: logger.Config{
			ServiceName:         cfg.ServiceName,
			Environment:         cfg.Environment,
			Version:             cfg.Version,
			Level:               t.LogLevel,
			Format:              t.LogFormat,
			Debug:               cfg.Debug(),
			IncludeCaller:       true,
			IncludeStackOnError: cfg.Debug(),
		},
		Tracing: tracing.Config{
			Enabled:          t.OTLPEnabled,
			ServiceName:      cfg.ServiceName,
			ServiceVersion:   cfg.Version,
			Environment:      cfg.Environment,
			ExporterEndpoint: t.OTLPEndpoint,
			ExporterProtocol: t.OTLPProtocol,
			SamplingRatio:    t.SamplingRatio,
		},
		Metrics: metrics.Config{
			Enabled:          t.OTLPEnabled,
			ExporterEndpoint: t.OTLPEndpoint,
			ExporterProtocol: t.OTLPProtocol,
			ServiceName:      cfg.ServiceName,
			Environment:      cfg.Environment,
		},
	}
}
