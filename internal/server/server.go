package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rcarraroia/comademig/internal/config"
	fallbackdomain "github.com/rcarraroia/comademig/internal/fallback/domain"
	gatewaydomain "github.com/rcarraroia/comademig/internal/gateway/domain"
	"github.com/rcarraroia/comademig/internal/observability"
	obsmiddleware "github.com/rcarraroia/comademig/internal/observability/logger"
	obsmetrics "github.com/rcarraroia/comademig/internal/observability/metrics"
	obstracing "github.com/rcarraroia/comademig/internal/observability/tracing"
	paymentdomain "github.com/rcarraroia/comademig/internal/payment/domain"
	"github.com/rcarraroia/comademig/internal/ratelimit"
	"github.com/rcarraroia/comademig/internal/reconciler"
	registrationdomain "github.com/rcarraroia/comademig/internal/registration/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// NewEngine builds the gin engine with the middleware chain every route
// shares. Order matters: the request id is assigned before the span starts
// and errors are rendered last.
func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
			Debug:           obsCfg.Debug(),
			ErrorClassifier: classifyErrorForLog,
		}),
		obstracing.GinMiddleware(),
		httpMetrics.GinMiddleware(),
		ErrorHandlingMiddleware(),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// run binds the listener during start so a busy port fails the app instead
// of a background goroutine.
func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// reconcileRunner is the slice of the reconciler the trigger endpoint needs.
type reconcileRunner interface {
	RunOnce(ctx context.Context) (reconciler.Report, error)
}

type registrationLimiter interface {
	Enabled() bool
	Allow(ctx context.Context, clientKey string) (*ratelimit.RateLimitResult, error)
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	orchestrator  registrationdomain.Orchestrator
	reconciler    reconcileRunner
	fallbackSvc   fallbackdomain.Service
	webhookParser gatewaydomain.WebhookParser
	ingester      paymentdomain.EventIngester
	limiter       registrationLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	Orchestrator  registrationdomain.Orchestrator
	Reconciler    *reconciler.Reconciler
	FallbackSvc   fallbackdomain.Service
	WebhookParser gatewaydomain.WebhookParser
	Ingester      paymentdomain.EventIngester
	Limiter       *ratelimit.RegistrationLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics            `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http"),
		orchestrator:  p.Orchestrator,
		reconciler:    p.Reconciler,
		fallbackSvc:   p.FallbackSvc,
		webhookParser: p.WebhookParser,
		ingester:      p.Ingester,
		limiter:       p.Limiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	api.POST("/registrations", s.RegistrationRateLimit(), s.CreateRegistration)
	api.POST("/payments/webhooks/:provider", s.HandlePaymentWebhook)

	// The trigger answers every method so non-POST calls get a JSON 405.
	s.engine.Any("/internal/reconcile", s.SchedulerAuthRequired(), s.TriggerReconcile)

	admin := s.engine.Group("/admin", s.AdminKeyRequired())
	admin.GET("/pending-registrations", s.ListPendingRegistrations)
}
