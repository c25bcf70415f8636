package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"hrpay/internal/domain/audit"
	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/payroll"
	"hrpay/internal/domain/reports"
	"hrpay/internal/platform/config"
	"hrpay/internal/platform/metrics"
	"hrpay/internal/transport/http/api"
	audithandler "hrpay/internal/transport/http/handlers/audit"
	payrollhandler "hrpay/internal/transport/http/handlers/payroll"
	reportshandler "hrpay/internal/transport/http/handlers/reports"
	"hrpay/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	Logger  *zap.Logger
	Router  http.Handler
	Metrics *metrics.Collector

	closers []func()
}

// New opens the configured backends and builds the router. Call Close when
// done with the app.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: log, Metrics: metrics.New()}

	stores, err := openBackends(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, stores.close)

	sinks := audit.Fanout{stores.audit, audit.NewZapSink(log), app.Metrics.AuditSink()}
	if len(cfg.KafkaBrokers) > 0 {
		writer := audit.NewKafkaWriter(cfg.KafkaBrokers)
		sinks = append(sinks, audit.NewKafkaSink(writer, cfg.KafkaAuditTopic))
		app.closers = append(app.closers, func() { closeKafka(writer, log) })
		log.Info("publishing audit events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaAuditTopic))
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		app.closers = append(app.closers, func() { _ = rdb.Close() })
	}

	enforcer, err := auth.NewEnforcer(auth.RolePermissions)
	if err != nil {
		app.Close()
		return nil, err
	}

	opts := []payroll.Option{
		payroll.WithLogger(log),
		payroll.WithPayDateOffset(cfg.PayDateOffset),
		payroll.WithOwnershipCheck(cfg.EnforceSelfApproval),
	}
	payrollHandler := payrollhandler.NewHandler(
		payroll.NewLifecycle(stores.payroll, enforcer, sinks, opts...),
		payroll.NewCoordinator(stores.payroll, enforcer, sinks, opts...),
		enforcer,
		log,
	)
	if rdb != nil {
		payrollHandler.Idempotent = middleware.Idempotency(rdb, cfg.IdempotencyTTL, log)
	}
	auditHandler := audithandler.NewHandler(stores.audit, enforcer, log)
	reportsHandler := reportshandler.NewHandler(reports.NewService(stores.payroll), enforcer, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log, app.Metrics))
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := readiness(ctx, stores.ping, rdb, log); err != nil {
			log.Warn("readiness check failed", zap.Error(err))
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, app.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, middleware.MutationsOnly()))
		payrollHandler.RegisterRoutes(r)
		auditHandler.RegisterRoutes(r)
		reportsHandler.RegisterRoutes(r)
	})

	app.Router = router
	return app, nil
}

// readiness fails only on the record store. Redis backs idempotency, which
// fails open, so an outage there is logged and the instance stays ready.
func readiness(ctx context.Context, ping func(context.Context) error, rdb *redis.Client, log *zap.Logger) error {
	if err := ping(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis not ready, idempotency degraded", zap.Error(err))
		}
	}
	return nil
}

func closeKafka(writer *kafkago.Writer, log *zap.Logger) {
	if err := writer.Close(); err != nil {
		log.Warn("kafka writer close failed", zap.Error(err))
	}
}

// Close releases backends in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	app, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("payroll server listening", zap.String("addr", cfg.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
