package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plantpulse/plant_hook/internal/api"
	"github.com/plantpulse/plant_hook/internal/auth"
	"github.com/plantpulse/plant_hook/internal/config"
	"github.com/plantpulse/plant_hook/internal/consumer"
	"github.com/plantpulse/plant_hook/internal/db"
	"github.com/plantpulse/plant_hook/internal/dispatch"
	"github.com/plantpulse/plant_hook/internal/governor"
	"github.com/plantpulse/plant_hook/internal/health"
	"github.com/plantpulse/plant_hook/internal/ledger"
	"github.com/plantpulse/plant_hook/internal/logging"
	"github.com/plantpulse/plant_hook/internal/metrics"
	"github.com/plantpulse/plant_hook/internal/notify"
	"github.com/plantpulse/plant_hook/internal/retry"
	"github.com/plantpulse/plant_hook/internal/subscription"
	"github.com/plantpulse/plant_hook/internal/sweep"
	"github.com/plantpulse/plant_hook/internal/tracing"
)

func main() {
	cfg := config.FromEnv()
	logger := logging.New("notifierd")
	ctx := context.Background()

	shutdownTracing, err := tracing.InitTracing(ctx, "notifierd")
	if err != nil {
		logger.Plain().WithError(err).Error("tracing init failed, continuing without export")
	} else {
		defer shutdownTracing()
	}

	pool, err := db.Connect(ctx, cfg.DSN())
	if err != nil {
		logger.Plain().WithError(err).Fatal("db connect failed")
	}
	defer pool.Close()

	// Core wiring: stores, governor, scheduler, executor, sweeper, service.
	subStore := subscription.NewStore(pool)
	ledgerStore := ledger.NewStore(pool)
	gov := governor.New(cfg.Webhook.MaxConcurrent)
	sched := retry.NewScheduler(cfg.Webhook.RetryDelays, cfg.Webhook.MaxRetries)
	exec := dispatch.NewExecutor(subStore, ledgerStore, gov, sched, dispatch.Config{
		Timeout:         cfg.Webhook.Timeout,
		MaxPayloadBytes: cfg.Webhook.MaxPayloadBytes,
		SignatureHeader: cfg.Webhook.SignatureHeader,
		TimestampHeader: cfg.Webhook.TimestampHeader,
	}, logger)
	sweeper := sweep.New(ledgerStore, exec, cfg.Webhook.SweepInterval, cfg.Webhook.SweepBatchSize, logger)
	svc := notify.NewService(subStore, ledgerStore, exec, sweeper, logger)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	go sweeper.Run(sweepCtx)

	// NSQ event intake.
	cons, err := consumer.New(cfg.NSQ, svc, logger)
	if err != nil {
		logger.Plain().WithError(err).Fatal("nsq consumer creation failed")
	}
	if err := cons.Connect(cfg.NSQ); err != nil {
		logger.Plain().WithError(err).Fatal("nsq connect failed")
	}

	// Prom metrics.
	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	// Admin HTTP surface.
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health.HTTPHandler(pool))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	api.New(svc, logger).Register(mux)

	var handler http.Handler = mux
	if cfg.Auth.PublicKeyPEM != "" {
		validator, err := auth.NewJWTValidator(cfg.Auth.PublicKeyPEM, cfg.Auth.Issuer, cfg.Auth.Audience)
		if err != nil {
			logger.Plain().WithError(err).Fatal("jwt validator init failed")
		}
		handler = validator.HTTPMiddleware(mux)
	} else {
		logger.Plain().Warn("JWT_PUBLIC_KEY not set, admin API is unauthenticated")
	}

	httpSrv := &http.Server{Addr: cfg.HTTPPort, Handler: handler}
	go func() {
		logger.Plain().WithField("addr", httpSrv.Addr).Info("notifier HTTP server starting")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Plain().WithError(err).Fatal("notifier HTTP server failed")
		}
	}()

	logger.Plain().WithFields(map[string]any{
		"sweep_interval": cfg.Webhook.SweepInterval.String(),
		"max_concurrent": cfg.Webhook.MaxConcurrent,
		"max_retries":    cfg.Webhook.MaxRetries,
	}).Info("notifier service started")

	// Graceful stop
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Plain().Info("shutting down notifier service")
	cons.Stop()
	stopSweep()
	_ = httpSrv.Shutdown(context.Background())
	logger.Plain().Info("notifier service stopped")
}
