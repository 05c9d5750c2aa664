package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andersoncleaning/telemetry/internal/alert"
	"github.com/andersoncleaning/telemetry/internal/broker"
	"github.com/andersoncleaning/telemetry/internal/config"
	"github.com/andersoncleaning/telemetry/internal/logging"
	"github.com/andersoncleaning/telemetry/internal/metrics"
	"github.com/andersoncleaning/telemetry/internal/policy"
	"github.com/andersoncleaning/telemetry/internal/router"
	"github.com/andersoncleaning/telemetry/internal/sentry"
)

func main() {
	// Initialize structured logging (reads LOGGING_LEVEL env var)
	logging.Initialize()

	// Load configuration
	cfg := config.Load()

	// Drop policy
	rules, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		slog.Error("failed to load policy", slog.Any("error", err))
		os.Exit(1)
	}
	serverFilter, err := policy.NewFilter(rules.Server, cfg.SentryEnvironment)
	if err != nil {
		slog.Error("invalid server policy", slog.Any("error", err))
		os.Exit(1)
	}
	browserFilter, err := policy.NewFilter(rules.Browser, cfg.SentryEnvironment)
	if err != nil {
		slog.Error("invalid browser policy", slog.Any("error", err))
		os.Exit(1)
	}

	m := metrics.New()
	feed := broker.New()

	// Alerting
	minSeverity, ok := alert.ParseSeverity(cfg.AlertMinSeverity)
	if !ok {
		slog.Warn("unknown ALERT_MIN_SEVERITY, using error", slog.String("value", cfg.AlertMinSeverity))
		minSeverity = alert.SeverityError
	}
	notifier := alert.NewNotifier(alert.Config{
		WebhookURL:    cfg.SlackWebhookURL,
		MinSeverity:   minSeverity,
		Timeout:       cfg.AlertTimeout,
		QueueSize:     cfg.AlertQueueSize,
		RatePerMinute: cfg.AlertRatePerMinute,
	}, alert.WithRecorder(m))
	if !notifier.Enabled() {
		slog.Info("alerting disabled, SLACK_WEBHOOK_URL not set")
	}

	// Sentry SDK for the server's own errors
	hook := sentry.NewHook(sentry.NewProcessor(metrics.SourceSDK, serverFilter, notifier, m).WithFeed(feed))
	if err := sentry.Init(sentry.Options{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		Release:          cfg.SentryRelease,
		TracesSampleRate: cfg.SentryTracesSampleRate,
		MaxBreadcrumbs:   cfg.SentryMaxBreadcrumbs,
		Debug:            cfg.SentryDebug,
	}, hook); err != nil {
		slog.Error("failed to initialize sentry", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.SentryDSN == "" {
		slog.Info("sentry disabled, SENTRY_DSN not set")
	}

	// Create router
	r, stop := router.New(cfg, router.Deps{
		ServerFilter: serverFilter,
		Tunnel:       sentry.NewProcessor(metrics.SourceTunnel, browserFilter, notifier, m).WithFeed(feed),
		Notifier:     notifier,
		Metrics:      m,
		Feed:         feed,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		slog.Info("starting server",
			slog.String("addr", addr),
			slog.String("environment", cfg.SentryEnvironment),
			slog.String("release", cfg.SentryRelease),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", slog.Any("error", err))
	}

	stop()
	notifier.Close()
	sentry.Flush(2 * time.Second)
}
