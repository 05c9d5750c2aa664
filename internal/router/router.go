package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/andersoncleaning/telemetry/internal/alert"
	"github.com/andersoncleaning/telemetry/internal/broker"
	"github.com/andersoncleaning/telemetry/internal/config"
	"github.com/andersoncleaning/telemetry/internal/handlers"
	"github.com/andersoncleaning/telemetry/internal/metrics"
	"github.com/andersoncleaning/telemetry/internal/middleware"
	"github.com/andersoncleaning/telemetry/internal/policy"
	"github.com/andersoncleaning/telemetry/internal/sentry"
	"github.com/andersoncleaning/telemetry/internal/services"
)

// Deps are the long-lived components shared with the rest of the process.
type Deps struct {
	// ServerFilter backs the admin scrub preview.
	ServerFilter *policy.Filter
	// Tunnel processes browser events relayed through the tunnel.
	Tunnel   *sentry.Processor
	Notifier *alert.Notifier
	Metrics  *metrics.Metrics
	// Feed carries event summaries to the admin live stream.
	Feed *broker.Broker
	// Upstream is the client used to reach Sentry; nil uses a default.
	Upstream *http.Client
}

// New builds the HTTP handler. The returned stop function releases the
// router's background goroutines.
func New(cfg *config.Config, deps Deps) (http.Handler, func()) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(sentry.Middleware)
	r.Use(middleware.NewRealIPMiddleware(cfg.TrustedProxies).Handler)
	r.Use(middleware.RequestContextMiddleware)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))

	// Services
	authService := services.NewAuthService(cfg.JWTSecret, cfg.AdminTokenDuration)

	// Handlers
	adminHandler := handlers.NewAdminHandler(cfg, authService, deps.ServerFilter, deps.Notifier, deps.Metrics)
	configHandler := handlers.NewConfigHandler(cfg)
	tunnelHandler := handlers.NewSentryTunnelHandler(cfg, deps.Tunnel, deps.Metrics, deps.Upstream)
	sseHandler := handlers.NewSSEHandler(deps.Feed)

	// Rate limiters for unauthenticated writes
	tunnelRateLimiter := middleware.NewRateLimiter("tunnel", cfg.RateLimitPerMinute, deps.Metrics)
	loginRateLimiter := middleware.NewRateLimiter("login", loginAttemptsPerMinute, deps.Metrics)

	r.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Public configuration for the browser SDK
		r.Get("/config", configHandler.PublicConfig)

		// Browser events (rate limited)
		r.With(tunnelRateLimiter.Middleware).Post("/sentry-tunnel", tunnelHandler.Tunnel)

		r.Route("/admin", func(r chi.Router) {
			r.With(loginRateLimiter.Middleware).Post("/login", adminHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(middleware.AuthMiddleware(authService))
				r.Use(middleware.AdminOnlyMiddleware)
				r.Use(middleware.UpdateRequestContextMiddleware)

				r.Post("/scrub", adminHandler.Scrub)
				r.Get("/alerts", adminHandler.AlertStats)
				r.Delete("/alerts/cache", adminHandler.ResetAlertCache)
				r.Get("/events/stream", sseHandler.Stream)
			})
		})
	})

	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	stop := func() {
		tunnelRateLimiter.Stop()
		loginRateLimiter.Stop()
	}
	return r, stop
}

const loginAttemptsPerMinute = 10
