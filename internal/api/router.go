// Package api provides the HTTP API for the table timer coordination
// service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/tabletimer/tabletimer/internal/api/handler"
	"github.com/tabletimer/tabletimer/internal/api/middleware"
	"github.com/tabletimer/tabletimer/internal/bar"
	"github.com/tabletimer/tabletimer/internal/registry"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	ServiceName     string
	Version         string
	Port            int
	Logger          zerolog.Logger
	Metrics         *middleware.Metrics
	RegistryService *registry.Service
	BarStore        *bar.Store
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "tabletimer"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	// Dashboards are served from anywhere on the venue network, so CORS
	// stays wide open.
	r.Use(cors.AllowAll().Handler)
	r.Use(middleware.ContentTypeJSON)

	statusHandler := handler.NewStatusHandler(cfg.RegistryService)
	timersHandler := handler.NewTimersHandler(cfg.RegistryService)
	controlHandler := handler.NewControlHandler(cfg.RegistryService)
	seatHandler := handler.NewSeatHandler(cfg.RegistryService)
	floormanHandler := handler.NewFloormanHandler(cfg.RegistryService)
	barHandler := handler.NewBarHandler(cfg.RegistryService, cfg.BarStore)
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Name:    serviceName,
		Version: cfg.Version,
		Port:    cfg.Port,
	})

	deviceRateLimit := middleware.RateLimitByIP(middleware.DeviceRateLimit)     // 120 req/min
	operatorRateLimit := middleware.RateLimitByIP(middleware.OperatorRateLimit) // 60 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	r.Get("/healthz", opsHandler.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		// Device-facing endpoints - polled every couple of seconds
		r.With(deviceRateLimit, middleware.RequireJSON).Post("/status", statusHandler.Push)
		r.With(standardRateLimit).Get("/server-info", opsHandler.ServerInfo)

		// Dashboard reads
		r.With(standardRateLimit).Get("/timers", timersHandler.List)
		r.With(standardRateLimit).Get("/bar_requests", barHandler.List)

		// Operator actions
		r.Group(func(r chi.Router) {
			r.Use(operatorRateLimit)
			r.Delete("/timers", timersHandler.Clear)
			r.With(middleware.RequireJSON).Post("/settings/{deviceId}", controlHandler.Settings)
			r.With(middleware.RequireJSON).Post("/command/{deviceId}", controlHandler.Command)
			r.Post("/acknowledge_seat_notification/{deviceId}", controlHandler.AcknowledgeSeat)
			r.With(middleware.RequireJSON).Post("/seat_request", seatHandler.Request)
			r.With(middleware.RequireJSON).Post("/floorman_request", floormanHandler.Request)
			r.Delete("/floorman_request/{tableNumber}", floormanHandler.Clear)
			r.With(middleware.RequireJSON).Post("/bar_service_request", barHandler.Request)
			r.Post("/bar_requests/{id}/complete", barHandler.Complete)
		})
	})

	return r
}
