package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/api"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/api/handler"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-bus-seat-reservation/internal/pkg/metrics"
)

// Config はルーターの組み立てに必要な依存
type Config struct {
	Buses        handler.BusServiceInterface
	Reservations handler.ReservationServiceInterface
	Payments     handler.PaymentServiceInterface
	Manifests    handler.ManifestServiceInterface
	HealthChecks []handler.HealthCheck

	Metrics         *metrics.Metrics
	MetricsGatherer prometheus.Gatherer
	MetricsUser     string
	MetricsPassword string
	AdminToken      string
}

// New はミドルウェアとルートを設定した Echo を返す
func New(cfg Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	middleware.SetupMiddleware(e, cfg.Metrics)

	busHandler := handler.NewBusHandler(cfg.Buses)
	bookingHandler := handler.NewBookingHandler(cfg.Reservations)
	paymentHandler := handler.NewPaymentHandler(cfg.Payments)
	adminHandler := handler.NewAdminHandler(cfg.Buses, cfg.Reservations, cfg.Manifests)
	healthHandler := handler.NewHealthHandler(cfg.HealthChecks...)

	gatherer := cfg.MetricsGatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	v1 := e.Group("/api/v1")
	v1.GET("/health", healthHandler.Check)
	v1.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})),
		middleware.MetricsBasicAuth(cfg.MetricsUser, cfg.MetricsPassword))

	v1.GET("/buses", busHandler.List)
	v1.GET("/buses/search", busHandler.Search)
	v1.GET("/buses/:id", busHandler.GetByID)
	v1.GET("/buses/:id/seats/available", busHandler.AvailableSeats)
	v1.GET("/buses/:id/seats/available/count", busHandler.CountAvailable)

	v1.POST("/bookings", bookingHandler.Create)
	v1.GET("/bookings", bookingHandler.List)
	v1.GET("/bookings/:id", bookingHandler.GetByID)
	v1.POST("/bookings/:id/confirm", bookingHandler.Confirm)
	v1.POST("/bookings/:id/cancel", bookingHandler.Cancel)
	v1.POST("/bookings/:id/checkout", paymentHandler.Checkout)
	v1.POST("/payments/callback", paymentHandler.Callback)

	admin := v1.Group("/admin", middleware.AdminToken(cfg.AdminToken))
	admin.POST("/buses", adminHandler.CreateBus)
	admin.POST("/buses/:id/release", adminHandler.ReleaseSeats)
	admin.POST("/buses/:id/reset", adminHandler.Reset)
	admin.GET("/buses/:id/manifest", adminHandler.Manifest)

	return e
}
