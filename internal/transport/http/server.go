// Package http provides the HTTP server implementation for the engine.
package http

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/alexiscuevases/ondesk/internal/service"
	v1 "github.com/alexiscuevases/ondesk/internal/transport/http/v1"
)

// NewServer creates and configures the HTTP server. It serves conversation
// replies, message ingestion, endpoint tests and the admin routes.
func NewServer(svc *service.Service, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				logger.Warn("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	v1.NewHandler(svc).RegisterRoutes(e)

	return e
}
