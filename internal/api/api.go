// Package api contains the REST surface of the quote service.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/meigenapp/meigen/internal/auth"
	"github.com/meigenapp/meigen/internal/config"
	"github.com/meigenapp/meigen/internal/observability"
	"github.com/meigenapp/meigen/internal/storage"
)

// New creates the REST API server.
func New(
	cfg config.Config,
	logger *slog.Logger,
	store storage.Store,
	authSvc *auth.Service,
	issuer *auth.Issuer,
	metrics *observability.Metrics,
) *echo.Echo {
	srv := echo.New()

	srv.HideBanner = true
	srv.HidePort = true
	srv.Logger.SetLevel(log.OFF)

	if cfg.DevMode {
		srv.Debug = true
		srv.Use(logRequests(logger))
	}

	srv.Use(
		middleware.Recover(),
		middleware.CORS(),
		middleware.RequestID(),
	)

	handler{store: store, auth: authSvc}.register(srv, auth.RequireToken(issuer, logger))

	srv.GET("/healthz/liveness", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	srv.GET("/healthz/readiness", func(c echo.Context) error {
		if err := store.Ping(c.Request().Context()); err != nil {
			return c.String(http.StatusServiceUnavailable, "not ready")
		}
		return c.String(http.StatusOK, "ok")
	})
	if metrics != nil {
		srv.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	return srv
}

func logRequests(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("uri", req.RequestURI),
				slog.String("route", c.Path()),
				slog.Duration("latency", latency),
				slog.Int("status", res.Status),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			logger.LogAttrs(
				req.Context(),
				slog.LevelDebug,
				"request handled",
				attrs...,
			)
			return err
		}
	}
}
