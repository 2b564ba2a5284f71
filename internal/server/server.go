// Package server runs the HTTP server lifecycle for the quote service.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/meigenapp/meigen/internal/config"
)

const (
	readHeaderTimeout = 1 * time.Second
	readTimeout       = 5 * time.Second
	// Password hashing at high cost can hold an auth request well past the
	// read window, so writes get more room.
	writeTimeout    = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Run serves the API on cfg.ListenAddress until ctx is canceled, then shuts
// the server down gracefully. In-flight requests get shutdownTimeout to
// complete.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, api *echo.Echo) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", cfg.ListenAddress)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           api,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}

	logger.InfoContext(ctx, "listening", slog.String("address", listener.Addr().String()))

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		err := srv.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	grp.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return grp.Wait()
}
