package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultShutdownTimeout = 10 * time.Second

// Serve starts the background jobs and the HTTP server, and blocks until ctx
// is cancelled. In-flight requests get the configured shutdown timeout to
// finish before the server is closed.
func (a *App) Serve(ctx context.Context) error {
	if a.Config.Server.GinMode != "" {
		gin.SetMode(a.Config.Server.GinMode)
	}

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	if err := a.Services.StartBackground(bgCtx, a.Config.Scheduler); err != nil {
		return fmt.Errorf("start background jobs: %w", err)
	}

	// Request contexts derive from reqCtx so open event streams end on shutdown.
	reqCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()
	srv := &http.Server{
		Addr:              net.JoinHostPort("0.0.0.0", strconv.Itoa(a.Config.Server.Port)),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return reqCtx },
	}
	srv.RegisterOnShutdown(cancelRequests)

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	timeout := a.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.Services.Close(shutdownCtx)
	zap.L().Info("server exited")
	return nil
}
