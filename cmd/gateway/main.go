package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"favorsweb/internal/backend"
	"favorsweb/internal/config"
	"favorsweb/internal/httpapi"
	"favorsweb/internal/logging"
	"favorsweb/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.IsProd())
	m := metrics.New()

	upstream := &http.Client{Timeout: cfg.BackendTimeout}
	backendClient := backend.New(backend.Options{
		BaseURL:    cfg.BackendURL,
		HTTPClient: upstream,
		Observe:    m.ObserveUpstream,
		Logger:     logger,
	})
	authClient := backendClient
	if cfg.AuthURL != cfg.BackendURL {
		authClient = backend.New(backend.Options{
			BaseURL:    cfg.AuthURL,
			HTTPClient: upstream,
			Observe:    m.ObserveUpstream,
			Logger:     logger,
		})
	}

	router := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:    logger,
		IsProd:    cfg.IsProd(),
		Backend:   backendClient,
		Auth:      authClient,
		Metrics:   m,
		LoginRate: cfg.LoginRate,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "env", cfg.Env, "addr", cfg.Addr, "backend", cfg.BackendURL, "auth", cfg.AuthURL)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}
