package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	h "github.com/veranemoloko/media-taskdesk/internal/api/http"
	cfgpkg "github.com/veranemoloko/media-taskdesk/internal/config"
	errpkg "github.com/veranemoloko/media-taskdesk/internal/errors"
	"github.com/veranemoloko/media-taskdesk/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		slog.Error("host stopped with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := cfgpkg.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := cfgpkg.SetupLogger(cfg)
	logger.Info("configuration loaded successfully", "env", cfg.Environment)

	sup := supervisor.New(supervisor.Options{
		Command:          cfg.BackendCommand,
		Args:             cfg.BackendArgs,
		Dir:              cfg.BackendDir,
		HealthURL:        cfg.HealthURL,
		MainURL:          cfg.MainURL,
		ProbeInterval:    cfg.ProbeInterval,
		ProbeMaxAttempts: cfg.ProbeMaxAttempts,
	}, supervisor.NewLogShell(logger), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sup.Start(); err != nil {
		return err
	}
	defer stopBackend(sup, cfg.ShutdownTimeout, logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := sup.WaitReady(ctx)
		if errors.Is(err, errpkg.ErrBackendNotReady) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		done, err := sup.Done()
		if err != nil {
			return err
		}
		select {
		case <-done:
			logger.Warn("backend exited, host keeps running until quit")
		case <-ctx.Done():
		}
		return nil
	})

	if cfg.StatusPort > 0 {
		server := &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.StatusPort),
			Handler:      h.NewRouter(sup, logger),
			ReadTimeout:  cfg.HTTPTimeout,
			WriteTimeout: cfg.HTTPTimeout,
			IdleTimeout:  cfg.HTTPTimeout,
		}

		g.Go(func() error {
			logger.Info("status server starting", "address", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server failed: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("status server shutdown failed", "error", err)
				return nil
			}
			logger.Info("status server stopped gracefully")
			return nil
		})
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return g.Wait()
}

func stopBackend(sup *supervisor.Supervisor, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := sup.Stop(ctx); err != nil {
		logger.Error("failed to stop backend", "error", err)
		return
	}
	logger.Info("backend stopped")
}
