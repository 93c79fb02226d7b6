package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xraph/beacon/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the delivery engine",
	Long: `Run the beacon daemon.

This will:
  1. Open the store (and migrate it when store.auto_migrate is set)
  2. Start the local delivery engine and DLQ purge schedule (queue.mode=local)
  3. Serve the callback endpoint, the admin API and /metrics`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("close failed", "error", err)
		}
	}()

	rt.beacon.Start(context.WithoutCancel(ctx))

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewHandler(rt.beacon, rt.gatherer, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("beacon listening", "addr", cfg.Server.Addr, "queue", cfg.Queue.Mode, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			rt.beacon.Stop(context.Background())
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	rt.beacon.Stop(shutdownCtx)
	return nil
}
