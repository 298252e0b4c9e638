// Command mvcserver hosts a sample employee directory on the action
// pipeline.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/R3E-Network/mvc_layer/internal/config"
	"github.com/R3E-Network/mvc_layer/internal/logging"
	"github.com/R3E-Network/mvc_layer/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().WithError(err).Fatal("Failed to load configuration")
	}

	logger := logging.New(serviceName, cfg.Log.Level, cfg.Log.Format)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server stopped with error")
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	m := metrics.New("mvc")
	m.RegisterRuntimeCollectors()

	dir := newDirectory(
		employee{Name: "Ann Lee", Department: "Engineering"},
		employee{Name: "Bo Chen", Department: "Sales"},
	)

	s, err := newServer(cfg, logger, m, dir)
	if err != nil {
		return err
	}
	defer s.close()

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	s.cron.Start()

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
