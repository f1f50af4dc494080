package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/sessiond/internal/adapters/httpapi"
	"github.com/aretw0/sessiond/internal/adapters/redis"
	"github.com/aretw0/sessiond/internal/logging"
	"github.com/aretw0/sessiond/internal/metrics"
	"github.com/aretw0/sessiond/pkg/manager"
	"github.com/aretw0/sessiond/pkg/monitor"
	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session daemon",
	Long: `Starts the session manager and monitor, exposing the administrative API
and Prometheus metrics over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logger := logging.NewJSON(logLevel(cfg))

		registry := prometheus.NewRegistry()
		collectors := metrics.New(registry)

		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Store.Address,
			Password: cfg.Store.Password,
			DB:       cfg.Store.DB,
		})

		store := redis.NewFromClient(client,
			redis.WithPrefix(cfg.KeyPrefix),
			redis.WithLogger(logger),
		)
		locker := redis.NewLocker(client, cfg.KeyPrefix)

		mgr := manager.New(store, cfg,
			manager.WithLocker(locker),
			manager.WithLogger(logger),
			manager.WithMetrics(collectors),
		)
		if err := mgr.Initialize(cmd.Context()); err != nil {
			return err
		}
		defer mgr.Close()

		mon := monitor.New(mgr,
			monitor.WithLogger(logger),
			monitor.WithMetrics(collectors),
		)
		mon.Start()
		defer mon.Stop()

		// Drain the event channel so buffered events never go stale. The
		// events are already logged at emission; this consumer exists for
		// backpressure accounting.
		go func() {
			for range mon.Events() {
			}
		}()

		handler := httpapi.NewHandler(mgr, mon,
			httpapi.WithLogger(logger),
			httpapi.WithGatherer(registry),
		)

		srv := &http.Server{
			Addr:    cfg.AdminAddr,
			Handler: handler,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("admin API listening", "addr", cfg.AdminAddr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("admin server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("failed to close server", "err", err)
				}
			}
			logger.Info("sessiond stopped")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
