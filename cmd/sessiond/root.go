package main

import (
	"fmt"
	"os"

	"log/slog"

	"github.com/aretw0/sessiond/internal/adapters/redis"
	"github.com/aretw0/sessiond/internal/config"
	"github.com/aretw0/sessiond/internal/logging"
	"github.com/aretw0/sessiond/pkg/manager"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sessiond",
	Short: "sessiond manages distributed user sessions in Redis",
	Long: `sessiond tracks per-user authenticated sessions in a shared Redis store,
enforces a bound on concurrent sessions per user, reclaims expired records,
and emits health metrics and rate-limited alerts.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
}

// loadConfig reads the --config flag and builds the effective configuration.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func logLevel(cfg config.Config) slog.Level {
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildManager wires the Redis store, locker and manager from config.
// The returned manager is initialized and ready.
func buildManager(cmd *cobra.Command) (*manager.Manager, config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, err
	}

	logger := logging.New(logLevel(cfg))

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
	)
	if err := mgr.Initialize(cmd.Context()); err != nil {
		return nil, cfg, err
	}
	return mgr, cfg, nil
}
