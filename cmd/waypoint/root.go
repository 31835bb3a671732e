package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/config"
	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/internal/metrics"
	"github.com/aretw0/waypoint/pkg/adapters/file"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/adapters/redis"
	"github.com/aretw0/waypoint/pkg/backend"
	"github.com/aretw0/waypoint/pkg/persistence/middleware"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "waypoint",
	Short: "Waypoint generates and renders action plans for support resources",
	Long: `Waypoint sends a list of candidate resources to the action plan backend,
recovers the structured plan from its reply and renders it as sanitized HTML
or terminal markdown, with citations lifted out as footnotes.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("backend-url", "", "Base URL of the action plan backend")
}

// loadConfig resolves defaults, the config file, WAYPOINT_* variables and flags, in that order.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("backend-url") {
		cfg.BackendURL, _ = cmd.Flags().GetString("backend-url")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	logger := logging.New(level)
	if cfg.LogFormat == "json" {
		logger = logging.NewJSON(os.Stderr, level)
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newPipeline(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) *waypoint.Pipeline {
	backendOpts := []backend.Option{
		backend.WithPath(cfg.BackendPath),
		backend.WithTimeout(cfg.BackendTimeout),
	}
	if m != nil {
		backendOpts = append(backendOpts, backend.WithRecorder(m))
	}
	return waypoint.New(cfg.BackendURL,
		waypoint.WithLogger(logger),
		waypoint.WithBackendOptions(backendOpts...),
	)
}

// planStore is a ports.PlanStore with an optional health check and cleanup.
type planStore struct {
	ports.PlanStore
	ping  func(ctx context.Context) error
	close func() error
}

func newPlanStore(cfg config.Config, logger *slog.Logger) (planStore, error) {
	noop := func() error { return nil }

	var ps planStore
	switch {
	case cfg.RedisEnabled():
		logger.Info("Using Redis plan store", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
		store := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			redis.WithTTL(cfg.RedisTTL),
			redis.WithPrefix(cfg.RedisPrefix),
		)
		ps = planStore{PlanStore: store, ping: store.Ping, close: store.Close}
	case cfg.PlanDir != "":
		logger.Info("Using file plan store", "dir", cfg.PlanDir)
		ps = planStore{PlanStore: file.New(cfg.PlanDir), close: noop}
	default:
		logger.Info("Using in-memory plan store")
		ps = planStore{PlanStore: memory.NewStore(), close: noop}
	}

	if cfg.EncryptionKey == "" {
		return ps, nil
	}
	enc, err := encryptionConfig(cfg)
	if err != nil {
		ps.close()
		return planStore{}, err
	}
	mw, err := middleware.NewEncryptionMiddleware(enc)
	if err != nil {
		ps.close()
		return planStore{}, err
	}
	logger.Info("Plan encryption enabled", "fallback_keys", len(enc.FallbackKeys))
	ps.PlanStore = middleware.Chain(ps.PlanStore, mw)
	return ps, nil
}

func encryptionConfig(cfg config.Config) (middleware.EncryptionConfig, error) {
	active, err := middleware.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return middleware.EncryptionConfig{}, fmt.Errorf("invalid encryption_key: %w", err)
	}
	enc := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range cfg.EncryptionFallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return middleware.EncryptionConfig{}, fmt.Errorf("invalid encryption_fallback_keys[%d]: %w", i, err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, key)
	}
	return enc, nil
}
