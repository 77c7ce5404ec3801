// Package compare parses compare service flags and launches the service.
package compare

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/planmatch/internal/platform/cmd"
	"github.com/louisbranch/planmatch/internal/platform/logging"
	server "github.com/louisbranch/planmatch/internal/services/compare/app"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/source"
)

// Config holds compare command configuration.
type Config struct {
	HTTPAddr      string `env:"PLANMATCH_COMPARE_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr      string `env:"PLANMATCH_COMPARE_GRPC_ADDR" envDefault:":8081"`
	DBPath        string `env:"PLANMATCH_COMPARE_DB_PATH"   envDefault:"data/compare.db"`
	SecureCookies bool   `env:"PLANMATCH_COMPARE_SECURE_COOKIES"`
	Source        source.Config
	Logging       logging.Config
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The compare HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "The compare gRPC health listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The compare SQLite database path")
	fs.BoolVar(&cfg.Source.UseMockPlans, "mock-plans", cfg.Source.UseMockPlans, "Show mock plans by default")
	fs.BoolVar(&cfg.Source.EnableMixedMode, "mixed-mode", cfg.Source.EnableMixedMode, "Show mock and real plans together by default")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the compare HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(cfg.Logging, entrypoint.ServiceCompare)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceCompare, entrypoint.RunOptions{Logger: logger}, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			Service:       entrypoint.ServiceCompare,
			HTTPAddr:      cfg.HTTPAddr,
			GRPCAddr:      cfg.GRPCAddr,
			DBPath:        cfg.DBPath,
			Source:        cfg.Source,
			SecureCookies: cfg.SecureCookies,
			Logger:        logger,
		})
	})
}
