// Command cpath runs the practice path API and its maintenance tasks.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cp-path-builder/backend/internal/data"
	"github.com/cp-path-builder/backend/internal/infrastructure"
	"github.com/cp-path-builder/backend/internal/service"
)

var rootCmd = &cobra.Command{
	Use:   "cpath",
	Short: "Curriculum engine for rated competitive programming problems",
	Long: `cpath builds ordered practice paths from the Codeforces problemset,
serves them over HTTP and exposes recommendation tools for a coaching agent.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, generateCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is the configuration and logger every subcommand starts from
type app struct {
	config *infrastructure.Config
	logger *zap.Logger
}

func loadApp() (*app, error) {
	config, err := infrastructure.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := infrastructure.NewLogger(config.Server.Environment,
		zap.String("service", config.Telemetry.ServiceName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return &app{config: config, logger: logger}, nil
}

func (rt *app) close() {
	infrastructure.SyncLogger(rt.logger)
}

func (rt *app) openDatabase() (*infrastructure.Database, error) {
	return infrastructure.NewDatabase(&rt.config.Database, rt.logger)
}

// openCache connects to redis when it is enabled. A nil result means the
// command runs without a cache.
func (rt *app) openCache(ctx context.Context) *infrastructure.Cache {
	if !rt.config.Cache.Enabled {
		return nil
	}
	cache, err := infrastructure.NewCache(ctx, &rt.config.Cache, rt.logger)
	if err != nil {
		rt.logger.Warn("Cache unavailable, continuing without it", zap.Error(err))
		return nil
	}
	return cache
}

// newSeeder returns a seeder that clears corpus-derived cache entries
// after every successful load
func (rt *app) newSeeder(problems data.ProblemStore, cache *infrastructure.Cache) *data.Seeder {
	seeder := data.NewSeeder(problems, rt.logger)
	if cache != nil {
		seeder.InvalidateOnSeed(cache, service.CorpusCachePrefixes()...)
	}
	return seeder
}
