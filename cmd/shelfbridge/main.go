// Package main is the entry point for shelfbridge, a one-way sync of reading
// progress from an Audiobookshelf server into a Hardcover library. It runs
// either as a one-shot sync or as a long-running loop with periodic syncs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/rohit-purandare/shelfbridge/internal/api/audiobookshelf"
	"github.com/rohit-purandare/shelfbridge/internal/api/hardcover"
	"github.com/rohit-purandare/shelfbridge/internal/cache"
	"github.com/rohit-purandare/shelfbridge/internal/config"
	"github.com/rohit-purandare/shelfbridge/internal/logger"
	"github.com/rohit-purandare/shelfbridge/internal/sync"
	"github.com/rohit-purandare/shelfbridge/internal/util"
)

var (
	version = "dev" // Set during build
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "shelfbridge",
		Usage:   "Sync Audiobookshelf reading progress to Hardcover",
		Version: fmt.Sprintf("%s (%s) %s", version, commit, date),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "Run a sync (one-shot by default)",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Keep running and sync on the configured interval",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Log what would be written without writing anything",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Bypass the change-detection cache and sync everything",
					},
				},
				Action: runSync,
			},
			{
				Name:  "cache",
				Usage: "Inspect and manage the progress cache",
				Subcommands: []*cli.Command{
					{
						Name:   "stats",
						Usage:  "Show cache statistics",
						Action: runCacheStats,
					},
					{
						Name:   "clear",
						Usage:  "Delete every cache record",
						Action: runCacheClear,
					},
					{
						Name:  "export",
						Usage: "Export the cache to a JSON file",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "output",
								Aliases: []string{"o"},
								Usage:   "Output JSON file",
								Value:   "shelfbridge-cache.json",
							},
						},
						Action: runCacheExport,
					},
				},
			},
			{
				Name:   "config",
				Usage:  "Show the effective configuration",
				Action: runShowConfig,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Get().Error("Error running application", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}

// setup loads configuration and initializes the logger.
func setup(c *cli.Context) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Setup(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     logger.ParseLogFormat(cfg.Logging.Format),
		Output:     os.Stdout,
		TimeFormat: time.RFC3339,
	})

	return cfg, logger.Get(), nil
}

// buildService wires the API clients, cache and sync service from config.
func buildService(cfg *config.Config, log *logger.Logger) (*sync.Service, *cache.ProgressCache, error) {
	progressCache, err := cache.NewProgressCache(cfg.Paths.CacheFile, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open progress cache: %w", err)
	}

	library := audiobookshelf.NewClient(audiobookshelf.ClientConfig{
		BaseURL:          cfg.Audiobookshelf.URL,
		Token:            cfg.Audiobookshelf.Token,
		RateLimit:        util.PerMinute(cfg.RateLimit.PerMinute),
		Burst:            cfg.RateLimit.Burst,
		MaxConcurrent:    cfg.RateLimit.MaxConcurrent,
		IncludeLibraries: cfg.Audiobookshelf.IncludeLibraries,
		ExcludeLibraries: cfg.Audiobookshelf.ExcludeLibraries,
	}, log)

	catalog := hardcover.NewClient(hardcover.ClientConfig{
		BaseURL:       cfg.Hardcover.URL,
		Token:         cfg.Hardcover.Token,
		RateLimit:     util.PerMinute(cfg.RateLimit.PerMinute),
		Burst:         cfg.RateLimit.Burst,
		MaxConcurrent: cfg.RateLimit.MaxConcurrent,
	}, log)

	return sync.NewService(library, catalog, progressCache, cfg, log), progressCache, nil
}

func runSync(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	if c.Bool("dry-run") {
		cfg.Sync.DryRun = true
	}
	if c.Bool("force") {
		cfg.Sync.ForceSync = true
	}

	svc, progressCache, err := buildService(cfg, log)
	if err != nil {
		return err
	}
	defer progressCache.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("Starting shelfbridge", map[string]interface{}{
		"version": version,
		"dry_run": cfg.Sync.DryRun,
		"watch":   c.Bool("watch"),
	})

	if !c.Bool("watch") {
		_, err := svc.SyncProgress(ctx)
		return err
	}

	// Watch mode: sync immediately, then on every tick until interrupted.
	if _, err := svc.SyncProgress(ctx); err != nil {
		log.Error("Sync failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	ticker := time.NewTicker(cfg.Sync.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Shutting down", nil)
			return nil
		case <-ticker.C:
			if _, err := svc.SyncProgress(ctx); err != nil {
				log.Error("Sync failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}

func runCacheStats(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}

	progressCache, err := cache.NewProgressCache(cfg.Paths.CacheFile, log)
	if err != nil {
		return err
	}
	defer progressCache.Close()

	stats, err := progressCache.GetStats()
	if err != nil {
		return err
	}

	fmt.Printf("Total records:   %d\n", stats.TotalRecords)
	fmt.Printf("Active sessions: %d\n", stats.ActiveSessions)
	for typ, n := range stats.ByType {
		fmt.Printf("  %-14s %d\n", typ+":", n)
	}
	if stats.LastSync != nil {
		fmt.Printf("Last sync:       %s\n", stats.LastSync.Format(time.RFC3339))
	}
	return nil
}

func runCacheClear(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}

	progressCache, err := cache.NewProgressCache(cfg.Paths.CacheFile, log)
	if err != nil {
		return err
	}
	defer progressCache.Close()

	return progressCache.Clear()
}

func runCacheExport(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}

	progressCache, err := cache.NewProgressCache(cfg.Paths.CacheFile, log)
	if err != nil {
		return err
	}
	defer progressCache.Close()

	return progressCache.ExportJSON(c.String("output"))
}

func runShowConfig(c *cli.Context) error {
	cfg, _, err := setup(c)
	if err != nil {
		return err
	}

	fmt.Printf("Audiobookshelf URL:    %s\n", cfg.Audiobookshelf.URL)
	fmt.Printf("Hardcover URL:         %s\n", cfg.Hardcover.URL)
	fmt.Printf("User ID:               %s\n", cfg.User.ID)
	fmt.Printf("Cache file:            %s\n", cfg.Paths.CacheFile)
	fmt.Printf("Min progress:          %.1f%%\n", cfg.Sync.MinProgressThreshold)
	fmt.Printf("Progress tolerance:    %.2f%%\n", cfg.Sync.ProgressTolerance)
	fmt.Printf("Workers:               %d (parallel: %t)\n", cfg.Sync.Workers, cfg.Sync.Parallel)
	fmt.Printf("Auto-add books:        %t\n", cfg.Sync.AutoAddBooks)
	fmt.Printf("Cross-format sync:     %t\n", cfg.Sync.CrossFormatSync)
	fmt.Printf("Regression protection: %t\n", cfg.Sync.PreventProgressRegression)
	fmt.Printf("Delayed updates:       %t\n", cfg.Sync.DelayedUpdates.Enabled)
	fmt.Printf("Sync interval:         %s\n", cfg.Sync.SyncInterval)
	return nil
}
