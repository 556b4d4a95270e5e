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

	"github.com/lysyi3m/rss-digest/app/aggregator"
	"github.com/lysyi3m/rss-digest/app/api"
	"github.com/lysyi3m/rss-digest/app/cfg"
	"github.com/lysyi3m/rss-digest/app/database"
	"github.com/lysyi3m/rss-digest/app/feed"
	"github.com/lysyi3m/rss-digest/app/opml"
	"github.com/lysyi3m/rss-digest/app/snapshot"
	"github.com/lysyi3m/rss-digest/app/tasks"
)

const (
	exitConfig   = 1
	exitOPML     = 2
	exitSnapshot = 3
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup happens before exit.
func run() int {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}
	if appCfg == nil {
		return 0
	}

	setupLogger(appCfg.Debug)

	slog.Info("Starting RSS Digest", "version", appCfg.Version, "mode", string(appCfg.Mode))

	rules, err := feed.LoadRules(appCfg.RulesFile)
	if err != nil {
		slog.Error("Failed to load rules", "path", appCfg.RulesFile, "error", err)
		return exitConfig
	}

	var (
		history  aggregator.History
		runs     database.RunRepository
		statuses database.FeedStatusRepository
	)
	if appCfg.DBPath != "" {
		db, err := database.Open(appCfg.DBPath)
		if err != nil {
			slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
			return exitConfig
		}
		defer db.Close()

		version, dirty, err := database.RunMigrations(db)
		if err != nil {
			slog.Error("Failed to run migrations", "error", err)
			return exitConfig
		}
		slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

		h := database.NewHistory(db)
		history, runs, statuses = h, h.Runs, h.Statuses
	}

	switch appCfg.Mode {
	case cfg.ModeServe:
		return runServe(appCfg, rules, history, runs, statuses)
	default:
		return runSnapshot(appCfg, rules, history)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func newAggregator(appCfg *cfg.Cfg, rules *feed.Rules, history aggregator.History, proxyURL string, opts aggregator.Options) *aggregator.Aggregator {
	fetcher := feed.NewFetcher(&http.Client{}, feed.NewParser(), feed.FetcherOptions{
		Timeout:    appCfg.FetchTimeout,
		Retries:    appCfg.FetchRetries,
		RetryDelay: appCfg.RetryDelay,
		UserAgent:  appCfg.UserAgent,
		ProxyURL:   proxyURL,
	})
	coordinator := tasks.NewCoordinator(fetcher, appCfg.Concurrency)

	return aggregator.New(coordinator, feed.NewFilterer(rules), history, opts)
}

func runSnapshot(appCfg *cfg.Cfg, rules *feed.Rules, history aggregator.History) int {
	agg := newAggregator(appCfg, rules, history, "", aggregator.Options{
		Mode:        string(cfg.ModeSnapshot),
		Window:      appCfg.Window(),
		MissingDate: feed.MissingDateExclude,
		Limit:       appCfg.MaxItems,
		OutputPath:  appCfg.OutputFile,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if appCfg.Interval <= 0 {
		return writeSnapshot(ctx, appCfg, agg)
	}

	scheduler := tasks.NewScheduler("snapshot", appCfg.Interval, func(ctx context.Context) error {
		if code := writeSnapshot(ctx, appCfg, agg); code != 0 {
			return fmt.Errorf("snapshot run exited with code %d", code)
		}
		return nil
	})
	scheduler.Start()

	slog.Info("Snapshot scheduler started", "interval", appCfg.Interval)
	<-ctx.Done()

	slog.Info("Shutting down scheduler...")
	scheduler.Stop()
	slog.Info("Scheduler stopped")

	return 0
}

// writeSnapshot performs one aggregation and writes the JSON document.
// The OPML file is read on every run so edits are picked up.
func writeSnapshot(ctx context.Context, appCfg *cfg.Cfg, agg *aggregator.Aggregator) int {
	descriptors, err := opml.ParseFile(appCfg.OPMLFile)
	if err != nil {
		slog.Error("Failed to read OPML", "path", appCfg.OPMLFile, "error", err)
		return exitOPML
	}
	if len(descriptors) == 0 {
		slog.Warn("OPML lists no feeds", "path", appCfg.OPMLFile)
	}

	progress := func(done, total int, outcome tasks.Outcome) {
		slog.Debug("Feed finished", "done", done, "total", total, "url", outcome.Descriptor.URL, "items", len(outcome.Items))
	}

	result := agg.Run(ctx, descriptors, progress)

	if err := snapshot.Write(appCfg.OutputFile, result); err != nil {
		slog.Error("Failed to write snapshot", "path", appCfg.OutputFile, "error", err)
		return exitSnapshot
	}

	slog.Info("Snapshot written",
		"path", appCfg.OutputFile,
		"items", len(result.Items),
		"feeds", result.FeedCount,
		"failed", len(result.FailedFeeds))

	return 0
}

func runServe(appCfg *cfg.Cfg, rules *feed.Rules, history aggregator.History,
	runs database.RunRepository, statuses database.FeedStatusRepository) int {
	agg := newAggregator(appCfg, rules, history, appCfg.ProxyURL, aggregator.Options{
		Mode:        string(cfg.ModeServe),
		Window:      time.Duration(appCfg.DefaultHours) * time.Hour,
		MissingDate: feed.MissingDateAsNow,
	})

	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	handler := api.NewHandler(runCtx, agg, runs, statuses, appCfg.DefaultHours, appCfg.Version)

	if _, err := os.Stat(appCfg.OPMLFile); err == nil {
		if err := handler.LoadFile(appCfg.OPMLFile); err != nil {
			slog.Warn("Failed to load OPML on startup", "path", appCfg.OPMLFile, "error", err)
		}
	} else {
		slog.Info("No OPML file found, waiting for upload", "path", appCfg.OPMLFile)
	}

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "proxy", appCfg.ProxyURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
		exitCode = exitConfig
	}

	slog.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	cancelRuns()
	handler.Wait()

	slog.Info("RSS Digest shutdown complete")
	return exitCode
}
