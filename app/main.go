package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/feed-warden/app/api"
	"github.com/lysyi3m/feed-warden/app/cfg"
	"github.com/lysyi3m/feed-warden/app/database"
	"github.com/lysyi3m/feed-warden/app/feed"
	"github.com/lysyi3m/feed-warden/app/logging"
	"github.com/lysyi3m/feed-warden/app/queue"
	"github.com/lysyi3m/feed-warden/app/scrape"
	"github.com/lysyi3m/feed-warden/app/tasks"
)

type scrapeQueue interface {
	tasks.ScrapeQueue
	api.QueueDepth
	Close() error
}

var (
	_ scrapeQueue = (*queue.Memory)(nil)
	_ scrapeQueue = (*queue.Redis)(nil)
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	logCloser := logging.Setup(logging.Options{
		Debug:      appCfg.Debug,
		File:       appCfg.LogFile,
		MaxSizeMB:  appCfg.LogMaxSizeMB,
		MaxBackups: appCfg.LogMaxBackups,
		MaxAgeDays: appCfg.LogMaxAgeDays,
	})
	defer logCloser.Close()

	if err := run(appCfg); err != nil {
		slog.Error("Feed Warden stopped with error", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting Feed Warden", "version", appCfg.Version, "workers", appCfg.WorkerCount, "queue", appCfg.QueueBackend)

	db, err := database.Open(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load source configurations: %w", err)
	}
	slog.Info("Source configurations loaded", "dir", appCfg.FeedsDir, "count", configCache.GetConfigCount())

	store := database.NewStore(db)

	sq, err := newScrapeQueue(appCfg)
	if err != nil {
		return err
	}
	defer sq.Close()

	httpClient := &http.Client{}

	var browser scrape.Scraper
	if appCfg.BrowserScrape {
		b := scrape.NewBrowser(scrape.BrowserOptions{UserAgent: appCfg.UserAgent, InstallDriver: true})
		defer b.Close()
		browser = b
	}
	registry := scrape.NewRegistry(
		scrape.NewReadability(httpClient, appCfg.UserAgent),
		scrape.NewRaw(httpClient, appCfg.UserAgent),
		browser,
	)

	fetchTimeout := time.Duration(appCfg.FetchTimeout) * time.Second
	executor := tasks.NewFetchExecutor(store, feed.NewFetcher(httpClient, appCfg.UserAgent), feed.NewParser(), fetchTimeout)
	dispatcher := tasks.NewDispatcher(sq)
	pipeline := tasks.NewPipeline(store, executor, dispatcher, tasks.NewLeaseSet())

	scheduler := tasks.NewScheduler(store, pipeline, dispatcher, tasks.SchedulerOptions{
		Interval:    time.Duration(appCfg.SchedulerInterval) * time.Second,
		WorkerCount: appCfg.WorkerCount,
		Location:    appCfg.Location(),
	})
	scheduler.AddStartupTask(tasks.NewSyncSourcesTask(configCache, store))
	if err := scheduler.AddCronTask(appCfg.RetentionSchedule, func() tasks.TaskInterface {
		return tasks.NewRetentionTask(store, time.Now())
	}); err != nil {
		return err
	}

	scrapeWorkers := tasks.NewScrapeWorkerPool(sq, store, registry, appCfg.ScrapeWorkerCount, 2*fetchTimeout)

	scheduler.Start()
	scrapeWorkers.Start()

	handler := api.NewHandler(store, configCache, scheduler, sq, appCfg.Version)
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // manual fetches run inline
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()
	slog.Info("Scheduler stopped")

	scrapeWorkers.Stop()
	slog.Info("Scrape workers stopped")

	slog.Info("Feed Warden shutdown complete")
	return runErr
}

func newScrapeQueue(appCfg *cfg.Cfg) (scrapeQueue, error) {
	switch appCfg.QueueBackend {
	case cfg.QueueRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		q, err := queue.NewRedis(ctx, queue.RedisOptions{
			Addr:        appCfg.RedisAddr,
			Password:    appCfg.RedisPassword,
			DB:          appCfg.RedisDB,
			InFlightTTL: appCfg.InFlightTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("Scrape queue ready", "backend", "redis", "addr", appCfg.RedisAddr)
		return q, nil
	default:
		slog.Info("Scrape queue ready", "backend", "memory")
		return queue.NewMemory(0), nil
	}
}
