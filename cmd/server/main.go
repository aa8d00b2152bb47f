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

	"github.com/feedstash/feedstash/app/api"
	"github.com/feedstash/feedstash/app/cfg"
	"github.com/feedstash/feedstash/app/database"
	"github.com/feedstash/feedstash/app/feed"
	"github.com/feedstash/feedstash/app/tags"
	"github.com/feedstash/feedstash/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Feedstash server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DataDir)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "migration_version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load feed configurations", "error", err)
		os.Exit(1)
	}
	slog.Info("Feed configurations loaded", "count", configCache.GetConfigCount())

	feedRepo := database.NewFeedRepository(db)
	itemRepo := database.NewItemRepository(db)
	tagRepo := database.NewTagRepository(db)

	// Register configured feeds
	registered := 0
	for _, feedConfig := range configCache.GetConfigs() {
		err := feedRepo.UpsertFeed(context.Background(), feedConfig.Name,
			feedConfig.URL, feedConfig.Settings.RetentionLimit)
		if err != nil {
			slog.Warn("Failed to register feed", "feed", feedConfig.Name, "error", err)
			continue
		}
		registered++
	}
	slog.Info("Feeds registered", "count", registered)

	// Core components
	fetcher := feed.NewFetcher(appCfg.UserAgent)
	parser := feed.NewParser()
	extractor := feed.NewExtractor()
	mapper := tags.NewMapper(tagRepo, itemRepo, appCfg.TagNamespace)
	reconciler := feed.NewReconciler(itemRepo, feedRepo, mapper)

	// Warm the tag mapping table before the first pass
	if err := mapper.Refresh(context.Background()); err != nil {
		slog.Warn("Initial tag mapping refresh failed", "error", err)
	}

	scheduler := tasks.NewScheduler(configCache, feedRepo, itemRepo,
		fetcher, parser, reconciler, extractor, mapper)
	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(configCache, feedRepo, itemRepo,
		fetcher, parser, reconciler, scheduler)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
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

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer; flush any mappings still pending
	if err := mapper.Commit(context.Background(), "shutdown"); err != nil {
		slog.Warn("Final tag mapping flush failed", "error", err)
	}

	slog.Info("Shutdown complete")
}
