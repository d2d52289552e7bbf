package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cdematcher/backend/config"
	httpDelivery "github.com/cdematcher/backend/internal/delivery/http"
	"github.com/cdematcher/backend/internal/domain"
	"github.com/cdematcher/backend/internal/infrastructure/cache"
	"github.com/cdematcher/backend/internal/infrastructure/storage"
	"github.com/cdematcher/backend/internal/matcher"
	"github.com/cdematcher/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting CDE Matcher Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)

	// Initialize infrastructure dependencies
	reportCache, err := newCache(cfg.Cache)
	if err != nil {
		log.Fatalf("Failed to open cache: %v", err)
	}
	defer reportCache.Close()
	log.Printf("Cache: %s (TTL %s)", cfg.Cache.Type, cfg.Cache.TTL)

	datasets := newDatasetStore(cfg)

	// Initialize usecase layer
	factory := matcher.DefaultFactory()
	pipeline := usecase.NewPipeline(factory, usecase.PipelineConfig{
		Workers: cfg.Matching.Workers,
		Debug:   cfg.Matching.Debug,
	})
	defaults := cfg.Matching.Ensemble()
	matchService := usecase.NewMatchService(reportCache, datasets, pipeline, usecase.MatchServiceConfig{
		CacheTTL: cfg.Cache.TTL,
		Defaults: defaults,
		Debug:    cfg.Matching.Debug,
	})

	kinds := make([]domain.MatchType, 0, len(defaults))
	for _, c := range defaults {
		kinds = append(kinds, c.Kind())
	}
	log.Printf("Matching: default ensemble=%v, workers=%d, debug=%v", kinds, cfg.Matching.Workers, cfg.Matching.Debug)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(matchService, factory)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}

type reportStore interface {
	domain.CacheRepository
	io.Closer
}

func newCache(cfg config.CacheConfig) (reportStore, error) {
	if cfg.Type == "sqlite" {
		log.Printf("Opening SQLite cache at %s", cfg.Path)
		store, err := cache.OpenSQLiteCache(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return cache.NewMemoryCache(), nil
}

func newDatasetStore(cfg *config.Config) domain.DatasetRepository {
	if cfg.Storage.Type == "bucket" {
		client := storage.NewBucketClient(storage.BucketConfig{
			BaseURL:           cfg.Storage.BucketBaseURL,
			Bucket:            cfg.Storage.BucketName,
			AccessToken:       cfg.Storage.AccessToken,
			Prefixes:          cfg.Storage.Prefixes(),
			RequestsPerMinute: cfg.RateLimit.Bucket,
		})

		// Enable debug mode in development environment
		if cfg.Server.Environment == "development" {
			client.SetDebug(true)
			log.Printf("Bucket client debug mode enabled")
		}
		if cfg.Storage.AccessToken == "" {
			log.Printf("WARNING: bucket %s configured without an access token (public objects only)", cfg.Storage.BucketName)
		}
		log.Printf("Datasets: bucket %s at %s", cfg.Storage.BucketName, cfg.Storage.BucketBaseURL)
		return client
	}

	log.Printf("Datasets: local directory %s", cfg.Storage.LocalDir)
	return storage.NewLocalRepository(cfg.Storage.LocalDir)
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
