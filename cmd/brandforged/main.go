package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/halcyard/brandforge/internal/agents"
	"github.com/halcyard/brandforge/internal/api"
	"github.com/halcyard/brandforge/internal/backend"
	"github.com/halcyard/brandforge/internal/blobstore"
	"github.com/halcyard/brandforge/internal/config"
	"github.com/halcyard/brandforge/internal/docstore"
	"github.com/halcyard/brandforge/internal/memory"
	"github.com/halcyard/brandforge/internal/orchestrator"
	"github.com/halcyard/brandforge/internal/planner"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting BrandForge...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/brandforge.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Generation backend with retry
	policy := backend.DefaultPolicy()
	if cfg.Backend.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.Backend.MaxAttempts
	}
	be := backend.WithRetry(backend.NewGoogleBackend(backend.Config{
		Endpoint:   cfg.Backend.Endpoint,
		APIKey:     cfg.Backend.APIKey,
		Model:      cfg.Backend.Model,
		ImageModel: cfg.Backend.ImageModel,
		Timeout:    cfg.Backend.Timeout,
	}, logger), policy, logger)

	// Session memory: Redis when configured, in-process otherwise
	var mem memory.Store
	if cfg.Database.Redis.URL != "" {
		rm, rErr := memory.NewRedis(cfg.Database.Redis.URL, logger)
		if rErr != nil {
			logger.Warn("Redis unavailable, using in-process memory", zap.Error(rErr))
		} else {
			mem = rm
		}
	}
	if mem == nil {
		mem = memory.NewInMem()
	}

	// Blob store for generated images
	var blobs blobstore.Store
	if cfg.Database.Redis.URL != "" {
		rb, rErr := blobstore.NewRedis(cfg.Database.Redis.URL, logger)
		if rErr != nil {
			logger.Warn("Redis unavailable, using in-process blob store", zap.Error(rErr))
		} else {
			blobs = rb
		}
	}
	inmemBlobs := (*blobstore.InMem)(nil)
	if blobs == nil {
		inmemBlobs = blobstore.NewInMem()
		blobs = inmemBlobs
	}

	// Document store
	var docs *docstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ds, dErr := docstore.New(cfg.Database.Postgres.DSN, logger)
		if dErr != nil {
			logger.Warn("PostgreSQL unavailable, running without document store", zap.Error(dErr))
		} else {
			if mErr := ds.Migrate(context.Background(), "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			docs = ds
		}
	}

	// Agent registry
	registry := agents.NewRegistry()
	registry.Register(agents.NewAnalyst(be, logger))
	registry.Register(agents.NewDirector(be, logger))
	registry.Register(agents.NewAuditor(be, cfg.Orchestrator.PassThreshold, logger))
	registry.Register(agents.NewTrendScout(be, logger))
	registry.Register(agents.NewMemoryAgent(mem))
	registry.Register(agents.NewExporter())

	// Orchestration
	pl := planner.New(be, logger)
	ex := orchestrator.NewExecutor(registry, logger)
	loop := orchestrator.NewLoop(be, registry, cfg.Orchestrator.LoopMaxSteps, cfg.Orchestrator.PassThreshold, logger)
	svc := orchestrator.NewService(pl, ex, loop, mem, orchestrator.Strategy(cfg.Orchestrator.Strategy), logger)

	handler := api.NewHandler(svc, blobs, docs, mem, logger)

	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("BrandForge listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down BrandForge...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	if docs != nil {
		docs.Close()
	}
	if inmemBlobs != nil {
		inmemBlobs.Close()
	}
}
