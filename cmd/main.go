package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"comfy-studio/server/internal/config"
	"comfy-studio/server/internal/engine"
	"comfy-studio/server/internal/generators"
	"comfy-studio/server/internal/infra"
	"comfy-studio/server/internal/models"
	"comfy-studio/server/internal/prompter"
	"comfy-studio/server/internal/storage"
	"comfy-studio/server/internal/web"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize storage connections
	mysqlStore, err := storage.NewMySQLStore(cfg.Database.MySQL)
	if err != nil {
		log.Printf("Warning: Failed to connect to MySQL: %v", err)
		mysqlStore = nil
	} else {
		defer mysqlStore.Close()
		log.Println("MySQL connected successfully")
	}

	redisStore, err := storage.NewRedisStore(cfg.Database.Redis)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
		redisStore = nil
	} else {
		defer redisStore.Close()
		log.Println("Redis connected successfully")
	}

	// Engine-facing components
	comfyClient := generators.NewComfyClient(cfg.Engine.BaseURL)
	resolver := generators.NewAssetResolver(comfyClient)
	poller := generators.NewPollerWithClock(comfyClient, cfg.Engine.PollInterval, cfg.Engine.PollAttempts, time.After)

	_ = os.MkdirAll(cfg.Cache.Directory, 0755)
	artifactCache := generators.NewArtifactCache(comfyClient, cfg.Cache.Directory, cfg.Cache.TTL)
	if err := artifactCache.Initialize(); err != nil {
		log.Printf("Warning: Failed to initialize artifact cache: %v", err)
	}

	// Model catalog, best effort
	catalogCtx, cancelCatalog := context.WithTimeout(context.Background(), 10*time.Second)
	catalog := generators.FetchCatalog(catalogCtx, comfyClient)
	cancelCatalog()
	log.Printf("Model catalog loaded: %d checkpoints, %d controlnets", len(catalog.Checkpoints), len(catalog.ControlNets))

	// Engine reachability monitor
	monitorCtx, cancelMonitor := context.WithCancel(context.Background())
	defer cancelMonitor()
	monitor := infra.NewEngineMonitor(comfyClient, cfg.Engine.CheckInterval)
	go monitor.Start(monitorCtx)

	// Prompt assistant against the local LLM
	assistant := prompter.NewAssistant(cfg.Assistant.BaseURL, cfg.Assistant.SuggestModel, cfg.Assistant.RefineModel)

	// Run coordinator and event fan-out
	hub := web.NewRunHub()
	go hub.Run()

	runEngine := engine.NewRunEngine(resolver, comfyClient, poller)
	runEngine.OnUpdate = func(run engine.Run) {
		hub.Broadcast(run)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if redisStore != nil {
			if err := redisStore.SetRunState(ctx, run.ID, run); err != nil {
				log.Printf("Warning: Failed to mirror run state: %v", err)
			}
			if run.State == engine.RunCompleted {
				if err := redisStore.PushArtifacts(ctx, run.Artifacts); err != nil {
					log.Printf("Warning: Failed to store artifacts: %v", err)
				}
			}
		}

		if mysqlStore != nil {
			record := models.RunRecord{
				ID:        run.ID,
				Kind:      string(run.Kind),
				State:     string(run.State),
				JobID:     run.JobID,
				Error:     run.Error,
				CreatedAt: run.CreatedAt,
				UpdatedAt: run.UpdatedAt,
			}
			if err := mysqlStore.SaveRun(record); err != nil {
				log.Printf("Warning: Failed to persist run: %v", err)
			}
			if run.State == engine.RunCompleted {
				records := make([]models.ArtifactRecord, 0, len(run.Artifacts))
				for _, artifact := range run.Artifacts {
					records = append(records, models.FromArtifact(run.ID, artifact))
				}
				if err := mysqlStore.SaveArtifacts(records); err != nil {
					log.Printf("Warning: Failed to persist artifacts: %v", err)
				}
			}
		}
	}

	handlers := web.NewHandlers(cfg, hub, runEngine, catalog, redisStore, mysqlStore, artifactCache, monitor, assistant)
	r := web.NewRouter(handlers)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in background
	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
