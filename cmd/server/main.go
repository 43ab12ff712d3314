package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/fieldlens/reporting/internal/api"
	"github.com/fieldlens/reporting/internal/cache"
	"github.com/fieldlens/reporting/internal/config"
	"github.com/fieldlens/reporting/internal/db"
	"github.com/fieldlens/reporting/internal/engine"
	"github.com/fieldlens/reporting/internal/executor"
	"github.com/fieldlens/reporting/internal/middleware"
	"github.com/fieldlens/reporting/internal/optimizer"
	"github.com/fieldlens/reporting/internal/query"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, conn.Pool, "./migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Wire the reporting engine: builder over the entity graph, partition
	// optimizer over the configured catalog, pgx executor, coalescing cache.
	builder := query.NewBuilder(query.DefaultEntityGraph())
	opt := optimizer.New(cfg.Catalog())
	exec := executor.NewPostgresExecutor(conn.Pool)
	cacheStore := cache.NewPostgresStore(conn.Pool)
	cacheManager := cache.NewManager(cacheStore)
	reportEngine := engine.New(builder, opt, exec, cacheManager, cfg.CacheTTL)

	// Sweep expired cache entries in the background. Reads already enforce
	// expiry, the sweep only reclaims space.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed, err := cacheStore.Purge(ctx); err != nil {
					log.Printf("[CACHE] purge failed: %v", err)
				} else if removed > 0 {
					log.Printf("[CACHE] purged %d expired entries", removed)
				}
			}
		}
	}()

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	mux := http.NewServeMux()
	mux.Handle("/reports/execute", middleware.LoggingMiddleware(api.NewHandler(reportEngine)))
	mux.HandleFunc("/healthz", api.Healthz)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      corsHandler.Handler(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting reporting server on %s", cfg.ListenAddr)
		log.Printf("Report execution endpoint available at %s/reports/execute", cfg.ListenAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
