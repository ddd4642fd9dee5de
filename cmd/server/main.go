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

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/kortexhq/kortex-backend/internal/analyzer"
	"github.com/kortexhq/kortex-backend/internal/api/middleware"
	"github.com/kortexhq/kortex-backend/internal/api/rest"
	"github.com/kortexhq/kortex-backend/internal/api/websocket"
	"github.com/kortexhq/kortex-backend/internal/config"
	"github.com/kortexhq/kortex-backend/internal/k8s"
	"github.com/kortexhq/kortex-backend/internal/pkg/logger"
	"github.com/kortexhq/kortex-backend/internal/pkg/tracing"
	"github.com/kortexhq/kortex-backend/internal/remedy"
	"github.com/kortexhq/kortex-backend/internal/repository"
	"github.com/kortexhq/kortex-backend/internal/scan"
	"github.com/kortexhq/kortex-backend/internal/shadow"
	"github.com/kortexhq/kortex-backend/migrations"
)

func main() {
	log.Println("🚀 Kortex Backend starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slogger := logger.StdLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	log.Printf("📋 Configuration loaded: port=%d, db=%s (%s)", cfg.Port, cfg.DatabasePath, cfg.DatabaseDriver)

	// Tracing (optional)
	if cfg.OTLPEndpoint != "" {
		shutdownTracing, err := tracing.Init("kortex-backend", cfg.OTLPEndpoint, cfg.TraceSampleRatio)
		if err != nil {
			log.Printf("⚠️  Warning: tracing disabled: %v", err)
		} else {
			defer shutdownTracing()
			log.Printf("🔭 Tracing exporting to %s", cfg.OTLPEndpoint)
		}
	}

	// Database
	log.Println("💾 Initializing database...")
	var repo repository.Repository
	if cfg.DatabaseDriver == "postgres" {
		repo, err = repository.NewPostgresRepository(cfg.DatabaseDSN)
	} else {
		repo, err = repository.NewSQLiteRepository(cfg.DatabasePath)
	}
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}
	defer repo.Close()

	migrationSQL, err := migrations.FS.ReadFile("001_initial_schema.sql")
	if err != nil {
		log.Fatalf("❌ Failed to read embedded migrations: %v", err)
	}
	if err := repo.RunMigrations(string(migrationSQL)); err != nil {
		log.Fatalf("❌ Failed to run migrations: %v", err)
	}
	log.Println("✅ Database migrations completed")

	// Scans left non-terminal by a previous process are unrecoverable.
	if n, err := repo.MarkInterrupted(ctx); err != nil {
		log.Printf("⚠️  Warning: failed to mark interrupted scans: %v", err)
	} else if n > 0 {
		log.Printf("🧹 Marked %d interrupted scan(s) as failed", n)
	}

	// Cluster connections
	k8sOpts := k8s.ClientOptions{
		Timeout:         time.Duration(cfg.K8sTimeoutSec) * time.Second,
		RateLimitPerSec: cfg.K8sRateLimitPerSec,
		RateLimitBurst:  cfg.K8sRateLimitBurst,
	}
	registry := k8s.NewRegistry(k8sOpts)
	if connected, err := registry.LoadFromKubeconfig(ctx, cfg.KubeconfigPath); err != nil {
		log.Printf("⚠️  Warning: no clusters loaded from kubeconfig: %v", err)
	} else {
		log.Printf("☸️  Connected clusters: %v", connected)
	}

	// Analyzer
	az := analyzer.NewClient(analyzer.Options{
		APIKey:  cfg.AnalyzerAPIKey,
		Model:   cfg.AnalyzerModel,
		BaseURL: cfg.AnalyzerBaseURL,
	})
	log.Printf("🧠 Analyzer ready: provider=%s model=%s", cfg.AnalyzerProvider, cfg.AnalyzerModel)

	// Shadow environments
	shadows, err := shadow.NewVCluster(cfg.VClusterBinary, "", k8sOpts)
	if err != nil {
		log.Fatalf("❌ Failed to initialize shadow environment manager: %v", err)
	}

	// WebSocket hub
	wsHub := websocket.NewHub(ctx)
	go wsHub.Run()
	log.Println("🔌 WebSocket hub started")

	// Core services
	coordinator, err := scan.NewCoordinator(registry, az, repo, wsHub, slogger, scan.Options{
		IgnoredNamespaces: cfg.IgnoredNamespaces,
		ScanTimeout:       time.Duration(cfg.ScanTimeoutSec) * time.Second,
		FetchTimeout:      time.Duration(cfg.FetchTimeoutSec) * time.Second,
		GraphDepthDefault: cfg.GraphDepthDefault,
		GraphCacheSize:    cfg.GraphCacheSize,
	})
	if err != nil {
		log.Fatalf("❌ Failed to initialize scan coordinator: %v", err)
	}
	engine := remedy.NewEngine(registry, az, shadows, registry, repo, slogger, remedy.Options{
		ShadowSettle:   time.Duration(cfg.ShadowSettleSec) * time.Second,
		PollInterval:   time.Duration(cfg.WorkflowPollIntervalMs) * time.Millisecond,
		KubeconfigPath: cfg.KubeconfigPath,
	})
	log.Println("✅ Services initialized")

	// HTTP router
	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Tracing)
	router.Use(middleware.StructuredLog)
	router.Use(middleware.MaxBodySize(middleware.DefaultStandardMaxBodyBytes, middleware.DefaultBatchMaxBodyBytes))
	router.Use(recoveryMiddleware)

	handler := rest.NewHandler(coordinator, engine, registry, repo)
	rest.SetupRoutes(router, handler)

	wsHandler := websocket.NewHandler(ctx, wsHub)
	router.HandleFunc("/ws/scans", wsHandler.ServeWS).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      c.Handler(router),
		ReadTimeout:  time.Duration(cfg.RequestTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server listening on port %d", cfg.Port)
		log.Printf("📡 API available at http://localhost:%d/api/v1", cfg.Port)
		log.Printf("🔌 Scan feed at ws://localhost:%d/ws/scans", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	wsHub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}
	log.Println("✅ Server exited gracefully")
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("💥 Panic recovered: %v", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
