package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/climblog/internal/api"
	"github.com/ignite/climblog/internal/config"
	"github.com/ignite/climblog/internal/grade"
	"github.com/ignite/climblog/internal/pkg/httpretry"
	"github.com/ignite/climblog/internal/pkg/logger"
	"github.com/ignite/climblog/internal/repository/postgres"
	"github.com/ignite/climblog/internal/service/climbimport"
	"github.com/ignite/climblog/internal/storage"
	"github.com/ignite/climblog/internal/worker"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

// extractHost returns the host part of a postgres DSN for logging without
// the credentials.
func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  Climb Log Import Server (cmd/server/main.go)             ║")
	log.Println("║  CSV / JSON / XLSX climb import with grade normalization  ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedact(cfg.Log.RedactEnabled())

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", cfg.Server.Port)

	// PostgreSQL
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Database unreachable (%s): %v", extractHost(cfg.Database.URL), err)
	}
	pingCancel()
	log.Printf("Connected to PostgreSQL at %s", extractHost(cfg.Database.URL))

	redisClient := connectRedis(cfg.Redis.URL)
	if redisClient != nil {
		defer redisClient.Close()
	}

	climbRepo := postgres.NewClimbRepo(db)
	jobRepo := postgres.NewImportJobRepo(db)
	importer := climbimport.NewService(climbRepo, climbimport.Options{
		FailClosedOnLookupError: cfg.Import.FailClosedOnLookupError,
	})

	target, _ := grade.ParseSystem(cfg.Import.DefaultTargetGrade)
	uploads := worker.NewClimbUploadService(db, redisClient, importer, worker.ClimbUploadOptions{
		LockTTL:            cfg.Import.LockTTL(),
		ProgressTTL:        cfg.Import.ProgressTTL(),
		DefaultTargetGrade: target,
	}).WithJobStore(jobRepo)

	httpClient := httpretry.NewRetryClient(nil, cfg.Import.FetchMaxRetries, cfg.Import.FetchTimeout())
	uploads.WithRemoteSource(storage.NewRemoteFetcher(httpClient, cfg.Import.MaxUploadBytes))

	var exportPinger api.Pinger
	if cfg.Storage.Enabled() {
		store, err := storage.NewExportStore(context.Background(), cfg.Storage)
		if err != nil {
			log.Printf("Warning: S3 export store unavailable: %v", err)
		} else {
			uploads.WithExportStore(store, store)
			exportPinger = store
			log.Printf("S3 export store enabled (bucket: %s)", store.Bucket())
		}
	} else {
		log.Println("S3 export store not configured (no bucket)")
	}

	var redisPinger api.Pinger
	if redisClient != nil {
		redisPinger = api.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}
	health := api.NewHealthChecker(db, redisPinger, exportPinger)

	router := api.SetupRoutes(health, cfg.Server.AllowedOrigins,
		api.NewImportHandlers(importer, uploads, climbRepo, cfg.Import.MaxUploadBytes),
		api.NewGradeHandlers(),
	)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized, server is ready")

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// connectRedis returns nil when Redis is not configured or unreachable; the
// upload service then locks through PostgreSQL and skips progress tracking.
func connectRedis(redisURL string) *redis.Client {
	if redisURL == "" {
		log.Println("Redis not configured, using PG advisory locks")
		return nil
	}

	var client *redis.Client
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	} else {
		client = redis.NewClient(opts)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed: %v; falling back to PG advisory locks", err)
		client.Close()
		return nil
	}
	log.Println("Connected to Redis")
	return client
}
