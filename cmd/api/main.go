package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"

	"docvault/internal/blob"
	"docvault/internal/cleanup"
	"docvault/internal/config"
	"docvault/internal/database"
	"docvault/internal/database/migration"
	"docvault/internal/hash"
	handlers "docvault/internal/http/handler"
	"docvault/internal/http/middleware"
	"docvault/internal/otel"
	"docvault/internal/repository/postgres"
	"docvault/internal/service"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	loc := time.UTC
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing is configured from standard OTEL_* environment variables and
	// degrades to a noop provider when the exporter cannot be reached.
	otelShutdown, err := otel.Init(ctx, loc)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, loc, cfg.Database.Host); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// The digest algorithm is fixed per deployment; an unknown name must
	// stop the process before any content is accepted.
	hasher, err := hash.New(cfg.Blob.HashAlgorithm)
	if err != nil {
		log.Fatalf("failed to initialize hasher: %v", err)
	}

	registry := prometheus.NewRegistry()

	blobMetrics, err := blob.NewMetrics(registry)
	if err != nil {
		log.Fatalf("failed to register blob metrics: %v", err)
	}

	store, err := newBlobStore(cfg, hasher, blobMetrics)
	if err != nil {
		log.Fatalf("failed to initialize blob store: %v", err)
	}

	// Initialize repositories and services
	docRepo := postgres.NewDocumentPostgres(db)
	revRepo := postgres.NewRevisionPostgres(db)
	refRepo := postgres.NewReferencePostgres(db)
	transactor := postgres.NewTransactor(db)
	docSvc := service.NewDocumentService(store, docRepo, revRepo, refRepo, transactor)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())

	promMiddleware, err := middleware.NewPrometheusMiddleware(registry)
	if err != nil {
		log.Fatalf("failed to register http metrics: %v", err)
	}
	app.Use(promMiddleware.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, db, docSvc)

	// Background purge of documents past the archive retention window
	sweeper := cleanup.NewSweeper(docRepo, docSvc, cfg.Cleanup.Interval, cfg.Cleanup.Retention)
	go sweeper.Run(ctx)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	stop()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := otelShutdown(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}

// newBlobStore picks the content-addressed backend from configuration.
func newBlobStore(cfg *config.AppConfig, hasher *hash.Hasher, metrics *blob.Metrics) (blob.Store, error) {
	if cfg.Blob.Backend == "s3" {
		return blob.NewMinIO(cfg.MinIO, cfg.Blob.PrefixLength, hasher, metrics)
	}
	return blob.NewFS(afero.NewOsFs(), cfg.Blob.RootDir, cfg.Blob.PrefixLength, hasher, metrics)
}
