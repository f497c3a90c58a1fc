package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/sendgrid-insights/internal/analytics"
	"github.com/ignite/sendgrid-insights/internal/api"
	"github.com/ignite/sendgrid-insights/internal/auth"
	"github.com/ignite/sendgrid-insights/internal/cache"
	"github.com/ignite/sendgrid-insights/internal/config"
	"github.com/ignite/sendgrid-insights/internal/ingest"
	"github.com/ignite/sendgrid-insights/internal/metrics"
	"github.com/ignite/sendgrid-insights/internal/migrations"
	"github.com/ignite/sendgrid-insights/internal/pkg/distlock"
	"github.com/ignite/sendgrid-insights/internal/pkg/logger"
	"github.com/ignite/sendgrid-insights/internal/ratelimit"
	"github.com/ignite/sendgrid-insights/internal/repository/postgres"
	"github.com/ignite/sendgrid-insights/internal/service/events"
	"github.com/ignite/sendgrid-insights/internal/service/suppression"
	"github.com/ignite/sendgrid-insights/internal/storage"
)

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
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactPII)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	metrics.SetGlobal(m)

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	logger.Info("connecting to database", "host", extractHost(cfg.Database.URL))
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	err = db.PingContext(pingCtx)
	pingCancel()
	if err != nil {
		log.Fatalf("Database ping failed: %v", err)
	}
	if err := migrations.Up(db); err != nil {
		log.Fatalf("Migrations failed: %v", err)
	}

	redisClient := connectRedis(ctx, cfg.Redis.URL)
	if redisClient != nil {
		defer redisClient.Close()
	}

	engine, err := analytics.NewForZone(cfg.Analytics.Timezone)
	if err != nil {
		log.Fatalf("Invalid report timezone %q: %v", cfg.Analytics.Timezone, err)
	}

	eventSvc := events.NewService(postgres.NewEventRepo(db), engine,
		events.WithCache(reportCache(cfg.Cache, redisClient)))
	suppressionSvc := suppression.NewService(postgres.NewSuppressionRepo(db))

	deps := api.Deps{
		Events:               eventSvc,
		Suppressions:         suppressionSvc,
		MaxWebhookEvents:     cfg.Ingest.WebhookMaxEvents,
		MaxUploadBytes:       int64(cfg.Server.MaxUploadMB) << 20,
		SuppressFromWebhooks: cfg.Ingest.SuppressFromHooks,
	}

	if key := cfg.Ingest.WebhookPublicKey; key != "" {
		v, err := ingest.NewVerifier(key)
		if err != nil {
			log.Fatalf("Invalid webhook public key: %v", err)
		}
		deps.Verifier = v
		logger.Info("webhook signature verification enabled")
	}

	archive, err := storage.New(ctx, storage.Config{
		Type:          cfg.Archive.Type,
		LocalPath:     cfg.Archive.LocalPath,
		S3Bucket:      cfg.Archive.S3Bucket,
		S3Prefix:      cfg.Archive.S3Prefix,
		DynamoDBTable: cfg.Archive.DynamoDBTable,
		AWSRegion:     cfg.Archive.AWSRegion,
		AWSProfile:    cfg.Archive.GetAWSProfile(),
		RetentionDays: cfg.Archive.RetentionDays,
	})
	if err != nil {
		log.Fatalf("Failed to initialize report archive: %v", err)
	}
	if archive != nil {
		deps.Snapshots = storage.NewSnapshotter(archive, eventSvc, cfg.Archive.S3Prefix)
		logger.Info("report archive enabled", "type", cfg.Archive.Type)
	}

	var bucketProbe api.BucketHeader
	if cfg.Ingest.S3Bucket != "" {
		s3cfg := ingest.S3Config{
			Bucket:          cfg.Ingest.S3Bucket,
			Prefix:          cfg.Ingest.S3Prefix,
			ProcessedPrefix: cfg.Ingest.S3ProcessedPrefix,
			Region:          cfg.Ingest.S3Region,
			Endpoint:        cfg.Ingest.S3Endpoint,
			AccessKeyID:     cfg.Ingest.S3AccessKeyID,
			SecretAccessKey: cfg.Ingest.S3SecretAccessKey,
			ForcePathStyle:  cfg.Ingest.S3ForcePathStyle,
		}
		client, err := ingest.NewS3Client(ctx, s3cfg)
		if err != nil {
			log.Fatalf("Failed to initialize S3 import client: %v", err)
		}
		lockTTL := cfg.Ingest.LockTTL()
		importer := ingest.NewS3Importer(client, s3cfg, eventSvc, func() distlock.DistLock {
			return distlock.NewLock(redisClient, db, "sendgrid-insights:s3-import", lockTTL)
		})
		go importer.Start(ctx, cfg.Ingest.PollInterval())
		deps.Importer = importer
		bucketProbe = client
		logger.Info("s3 import enabled", "bucket", s3cfg.Bucket, "interval", cfg.Ingest.PollInterval().String())
	}

	authManager, err := auth.NewManager(cfg.Auth, !cfg.Server.Dev)
	if err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}
	loginLimiter := ratelimit.PerMinute("login", cfg.Auth.LoginRatePerMinute, cfg.Auth.LoginBurst)
	go loginLimiter.Cleanup(ctx)

	opts := api.RouteOptions{
		LoginLimiter: loginLimiter,
		Health:       api.NewHealthChecker(db,
			api.WithReportCache(redisClient),
			api.WithImportBucket(bucketProbe, cfg.Ingest.S3Bucket),
			api.WithStaleAfter(cfg.Ingest.StaleAfter()),
		),
		Metrics:      m.Handler(),
	}
	if authManager.Enabled() {
		opts.Auth = authManager
	} else {
		logger.Warn("dashboard authentication is disabled")
	}

	server := api.NewServer(cfg.Server, api.NewHandlers(deps), opts)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "addr", server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

// connectRedis returns nil when url is empty or unreachable; callers fall
// back to PostgreSQL advisory locks and the in-process cache.
func connectRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, continuing without it", "error", err)
		client.Close()
		return nil
	}
	logger.Info("redis connected")
	return client
}

func reportCache(cfg config.CacheConfig, redisClient *redis.Client) cache.ReportCache {
	switch cfg.Backend {
	case "redis":
		if redisClient != nil {
			return cache.NewRedisCache(redisClient, cfg.TTL())
		}
		logger.Warn("redis cache requested without redis, using memory cache")
	case "none", "off":
		return cache.Nop{}
	}
	mc, err := cache.NewMemoryCache(int64(cfg.MaxMB)<<20, cfg.TTL())
	if err != nil {
		logger.Warn("memory cache unavailable, caching disabled", "error", err)
		return cache.Nop{}
	}
	return mc
}
