package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ignite/sendgrid-insights/internal/config"
	"github.com/ignite/sendgrid-insights/internal/ingest"
	"github.com/ignite/sendgrid-insights/internal/migrations"
	"github.com/ignite/sendgrid-insights/internal/pkg/distlock"
	"github.com/ignite/sendgrid-insights/internal/repository/postgres"
	"github.com/ignite/sendgrid-insights/internal/service/events"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <export.csv>...",
		Short: "Load SendGrid CSV exports into the insights database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, db, err := openEventService(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			for _, path := range args {
				res, stats, err := loadCSV(ctx, svc, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows, %d rejected, %d stored\n",
					path, stats.Rows, res.Rejected, res.Stored)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "s3",
		Short: "Run one S3 import pass using the configured bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Ingest.S3Bucket == "" {
				return fmt.Errorf("ingest.s3_bucket is not configured")
			}
			svc, db, err := openEventService(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			var redisClient *redis.Client
			if cfg.Redis.URL != "" {
				if opts, err := redis.ParseURL(cfg.Redis.URL); err == nil {
					redisClient = redis.NewClient(opts)
					defer redisClient.Close()
				}
			}

			s3cfg := s3Config(cfg.Ingest)
			client, err := ingest.NewS3Client(ctx, s3cfg)
			if err != nil {
				return err
			}
			importer := ingest.NewS3Importer(client, s3cfg, svc, func() distlock.DistLock {
				return distlock.NewLock(redisClient, db, "sendgrid-insights:s3-import", cfg.Ingest.LockTTL())
			})
			summary, err := importer.RunOnce(ctx)
			if err != nil {
				return err
			}
			for _, obj := range summary.Objects {
				status := fmt.Sprintf("%d stored", obj.Ingest.Stored)
				if obj.Error != "" {
					status = "failed: " + obj.Error
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", obj.Key, status)
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d objects failed", summary.Failed, len(summary.Objects))
			}
			return nil
		},
	})
	return cmd
}

func loadConfig() (*config.Config, error) {
	return config.LoadFromEnv(configFile)
}

func openEventService(ctx context.Context) (*events.Service, *sql.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	engine, err := reportEngine()
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return events.NewService(postgres.NewEventRepo(db), engine), db, nil
}

func s3Config(c config.IngestConfig) ingest.S3Config {
	return ingest.S3Config{
		Bucket:          c.S3Bucket,
		Prefix:          c.S3Prefix,
		ProcessedPrefix: c.S3ProcessedPrefix,
		Region:          c.S3Region,
		Endpoint:        c.S3Endpoint,
		AccessKeyID:     c.S3AccessKeyID,
		SecretAccessKey: c.S3SecretAccessKey,
		ForcePathStyle:  c.S3ForcePathStyle,
	}
}
