package ingest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/ignite/sendgrid-insights/internal/analytics"
	"github.com/ignite/sendgrid-insights/internal/metrics"
	"github.com/ignite/sendgrid-insights/internal/pkg/distlock"
	"github.com/ignite/sendgrid-insights/internal/pkg/logger"
	"github.com/ignite/sendgrid-insights/internal/service/events"
)

// S3API is the subset of the S3 client the importer uses.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, opts ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Sink receives parsed exports. *events.Service satisfies it.
type Sink interface {
	IngestRaw(ctx context.Context, source string, raws []analytics.RawEvent) (events.IngestResult, error)
}

// S3Config locates the export bucket.
type S3Config struct {
	Bucket          string
	Prefix          string
	ProcessedPrefix string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// NewS3Client builds an S3 client. Static credentials are used when given,
// otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// ObjectResult is the outcome of importing one export object.
type ObjectResult struct {
	Key     string              `json:"key"`
	BatchID string              `json:"batch_id"`
	Parse   ParseStats          `json:"parse"`
	Ingest  events.IngestResult `json:"ingest"`
	Error   string              `json:"error,omitempty"`
}

// ImportSummary is the outcome of one import pass.
type ImportSummary struct {
	Objects []ObjectResult `json:"objects"`
	Failed  int            `json:"failed"`
}

// S3Importer imports CSV exports dropped into a bucket and moves each
// imported object under the processed prefix. Passes are serialised
// across replicas by a distributed lock.
type S3Importer struct {
	client  S3API
	cfg     S3Config
	sink    Sink
	newLock func() distlock.DistLock
	log     *logger.Logger
	running int32
}

// NewS3Importer creates an importer. newLock returns a fresh lock per pass.
func NewS3Importer(client S3API, cfg S3Config, sink Sink, newLock func() distlock.DistLock) *S3Importer {
	if cfg.ProcessedPrefix == "" {
		cfg.ProcessedPrefix = "processed/"
	}
	return &S3Importer{
		client:  client,
		cfg:     cfg,
		sink:    sink,
		newLock: newLock,
		log:     logger.With("component", "s3-import", "bucket", cfg.Bucket),
	}
}

// RunOnce imports every pending export. It returns distlock.ErrNotAcquired
// when another replica is importing.
func (imp *S3Importer) RunOnce(ctx context.Context) (ImportSummary, error) {
	if !atomic.CompareAndSwapInt32(&imp.running, 0, 1) {
		return ImportSummary{}, distlock.ErrNotAcquired
	}
	defer atomic.StoreInt32(&imp.running, 0)

	var summary ImportSummary
	err := distlock.Run(ctx, imp.newLock(), func(ctx context.Context) error {
		keys, err := imp.pending(ctx)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res := imp.importObject(ctx, key)
			if res.Error != "" {
				summary.Failed++
			}
			summary.Objects = append(summary.Objects, res)
		}
		return nil
	})

	switch {
	case errors.Is(err, distlock.ErrNotAcquired):
		metrics.IncImportRun("skipped")
	case err != nil:
		metrics.IncImportRun("error")
	case summary.Failed > 0:
		metrics.IncImportRun("partial")
	default:
		metrics.IncImportRun("ok")
	}
	return summary, err
}

// pending lists the CSV objects under the prefix that have not been moved
// to the processed prefix.
func (imp *S3Importer) pending(ctx context.Context) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(imp.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(imp.cfg.Bucket),
		Prefix: aws.String(imp.cfg.Prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if obj.Size == nil || *obj.Size == 0 {
				continue
			}
			if strings.HasPrefix(key, imp.cfg.ProcessedPrefix) {
				continue
			}
			if !strings.HasSuffix(strings.ToLower(key), ".csv") {
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (imp *S3Importer) importObject(ctx context.Context, key string) ObjectResult {
	res := ObjectResult{Key: key, BatchID: uuid.New().String()}
	log := imp.log.With("key", key, "batch_id", res.BatchID)
	fail := func(err error) ObjectResult {
		res.Error = err.Error()
		log.Error("export import failed", "error", err)
		return res
	}

	obj, err := imp.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(imp.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fail(fmt.Errorf("get object: %w", err))
	}
	raws, stats, err := ParseCSV(obj.Body)
	obj.Body.Close()
	res.Parse = stats
	if err != nil {
		return fail(fmt.Errorf("parse export: %w", err))
	}

	if len(raws) > 0 {
		res.Ingest, err = imp.sink.IngestRaw(ctx, events.SourceS3, raws)
		if err != nil && !errors.Is(err, events.ErrEmptyBatch) {
			return fail(err)
		}
	}
	if err := imp.archive(ctx, key); err != nil {
		return fail(err)
	}
	log.Info("imported export", "rows", stats.Rows, "stored", res.Ingest.Stored)
	return res
}

// archive moves key under the processed prefix.
func (imp *S3Importer) archive(ctx context.Context, key string) error {
	dest := path.Join(imp.cfg.ProcessedPrefix, time.Now().UTC().Format("2006/01/02"), path.Base(key))
	_, err := imp.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(imp.cfg.Bucket),
		CopySource: aws.String(imp.cfg.Bucket + "/" + key),
		Key:        aws.String(dest),
	})
	if err != nil {
		return fmt.Errorf("copy to %s: %w", dest, err)
	}
	if _, err := imp.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(imp.cfg.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Start runs an import pass immediately and then every interval until ctx
// is cancelled.
func (imp *S3Importer) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if _, err := imp.RunOnce(ctx); err != nil && !errors.Is(err, distlock.ErrNotAcquired) && ctx.Err() == nil {
				imp.log.Error("s3 import pass failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
