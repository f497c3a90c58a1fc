package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/sendgrid-insights/internal/metrics"
	"github.com/ignite/sendgrid-insights/internal/service/events"
)

// ErrSnapshotNotFound is returned when a snapshot id is unknown.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Config selects the archive backend.
type Config struct {
	Type          string // "local" or "aws"; empty disables archiving
	LocalPath     string
	S3Bucket      string
	S3Prefix      string
	DynamoDBTable string
	AWSRegion     string
	AWSProfile    string // empty uses the default credential chain
	RetentionDays int
}

// SnapshotMeta is the index entry of an archived report.
type SnapshotMeta struct {
	ID         string    `json:"id" dynamodbav:"ID"`
	CreatedAt  time.Time `json:"created_at" dynamodbav:"CreatedAt"`
	Start      string    `json:"start,omitempty" dynamodbav:"Start,omitempty"`
	End        string    `json:"end,omitempty" dynamodbav:"End,omitempty"`
	EventCount int       `json:"event_count" dynamodbav:"EventCount"`
	Key        string    `json:"key" dynamodbav:"Key"`
	Note       string    `json:"note,omitempty" dynamodbav:"Note,omitempty"`
}

// Snapshot is an archived overview report.
type Snapshot struct {
	SnapshotMeta
	Overview events.Overview `json:"overview"`
}

// Archive stores report snapshots.
type Archive interface {
	Put(ctx context.Context, snap Snapshot) error
	Get(ctx context.Context, id string) (*Snapshot, error)
	// List returns the newest snapshots first.
	List(ctx context.Context, limit int) ([]SnapshotMeta, error)
}

// New builds the archive configured by cfg. It returns nil, nil when
// archiving is disabled.
func New(ctx context.Context, cfg Config) (Archive, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "local":
		return NewLocalArchive(cfg.LocalPath)
	case "aws":
		a, err := NewAWSArchive(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("initializing AWS archive: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unsupported archive type %q", cfg.Type)
	}
}

// snapshotKey is the object key of a snapshot body.
func snapshotKey(prefix, id string) string {
	if prefix == "" {
		prefix = "snapshots/"
	}
	return prefix + id + ".json"
}

// Snapshotter captures overview reports into an archive.
type Snapshotter struct {
	archive Archive
	reports *events.Service
	prefix  string
	now     func() time.Time
}

// NewSnapshotter creates a snapshotter writing to archive.
func NewSnapshotter(archive Archive, reports *events.Service, prefix string) *Snapshotter {
	return &Snapshotter{archive: archive, reports: reports, prefix: prefix, now: time.Now}
}

// Capture builds the overview for q and archives it.
func (s *Snapshotter) Capture(ctx context.Context, q events.Query, note string) (SnapshotMeta, error) {
	overview, err := s.reports.Overview(ctx, q)
	if err != nil {
		metrics.IncSnapshot("error")
		return SnapshotMeta{}, err
	}

	id := uuid.New().String()
	meta := SnapshotMeta{
		ID:         id,
		CreatedAt:  s.now().UTC(),
		Start:      q.Start,
		End:        q.End,
		EventCount: overview.EventCount,
		Key:        snapshotKey(s.prefix, id),
		Note:       note,
	}
	if err := s.archive.Put(ctx, Snapshot{SnapshotMeta: meta, Overview: overview}); err != nil {
		metrics.IncSnapshot("error")
		return SnapshotMeta{}, fmt.Errorf("archive snapshot: %w", err)
	}
	metrics.IncSnapshot("ok")
	return meta, nil
}

// Get returns an archived snapshot.
func (s *Snapshotter) Get(ctx context.Context, id string) (*Snapshot, error) {
	return s.archive.Get(ctx, id)
}

// List returns the newest archived snapshots.
func (s *Snapshotter) List(ctx context.Context, limit int) ([]SnapshotMeta, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.archive.List(ctx, limit)
}
