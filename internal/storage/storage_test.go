package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/sendgrid-insights/internal/analytics"
	"github.com/ignite/sendgrid-insights/internal/domain"
	"github.com/ignite/sendgrid-insights/internal/service/events"
)

func meta(id string, created time.Time) SnapshotMeta {
	return SnapshotMeta{ID: id, CreatedAt: created, Key: snapshotKey("", id), EventCount: 3}
}

func TestNew(t *testing.T) {
	a, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, a)

	a, err = New(context.Background(), Config{Type: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalArchive{}, a)

	_, err = New(context.Background(), Config{Type: "ftp"})
	assert.Error(t, err)
}

func TestLocalArchive_PutGetList(t *testing.T) {
	a, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"one", "two", "three"} {
		snap := Snapshot{SnapshotMeta: meta(id, base.Add(time.Duration(i)*time.Hour))}
		snap.Overview.EventCount = i
		require.NoError(t, a.Put(ctx, snap))
	}

	got, err := a.Get(ctx, "two")
	require.NoError(t, err)
	assert.Equal(t, "two", got.ID)
	assert.Equal(t, 1, got.Overview.EventCount)

	list, err := a.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "three", list[0].ID)
	assert.Equal(t, "two", list[1].ID)

	_, err = a.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

type fakeIndex struct {
	items     []map[string]types.AttributeValue
	lastQuery *dynamodb.QueryInput
}

func (f *fakeIndex) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.items = append(f.items, in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// Query returns items newest first, matching ScanIndexForward=false on
// SK values that were inserted in ascending order.
func (f *fakeIndex) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQuery = in
	out := make([]map[string]types.AttributeValue, 0, len(f.items))
	for i := len(f.items) - 1; i >= 0; i-- {
		out = append(out, f.items[i])
		if in.Limit != nil && len(out) == int(*in.Limit) {
			break
		}
	}
	return &dynamodb.QueryOutput{Items: out}, nil
}

func TestAWSArchive(t *testing.T) {
	objects := &fakeObjects{objects: map[string][]byte{}}
	index := &fakeIndex{}
	a := NewAWSArchiveWithClients(objects, index, Config{S3Bucket: "b", DynamoDBTable: "t", RetentionDays: 30})
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, a.Put(ctx, Snapshot{SnapshotMeta: meta("s1", base)}))
	require.NoError(t, a.Put(ctx, Snapshot{SnapshotMeta: meta("s2", base.Add(time.Hour))}))

	assert.Contains(t, objects.objects, "snapshots/s1.json")

	var item DynamoDBItem
	require.NoError(t, attributevalue.UnmarshalMap(index.items[0], &item))
	assert.Equal(t, "SNAPSHOT", item.PK)
	assert.Equal(t, "2025-03-01T00:00:00Z#s1", item.SK)
	assert.Equal(t, base.Add(30*24*time.Hour).Unix(), item.TTL)

	got, err := a.Get(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, "s2", got.ID)

	list, err := a.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "s2", list[0].ID)
	assert.False(t, *index.lastQuery.ScanIndexForward)

	_, err = a.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

type staticRepo struct {
	events []domain.Event
	err    error
}

func (r *staticRepo) Upsert(context.Context, []domain.Event) (int, error) { return 0, nil }
func (r *staticRepo) List(context.Context, events.ListFilter) ([]domain.Event, error) {
	return r.events, r.err
}
func (r *staticRepo) ListAfter(context.Context, int64, int) ([]domain.Event, error) { return nil, nil }
func (r *staticRepo) Count(context.Context) (int, error)                          { return len(r.events), nil }

type failingArchive struct{ Archive }

func (failingArchive) Put(context.Context, Snapshot) error { return errors.New("disk full") }

func TestSnapshotter_Capture(t *testing.T) {
	ts := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	repo := &staticRepo{events: []domain.Event{
		{ID: "a", Recipient: "x@acme.io", Kind: domain.KindDelivered, OccurredAt: ts},
		{ID: "b", Recipient: "x@acme.io", Kind: domain.KindOpen, OccurredAt: ts.Add(time.Minute)},
	}}
	svc := events.NewService(repo, analytics.New())

	archive, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)
	snaps := NewSnapshotter(archive, svc, "")
	ctx := context.Background()

	m, err := snaps.Capture(ctx, events.Query{Start: "2025-03-01", End: "2025-03-05"}, "weekly")
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, 2, m.EventCount)
	assert.Equal(t, "snapshots/"+m.ID+".json", m.Key)
	assert.Equal(t, "weekly", m.Note)

	got, err := snaps.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Overview.EventCount)

	list, err := snaps.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = snaps.Capture(ctx, events.Query{Start: "garbage"}, "")
	assert.ErrorIs(t, err, events.ErrInvalidQuery)

	_, err = NewSnapshotter(failingArchive{}, svc, "").Capture(ctx, events.Query{}, "")
	assert.Error(t, err)
}
