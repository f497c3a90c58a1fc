package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const snapshotPK = "SNAPSHOT"

// ObjectStore is the subset of the S3 client used for snapshot bodies.
type ObjectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// IndexStore is the subset of the DynamoDB client used for the snapshot index.
type IndexStore interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoDBItem is one snapshot index row.
type DynamoDBItem struct {
	PK        string       `dynamodbav:"PK"`
	SK        string       `dynamodbav:"SK"`
	Meta      SnapshotMeta `dynamodbav:"Meta"`
	Timestamp string       `dynamodbav:"Timestamp"`
	TTL       int64        `dynamodbav:"TTL,omitempty"`
}

// AWSArchive stores snapshot bodies in S3 and indexes them in DynamoDB.
type AWSArchive struct {
	objects   ObjectStore
	index     IndexStore
	bucket    string
	tableName string
	prefix    string
	retention time.Duration
}

// NewAWSArchive loads the AWS config and creates both clients.
func NewAWSArchive(ctx context.Context, cfg Config) (*AWSArchive, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if cfg.AWSProfile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.AWSProfile))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewAWSArchiveWithClients(s3.NewFromConfig(awsCfg), dynamodb.NewFromConfig(awsCfg), cfg), nil
}

// NewAWSArchiveWithClients wires an archive around existing clients.
func NewAWSArchiveWithClients(objects ObjectStore, index IndexStore, cfg Config) *AWSArchive {
	days := cfg.RetentionDays
	if days <= 0 {
		days = 90
	}
	return &AWSArchive{
		objects:   objects,
		index:     index,
		bucket:    cfg.S3Bucket,
		tableName: cfg.DynamoDBTable,
		prefix:    cfg.S3Prefix,
		retention: time.Duration(days) * 24 * time.Hour,
	}
}

func (a *AWSArchive) Put(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	_, err = a.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(snap.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("uploading snapshot to S3: %w", err)
	}

	item := DynamoDBItem{
		PK:        snapshotPK,
		SK:        snap.CreatedAt.UTC().Format(time.RFC3339Nano) + "#" + snap.ID,
		Meta:      snap.SnapshotMeta,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		TTL:       snap.CreatedAt.Add(a.retention).Unix(),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling DynamoDB item: %w", err)
	}
	_, err = a.index.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(a.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("saving snapshot index: %w", err)
	}
	return nil
}

func (a *AWSArchive) Get(ctx context.Context, id string) (*Snapshot, error) {
	result, err := a.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(snapshotKey(a.prefix, id)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("getting snapshot from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot body: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", id, err)
	}
	return &snap, nil
}

func (a *AWSArchive) List(ctx context.Context, limit int) ([]SnapshotMeta, error) {
	result, err := a.index.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(a.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: snapshotPK},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("querying snapshot index: %w", err)
	}

	var items []DynamoDBItem
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot index: %w", err)
	}
	out := make([]SnapshotMeta, 0, len(items))
	for _, it := range items {
		out = append(out, it.Meta)
	}
	return out, nil
}
