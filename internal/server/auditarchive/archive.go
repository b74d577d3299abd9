// Package auditarchive exports audit_logs rows to an S3-compatible bucket
// as JSON lines. A cursor object in the bucket remembers the last exported
// row so every entry is shipped once.
package auditarchive

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
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/logging"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/repomanager"
)

const cursorObject = "cursor.json"

// ObjectStore is the part of the S3 API the archiver needs.
type ObjectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	BatchSize int
}

// Seams for tests.
var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
)

// NewS3Client builds a client for the configured endpoint. Static
// credentials are used when an access key is set; otherwise the default
// AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Cursor is the (created_at, id) key of the last exported row.
type Cursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

type Archiver struct {
	store       dbx.Store
	repomanager repomanager.RepositoryManager
	client      ObjectStore
	cfg         Config
	log         logging.Logger
}

func New(store dbx.Store, m repomanager.RepositoryManager, client ObjectStore, cfg Config, log logging.Logger) *Archiver {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Archiver{
		store:       store,
		repomanager: m,
		client:      client,
		cfg:         cfg,
		log:         log.With("module", "auditarchive"),
	}
}

// Run ships every row newer than the stored cursor, one object per batch,
// and returns how many rows were exported.
func (a *Archiver) Run(ctx context.Context) (int, error) {
	cursor, err := a.loadCursor(ctx)
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}

	repo := a.repomanager.AuditLogs(a.store.Conn())
	total := 0
	for {
		batch, err := repo.ListAfter(ctx, cursor.CreatedAt, cursor.ID, a.cfg.BatchSize)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			return total, nil
		}

		if err := a.putBatch(ctx, batch); err != nil {
			return total, err
		}

		last := batch[len(batch)-1]
		cursor = Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
		if err := a.saveCursor(ctx, cursor); err != nil {
			return total, fmt.Errorf("save cursor: %w", err)
		}

		total += len(batch)
		a.log.Info(ctx, "audit batch archived", "rows", len(batch), "until", last.CreatedAt)

		if len(batch) < a.cfg.BatchSize {
			return total, nil
		}
	}
}

// ObjectKey names the object holding a batch: the day of its first row,
// then the id of its last row, so keys sort in export order within a day.
func (a *Archiver) ObjectKey(batch []*models.AuditLog) string {
	first, last := batch[0], batch[len(batch)-1]
	return fmt.Sprintf("%s%s/%s-%s.jsonl", a.cfg.Prefix,
		first.CreatedAt.UTC().Format("2006/01/02"),
		last.CreatedAt.UTC().Format("150405.000000000"), last.ID)
}

func (a *Archiver) putBatch(ctx context.Context, batch []*models.AuditLog) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range batch {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(a.ObjectKey(batch)),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	return err
}

func (a *Archiver) loadCursor(ctx context.Context) (Cursor, error) {
	var c Cursor

	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(a.cfg.Prefix + cursorObject),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return c, nil
		}
		return c, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, err
	}
	return c, nil
}

func (a *Archiver) saveCursor(ctx context.Context, c Cursor) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(a.cfg.Prefix + cursorObject),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}
