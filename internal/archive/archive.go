package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rickgao/cg-market-etl/internal/model"
)

// objectPutter is the subset of *minio.Client used by the Archiver.
type objectPutter interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Config holds object storage settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

// Archiver writes raw batches to a bucket.
type Archiver struct {
	client objectPutter
	bucket string
	prefix string
	logger *slog.Logger
}

// New connects to object storage and returns an Archiver.
func New(cfg Config, logger *slog.Logger) (*Archiver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return newArchiver(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newArchiver(client objectPutter, bucket, prefix string, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

// EnsureBucket creates the bucket if it does not exist.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	a.logger.Info("created archive bucket", "bucket", a.bucket)
	return nil
}

// ObjectKey returns the object key for a run.
func (a *Archiver) ObjectKey(runID string, ts time.Time) string {
	return path.Join(a.prefix, model.IngestionDate(ts).Format(model.DateLayout), runID+".json.gz")
}

// Store writes batch as gzipped JSON and returns the object key.
func (a *Archiver) Store(ctx context.Context, runID string, ts time.Time, batch []model.Record) (string, error) {
	raw, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("encode batch: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return "", fmt.Errorf("compress batch: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("compress batch: %w", err)
	}

	key := a.ObjectKey(runID, ts)
	reader := bytes.NewReader(buf.Bytes())
	_, err = a.client.PutObject(ctx, a.bucket, key, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType:     "application/json",
		ContentEncoding: "gzip",
		UserMetadata: map[string]string{
			"run-id":  runID,
			"records": strconv.Itoa(len(batch)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("put object %s/%s: %w", a.bucket, key, err)
	}

	a.logger.Debug("archived raw batch",
		"bucket", a.bucket,
		"key", key,
		"records", len(batch),
		"bytes", buf.Len(),
	)
	return key, nil
}
