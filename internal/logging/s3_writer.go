package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"aws_facade/internal/facade"
	"aws_facade/internal/storage"
	"aws_facade/internal/utils"
)

// ObjectPutter is the part of the S3 client the writer uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3WriterConfig configures an S3Writer.
type S3WriterConfig struct {
	Credentials facade.Credentials
	Bucket      string
	Prefix      string
	PodName     string
	// Endpoint points the client at an S3-compatible store such as MinIO.
	Endpoint string
}

// S3Writer handles writing batches of audit entries to S3
type S3Writer struct {
	client  ObjectPutter
	bucket  string
	prefix  string
	podName string
	logger  *utils.Logger
	now     func() time.Time
}

// NewS3Writer builds its own S3 client from cfg.
func NewS3Writer(ctx context.Context, cfg S3WriterConfig) (*S3Writer, error) {
	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	clients, err := storage.NewClientBuilder(opts...)(ctx, cfg.Credentials)
	if err != nil {
		return nil, err
	}
	return NewS3WriterWithClient(clients.Objects, cfg.Bucket, cfg.Prefix, cfg.PodName), nil
}

// NewS3WriterWithClient creates a writer over an existing client.
func NewS3WriterWithClient(client ObjectPutter, bucket, prefix, podName string) *S3Writer {
	return &S3Writer{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		podName: podName,
		logger:  utils.NewLogger("s3-writer"),
		now:     time.Now,
	}
}

// Key returns the object key for a batch written at t.
// Format: audit/2025/11/30/facade-0-20251130-143022-123456789.jsonl
func (w *S3Writer) Key(t time.Time) string {
	return fmt.Sprintf("%s%04d/%02d/%02d/%s-%s-%d.jsonl",
		w.prefix,
		t.Year(),
		t.Month(),
		t.Day(),
		w.podName,
		t.Format("20060102-150405"),
		t.Nanosecond(),
	)
}

// Upload writes entries as one JSON Lines object and returns its key.
func (w *S3Writer) Upload(ctx context.Context, entries []Entry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	key := w.Key(w.now().UTC())

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := encoder.Encode(e); err != nil {
			w.logger.Error("Failed to encode entry", "error", err)
			continue
		}
	}

	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	w.logger.Info("Wrote batch to S3", "key", key, "count", len(entries), "bytes", buf.Len())
	return key, nil
}

func (w *S3Writer) WriteBatch(ctx context.Context, entries []Entry) error {
	_, err := w.Upload(ctx, entries)
	return err
}
