// Package storage is the S3 façade: object put/get/exists/delete with a
// default bucket, existence checks before writes, signed URIs and
// URL-addressed access that follows the object's region.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"aws_facade/internal/audit"
	"aws_facade/internal/facade"
	"aws_facade/internal/s3url"
)

// Audited operations. Call sites pass arguments in the declared order.
var (
	opPut = audit.Declare("put",
		audit.Secret("content"),
		audit.Arg("key"),
		audit.Arg("overrideExisting"),
		audit.Arg("bucket"),
	)
	opGet       = audit.Declare("get", audit.Arg("key"), audit.Arg("bucket"))
	opExists    = audit.Declare("exists", audit.Arg("key"), audit.Arg("bucket"))
	opDelete    = audit.Declare("delete", audit.Arg("key"), audit.Arg("checkExists"), audit.Arg("bucket"))
	opSignedURI = audit.Declare("getSignedUri", audit.Arg("key"), audit.Arg("ttl"), audit.Arg("bucket"))
)

// Config configures a Storage façade.
type Config struct {
	Credentials facade.Credentials
	// Bucket is used when an operation names no bucket.
	Bucket string
	// Sink receives audit records; nil disables them.
	Sink audit.Sink
	// Builder creates the clients for a region; defaults to NewClientBuilder().
	Builder facade.Builder[Clients]
}

// Storage wraps S3.
type Storage struct {
	*facade.Base
	clients *facade.Regional[Clients]

	mu     sync.RWMutex
	bucket string
}

var _ facade.Account = (*Storage)(nil)

// New creates a Storage façade and builds its client for cfg.Credentials.Region.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	build := cfg.Builder
	if build == nil {
		build = NewClientBuilder()
	}

	clients, err := facade.NewRegional(ctx, cfg.Credentials, build)
	if err != nil {
		return nil, err
	}

	return &Storage{
		Base:    facade.NewBase(audit.CategoryStorage, cfg.Sink),
		clients: clients,
		bucket:  cfg.Bucket,
	}, nil
}

// Credentials returns the credentials in use.
func (s *Storage) Credentials() facade.Credentials {
	return s.clients.Credentials()
}

// Region returns the current region.
func (s *Storage) Region() string {
	return s.clients.Region()
}

// ReconfigureRegion switches region and rebuilds the S3 client atomically.
func (s *Storage) ReconfigureRegion(ctx context.Context, region string) error {
	return s.clients.ReconfigureRegion(ctx, region)
}

// Bucket returns the default bucket.
func (s *Storage) Bucket() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bucket
}

// SetBucket changes the default bucket.
func (s *Storage) SetBucket(bucket string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucket = bucket
}

func (s *Storage) resolveBucket(bucket string) string {
	if bucket != "" {
		return bucket
	}
	return s.Bucket()
}

// Put uploads content under key and returns the object's URI. content is
// never written to the audit log.
func (s *Storage) Put(ctx context.Context, content []byte, key string, opts PutOptions) (string, error) {
	return s.put(ctx, s.clients.Client(), content, key, opts)
}

func (s *Storage) put(ctx context.Context, c Clients, content []byte, key string, opts PutOptions) (string, error) {
	ctx, call := s.Begin(ctx, opPut, content, key, audit.OrUnset(opts.Override), audit.OrUnset(opts.Bucket))

	// The nested exists call is audited on its own; under PropagateSinkErrors
	// a sink failure there aborts the write.
	if !opts.Override {
		exists, err := s.exists(ctx, c, key, ObjectOptions{Bucket: opts.Bucket})
		if err != nil {
			return "", err
		}
		if exists {
			return "", call.Fail(fmt.Errorf("%w: %s", facade.ErrAlreadyExists, key))
		}
	}

	bucket := s.resolveBucket(opts.Bucket)
	out, err := c.Objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		return "", call.Fail(err)
	}

	location := facade.EffectiveURI(out.ResultMetadata)
	if location == "" {
		location = objectURL(bucket, s.regionOf(c), key)
	}

	return location, call.Succeed(facade.ResponseHeaders(out.ResultMetadata))
}

// Get downloads the object stored under key.
func (s *Storage) Get(ctx context.Context, key string, opts ObjectOptions) ([]byte, error) {
	return s.get(ctx, s.clients.Client(), key, opts)
}

func (s *Storage) get(ctx context.Context, c Clients, key string, opts ObjectOptions) ([]byte, error) {
	ctx, call := s.Begin(ctx, opGet, key, audit.OrUnset(opts.Bucket))

	out, err := c.Objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.resolveBucket(opts.Bucket)),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, call.Fail(err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, call.Fail(fmt.Errorf("failed to read object body: %w", err))
	}

	return body, call.Succeed(facade.ResponseHeaders(out.ResultMetadata))
}

// Exists reports whether key is present.
func (s *Storage) Exists(ctx context.Context, key string, opts ObjectOptions) (bool, error) {
	return s.exists(ctx, s.clients.Client(), key, opts)
}

func (s *Storage) exists(ctx context.Context, c Clients, key string, opts ObjectOptions) (bool, error) {
	ctx, call := s.Begin(ctx, opExists, key, audit.OrUnset(opts.Bucket))

	_, err := c.Objects.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.resolveBucket(opts.Bucket)),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		return true, call.Succeed(true)
	case isNotFound(err):
		return false, call.Succeed(false)
	default:
		return false, call.Fail(err)
	}
}

// Delete removes key. With CheckExists a missing key fails with
// facade.ErrNotFound and no delete is sent.
func (s *Storage) Delete(ctx context.Context, key string, opts DeleteOptions) (bool, error) {
	return s.delete(ctx, s.clients.Client(), key, opts)
}

func (s *Storage) delete(ctx context.Context, c Clients, key string, opts DeleteOptions) (bool, error) {
	ctx, call := s.Begin(ctx, opDelete, key, audit.OrUnset(opts.CheckExists), audit.OrUnset(opts.Bucket))

	if opts.CheckExists {
		exists, err := s.exists(ctx, c, key, ObjectOptions{Bucket: opts.Bucket})
		if err != nil {
			return false, err
		}
		if !exists {
			return false, call.Fail(fmt.Errorf("%w: %s", facade.ErrNotFound, key))
		}
	}

	out, err := c.Objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.resolveBucket(opts.Bucket)),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, call.Fail(err)
	}

	return true, call.Succeed(facade.ResponseHeaders(out.ResultMetadata))
}

// SignedURI returns a pre-authenticated GET URL for key. Signing is local,
// so only failures are audited.
func (s *Storage) SignedURI(ctx context.Context, key string, opts SignOptions) (string, error) {
	return s.signedURI(ctx, s.clients.Client(), key, opts)
}

func (s *Storage) signedURI(ctx context.Context, c Clients, key string, opts SignOptions) (string, error) {
	var ttlArg string
	if opts.TTL > 0 {
		ttlArg = opts.TTL.String()
	}
	ctx, call := s.Begin(ctx, opSignedURI, key, audit.OrUnset(ttlArg), audit.OrUnset(opts.Bucket))

	req, err := c.Presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.resolveBucket(opts.Bucket)),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(opts.ttl()))
	if err != nil {
		return "", call.Fail(err)
	}

	return req.URL, nil
}

// GetByURL downloads the object a virtual-hosted S3 URL points at, switching
// the façade to the URL's region first when it differs.
func (s *Storage) GetByURL(ctx context.Context, rawURL string) ([]byte, error) {
	u, c, err := s.follow(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, c, u.Key, ObjectOptions{Bucket: u.Bucket})
}

// DeleteByURL deletes the object a virtual-hosted S3 URL points at, switching
// the façade to the URL's region first when it differs.
func (s *Storage) DeleteByURL(ctx context.Context, rawURL string) (bool, error) {
	u, c, err := s.follow(ctx, rawURL)
	if err != nil {
		return false, err
	}
	return s.delete(ctx, c, u.Key, DeleteOptions{Bucket: u.Bucket})
}

// RefreshSignedURI signs the object referenced by an old (possibly expired)
// signed URI again. The old X-Amz-Expires is kept when present.
func (s *Storage) RefreshSignedURI(ctx context.Context, oldURI string) (string, error) {
	u, c, err := s.follow(ctx, oldURI)
	if err != nil {
		return "", err
	}

	opts := SignOptions{Bucket: u.Bucket}
	if raw, ok := u.Param("X-Amz-Expires"); ok {
		if seconds, convErr := strconv.Atoi(raw); convErr == nil && seconds > 0 {
			opts.TTL = time.Duration(seconds) * time.Second
		}
	}
	return s.signedURI(ctx, c, u.Key, opts)
}

func (s *Storage) follow(ctx context.Context, rawURL string) (s3url.URL, Clients, error) {
	u, err := s3url.Decode(rawURL)
	if err != nil {
		return s3url.URL{}, Clients{}, err
	}

	if u.Region != s.Region() {
		s.Logger().Debug("Following object region", "from", s.Region(), "to", u.Region)
	}
	c, err := s.clients.Follow(ctx, u.Region)
	if err != nil {
		return s3url.URL{}, Clients{}, err
	}
	return u, c, nil
}

func (s *Storage) regionOf(c Clients) string {
	if c.Region != "" {
		return c.Region
	}
	return s.Region()
}

func objectURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
