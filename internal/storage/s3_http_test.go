package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aws_facade/internal/audit"
	"aws_facade/internal/facade"
)

const accessDeniedBody = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>AccessDenied</Code><Message>Access Denied</Message><RequestId>TX1</RequestId><HostId>h1</HostId></Error>`

// newHTTPStorage points a real S3 client at srv using path-style addressing.
func newHTTPStorage(t *testing.T, srv *httptest.Server) (*Storage, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	s, err := New(context.Background(), Config{
		Credentials: facade.Credentials{AccessKey: "AK", Secret: "SK", Region: "us-east-1"},
		Bucket:      "assets",
		Sink:        sink,
		Builder: NewClientBuilder(func(o *s3.Options) {
			o.BaseEndpoint = aws.String(srv.URL)
			o.UsePathStyle = true
			o.RetryMaxAttempts = 1
		}),
	})
	require.NoError(t, err)
	return s, sink
}

func TestStorage_HTTPGetLogsResponseHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assets/docs/a.txt", r.URL.Path)
		w.Header().Set("X-Amz-Request-Id", "REQ-GET")
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	s, sink := newHTTPStorage(t, srv)

	body, err := s.Get(context.Background(), "docs/a.txt", ObjectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	require.Len(t, sink.records, 1)
	assert.Equal(t, audit.LevelInfo, sink.records[0].Level)
	assert.Contains(t, sink.records[0].Response, `"X-Amz-Request-Id":"REQ-GET"`)
}

func TestStorage_HTTPErrorLogsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Header().Set("X-Amz-Request-Id", "TX1")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(accessDeniedBody))
	}))
	defer srv.Close()

	s, sink := newHTTPStorage(t, srv)

	_, err := s.Get(context.Background(), "secret.txt", ObjectOptions{})
	require.Error(t, err)

	te, ok := facade.AsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, "AccessDenied", te.Code)
	assert.Equal(t, http.StatusForbidden, te.StatusCode)

	require.Len(t, sink.records, 1)
	assert.Equal(t, audit.LevelError, sink.records[0].Level)
	assert.Equal(t, accessDeniedBody, sink.records[0].Response)
}

func TestStorage_HTTPHeadNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s, sink := newHTTPStorage(t, srv)

	ok, err := s.Exists(context.Background(), "missing.txt", ObjectOptions{})
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, sink.records, 1)
	assert.Equal(t, "false", sink.records[0].Response)
}
