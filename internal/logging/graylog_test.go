package logging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aws_facade/internal/audit"
	"aws_facade/internal/utils"
)

type gelfServer struct {
	mu       sync.Mutex
	messages []map[string]any
	status   int
}

func (g *gelfServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var msg map[string]any
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	g.mu.Lock()
	g.messages = append(g.messages, msg)
	status := g.status
	g.mu.Unlock()
	if status == 0 {
		status = http.StatusAccepted
	}
	w.WriteHeader(status)
}

func TestGraylogSink_PostsGELF(t *testing.T) {
	gs := &gelfServer{}
	srv := httptest.NewServer(gs)
	defer srv.Close()

	sink := NewGraylogSink(GraylogConfig{URL: srv.URL + "/gelf", Host: "facade-0"})
	sink.now = func() time.Time { return time.UnixMilli(1700000000123) }

	rec := audit.NewRecord(audit.CategoryQueue, audit.Declare("send", audit.Arg("messageBody")), []any{"hi"}, "boom", audit.LevelFatal)
	require.NoError(t, sink.Send(context.Background(), rec))

	require.Len(t, gs.messages, 1)
	msg := gs.messages[0]
	assert.Equal(t, "1.1", msg["version"])
	assert.Equal(t, "facade-0", msg["host"])
	assert.Equal(t, "FATAL AWSSQS send", msg["short_message"])
	assert.Equal(t, 1700000000.123, msg["timestamp"])
	assert.Equal(t, float64(2), msg["level"])
	assert.Equal(t, "AWSSQS", msg["_class"])
	assert.Equal(t, "send", msg["_method"])
	assert.Equal(t, "FATAL", msg["_audit_level"])
	assert.Equal(t, `{"messageBody":"hi"}`, msg["_request"])
	assert.Equal(t, "boom", msg["_response"])
}

func TestGelfLevel(t *testing.T) {
	assert.Equal(t, 6, gelfLevel(audit.LevelInfo))
	assert.Equal(t, 3, gelfLevel(audit.LevelError))
	assert.Equal(t, 2, gelfLevel(audit.LevelFatal))
}

func TestGraylogSink_StatusErrors(t *testing.T) {
	gs := &gelfServer{status: http.StatusServiceUnavailable}
	srv := httptest.NewServer(gs)
	defer srv.Close()

	sink := NewGraylogSink(GraylogConfig{URL: srv.URL})
	err := sink.Send(context.Background(), sampleRecord("get", audit.LevelInfo))
	require.Error(t, err)
	assert.Equal(t, "sink returned status 503", err.Error())
	assert.True(t, utils.IsRecoverableError(err))

	gs.status = http.StatusBadRequest
	err = sink.Send(context.Background(), sampleRecord("get", audit.LevelInfo))
	require.Error(t, err)
	assert.False(t, utils.IsRecoverableError(err))
}

func TestGraylogSink_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	sink := NewGraylogSink(GraylogConfig{URL: url, Timeout: time.Second})
	err := sink.Send(context.Background(), sampleRecord("get", audit.LevelInfo))
	require.Error(t, err)
	assert.True(t, utils.IsRecoverableError(err))
}

func TestGraylogSink_WriteBatchStopsAtFirstFailure(t *testing.T) {
	gs := &gelfServer{status: http.StatusInternalServerError}
	srv := httptest.NewServer(gs)
	defer srv.Close()

	sink := NewGraylogSink(GraylogConfig{URL: srv.URL})
	entries := []Entry{
		{Timestamp: time.Now(), Record: *sampleRecord("get", audit.LevelInfo)},
		{Timestamp: time.Now(), Record: *sampleRecord("put", audit.LevelInfo)},
	}
	assert.Error(t, sink.WriteBatch(context.Background(), entries))
	assert.Len(t, gs.messages, 1)
}
