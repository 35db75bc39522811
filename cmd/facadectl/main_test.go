package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aws_facade/internal/config"
	"aws_facade/internal/utils"
)

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_ENCRYPTION_KEY", "SINK_KIND", "SINK_BUFFERED", "SINK_ERRORS", "GRAYLOG_URL", "SINK_FLUSH_INTERVAL", "LOG_LEVEL",
		"AWSS3_SECRET_ENCRYPTED", "AWSSQS_SECRET_ENCRYPTED", "AWSSES_SECRET_ENCRYPTED",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("AWSS3_KEY", "AKIDEXAMPLE")
	t.Setenv("AWSS3_SECRET", "secret")
	t.Setenv("AWSS3_REGION", "us-east-1")
	t.Setenv("AWSS3_BUCKET", "bucket")
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func noEnvFile(t *testing.T) []string {
	return []string{"-env", filepath.Join(t.TempDir(), "absent.env")}
}

// fakeS3 answers HEAD with 404 and PUT with 200.
func fakeS3(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			w.Header().Set("ETag", `"abc"`)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type gelfCollector struct {
	mu       sync.Mutex
	messages []map[string]any
}

func (c *gelfCollector) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var msg map[string]any
		if err := json.Unmarshal(body, &msg); err == nil {
			c.mu.Lock()
			c.messages = append(c.messages, msg)
			c.mu.Unlock()
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (c *gelfCollector) methods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.messages {
		out = append(out, m["_audit_level"].(string)+" "+m["_method"].(string))
	}
	return out
}

func TestRun_Usage(t *testing.T) {
	setEnv(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, run(ctx, noEnvFile(t), io.Discard, io.Discard), errUsage)
	assert.ErrorIs(t, run(ctx, append(noEnvFile(t), "s3-frobnicate"), io.Discard, io.Discard), errUsage)
	assert.ErrorIs(t, run(ctx, append(noEnvFile(t), "s3-put", "only-key"), io.Discard, io.Discard), errUsage)
}

func TestRun_KeygenAndSeal(t *testing.T) {
	setEnv(t, nil)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, run(ctx, append(noEnvFile(t), "keygen"), &out, io.Discard))
	var key string
	require.NoError(t, json.Unmarshal(out.Bytes(), &key))

	t.Setenv("CONFIG_ENCRYPTION_KEY", key)
	out.Reset()
	require.NoError(t, run(ctx, append(noEnvFile(t), "seal", "my-secret"), &out, io.Discard))
	var sealed string
	require.NoError(t, json.Unmarshal(out.Bytes(), &sealed))

	enc, err := config.NewEncryptionFromBase64(key)
	require.NoError(t, err)
	plain, err := enc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "my-secret", string(plain))
}

func TestRun_PutWithoutSink(t *testing.T) {
	srv := fakeS3(t)
	setEnv(t, map[string]string{"AWSS3_ENDPOINT": srv.URL, "SINK_KIND": "none"})

	file := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, writeFile(file, "hello"))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), append(noEnvFile(t), "s3-put", "docs/a.txt", file), &out, io.Discard))
	assert.Contains(t, out.String(), "/bucket/docs/a.txt")
}

func TestRun_GraylogSink(t *testing.T) {
	for _, buffered := range []string{"false", "true"} {
		t.Run("buffered="+buffered, func(t *testing.T) {
			s3srv := fakeS3(t)
			gelf := &gelfCollector{}
			gelfSrv := gelf.server(t)
			setEnv(t, map[string]string{
				"AWSS3_ENDPOINT":      s3srv.URL,
				"SINK_KIND":           "graylog",
				"SINK_BUFFERED":       buffered,
				"SINK_FLUSH_INTERVAL": "50ms",
				"GRAYLOG_URL":         gelfSrv.URL + "/gelf",
			})

			var out bytes.Buffer
			require.NoError(t, run(context.Background(), append(noEnvFile(t), "s3-exists", "missing.txt"), &out, io.Discard))
			assert.Equal(t, "false", strings.TrimSpace(out.String()))

			// Stopping the forwarder flushes the buffered record before run returns.
			assert.Equal(t, []string{"INFO exists"}, gelf.methods())
		})
	}
}

func TestRun_BadConfig(t *testing.T) {
	setEnv(t, map[string]string{"SINK_KIND": "carrier-pigeon"})

	err := run(context.Background(), append(noEnvFile(t), "sqs-receive"), io.Discard, io.Discard)
	assert.ErrorContains(t, err, "failed to load config")
}

func TestIsURL(t *testing.T) {
	assert.True(t, isURL("https://bucket.s3.us-east-1.amazonaws.com/key"))
	assert.False(t, isURL("folder/key"))
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

// syncBuffer is written by the forwarder goroutine and the caller.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_LogsStayOffStdout(t *testing.T) {
	s3srv := fakeS3(t)
	gelf := &gelfCollector{}
	gelfSrv := gelf.server(t)
	setEnv(t, map[string]string{
		"AWSS3_ENDPOINT":      s3srv.URL,
		"SINK_KIND":           "graylog",
		"SINK_BUFFERED":       "true",
		"SINK_FLUSH_INTERVAL": "50ms",
		"GRAYLOG_URL":         gelfSrv.URL + "/gelf",
		"LOG_LEVEL":           "debug",
	})
	t.Cleanup(func() {
		utils.SetDefaultWriter(os.Stdout)
		utils.SetDefaultLogLevel(utils.Warning)
	})

	var out bytes.Buffer
	logs := &syncBuffer{}
	require.NoError(t, run(context.Background(), append(noEnvFile(t), "s3-exists", "missing.txt"), &out, logs))

	assert.Equal(t, "false\n", out.String())
	assert.Contains(t, logs.String(), "Audit forwarder stopped")
	assert.Contains(t, logs.String(), "aws_facade_audit_records_total")
}

func TestParseMaxMessages(t *testing.T) {
	n, err := parseMaxMessages("3")
	require.NoError(t, err)
	assert.Equal(t, int32(3), n)

	n, err = parseMaxMessages("10")
	require.NoError(t, err)
	assert.Equal(t, int32(10), n)

	for _, bad := range []string{"0", "11", "-1", "many", "99999999999"} {
		_, err := parseMaxMessages(bad)
		assert.ErrorContains(t, err, "invalid max", bad)
	}
}
