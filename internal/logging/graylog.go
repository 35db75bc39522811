package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"aws_facade/internal/audit"
)

// GELF syslog severities.
const (
	gelfCritical      = 2
	gelfError         = 3
	gelfInformational = 6
)

// GraylogSink posts each record as a GELF 1.1 message to a Graylog HTTP input.
type GraylogSink struct {
	url    string
	host   string
	client *http.Client
	now    func() time.Time
}

// GraylogConfig configures a GraylogSink.
type GraylogConfig struct {
	// URL of the GELF HTTP input, e.g. http://graylog:12201/gelf.
	URL string
	// Host is reported as the message source; defaults to os.Hostname().
	Host    string
	Timeout time.Duration
}

// NewGraylogSink creates a sink for cfg.URL.
func NewGraylogSink(cfg GraylogConfig) *GraylogSink {
	host := cfg.Host
	if host == "" {
		host, _ = os.Hostname()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GraylogSink{
		url:    cfg.URL,
		host:   host,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

type gelfMessage struct {
	Version      string  `json:"version"`
	Host         string  `json:"host"`
	ShortMessage string  `json:"short_message"`
	Timestamp    float64 `json:"timestamp"`
	Level        int     `json:"level"`
	Class        string  `json:"_class"`
	Method       string  `json:"_method"`
	AuditLevel   string  `json:"_audit_level"`
	Request      string  `json:"_request"`
	Response     string  `json:"_response"`
}

func gelfLevel(level audit.Level) int {
	switch level {
	case audit.LevelInfo:
		return gelfInformational
	case audit.LevelError:
		return gelfError
	default:
		return gelfCritical
	}
}

func (s *GraylogSink) message(e Entry) (gelfMessage, error) {
	request, err := json.Marshal(e.Record.Request)
	if err != nil {
		return gelfMessage{}, fmt.Errorf("failed to encode request: %w", err)
	}
	return gelfMessage{
		Version:      "1.1",
		Host:         s.host,
		ShortMessage: e.Record.Message,
		Timestamp:    float64(e.Timestamp.UnixMilli()) / 1000,
		Level:        gelfLevel(e.Record.Level),
		Class:        string(e.Record.Category),
		Method:       e.Record.Operation,
		AuditLevel:   string(e.Record.Level),
		Request:      string(request),
		Response:     e.Record.Response,
	}, nil
}

// Send posts rec stamped with the current time.
func (s *GraylogSink) Send(ctx context.Context, rec *audit.Record) error {
	return s.post(ctx, Entry{Timestamp: s.now(), Record: *rec})
}

// WriteBatch posts entries one by one and stops at the first failure.
func (s *GraylogSink) WriteBatch(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if err := s.post(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *GraylogSink) post(ctx context.Context, e Entry) error {
	msg, err := s.message(e)
	if err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode GELF message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build GELF request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send GELF message: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sink returned status %d", resp.StatusCode)
	}
	return nil
}
