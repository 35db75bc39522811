// Package logging delivers audit records to where they are kept: Graylog
// over GELF HTTP, S3 as JSON Lines batches, or a Postgres table. Backends
// implement BatchWriter; BufferedSink puts a queue with retries and a
// dead-letter queue in front of any of them.
package logging

import (
	"context"
	"sync"
	"time"

	"aws_facade/internal/audit"
)

// Entry is an audit record stamped with the time it was produced.
type Entry struct {
	Timestamp time.Time    `json:"timestamp"`
	Record    audit.Record `json:"record"`
}

// BatchWriter persists entries. Implementations prefix retryable failures
// so that utils.IsRecoverableError recognises them.
type BatchWriter interface {
	WriteBatch(ctx context.Context, entries []Entry) error
}

// NoopSink discards records.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Send(ctx context.Context, rec *audit.Record) error {
	return nil
}

// MemorySink keeps every record it receives.
type MemorySink struct {
	mu      sync.Mutex
	records []audit.Record
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Send(ctx context.Context, rec *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

// Records returns a copy of the records received so far.
func (s *MemorySink) Records() []audit.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Record, len(s.records))
	copy(out, s.records)
	return out
}

// WriterSink sends every record straight to a BatchWriter, one per call.
type WriterSink struct {
	writer BatchWriter
	now    func() time.Time
}

func NewWriterSink(writer BatchWriter) *WriterSink {
	return &WriterSink{writer: writer, now: time.Now}
}

func (s *WriterSink) Send(ctx context.Context, rec *audit.Record) error {
	return s.writer.WriteBatch(ctx, []Entry{{Timestamp: s.now().UTC(), Record: *rec}})
}
