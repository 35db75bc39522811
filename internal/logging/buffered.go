package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"aws_facade/internal/audit"
	"aws_facade/internal/metrics"
	"aws_facade/internal/queue"
	"aws_facade/internal/utils"
)

// BufferedSink accepts records without waiting for the backend. A forwarder
// goroutine drains the queue in batches, retries recoverable write failures
// with exponential backoff and dead-letters batches it cannot deliver.
type BufferedSink struct {
	queue   queue.Queue
	dlq     queue.DeadLetterQueue
	writer  BatchWriter
	config  *queue.Config
	metrics *metrics.Metrics
	logger  *utils.Logger
	now     func() time.Time

	startOnce   sync.Once
	stopOnce    sync.Once
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewBufferedSink creates a sink over q. dlq and m may be nil.
func NewBufferedSink(q queue.Queue, dlq queue.DeadLetterQueue, writer BatchWriter, config *queue.Config, m *metrics.Metrics) *BufferedSink {
	if config == nil {
		config = queue.DefaultConfig("audit")
	}

	return &BufferedSink{
		queue:       q,
		dlq:         dlq,
		writer:      writer,
		config:      config,
		metrics:     m,
		logger:      utils.NewLogger("audit-forwarder"),
		now:         time.Now,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Send enqueues rec. It only fails when the queue does.
func (s *BufferedSink) Send(ctx context.Context, rec *audit.Record) error {
	payload, err := json.Marshal(Entry{Timestamp: s.now().UTC(), Record: *rec})
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}
	if err := s.queue.Enqueue(ctx, payload); err != nil {
		return fmt.Errorf("failed to buffer audit record: %w", err)
	}
	s.metrics.ObserveBuffered()
	return nil
}

// Start runs the forwarder until Stop is called or ctx is cancelled.
func (s *BufferedSink) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.run(ctx)
	})
}

// Stop flushes what is still queued and waits for the forwarder to exit.
func (s *BufferedSink) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	<-s.stoppedChan
	return nil
}

func (s *BufferedSink) run(ctx context.Context) {
	defer close(s.stoppedChan)

	for {
		select {
		case <-s.stopChan:
			s.drain(context.WithoutCancel(ctx))
			s.logger.Info("Audit forwarder stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Audit forwarder context cancelled")
			return
		default:
			s.processBatch(ctx, s.config.BatchTimeout)
		}
	}
}

// drain forwards batches until the queue is empty.
func (s *BufferedSink) drain(ctx context.Context) {
	for {
		n, err := s.queue.Length(ctx)
		if err != nil || n == 0 {
			return
		}
		if s.processBatch(ctx, 10*time.Millisecond) == 0 {
			return
		}
	}
}

// processBatch forwards one batch and reports how many payloads it took.
func (s *BufferedSink) processBatch(ctx context.Context, timeout time.Duration) int {
	payloads, err := s.queue.DequeueWithTimeout(ctx, s.config.BatchSize, timeout)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("Failed to dequeue audit records", "error", err)
			s.pause(ctx, time.Second)
		}
		return 0
	}
	if len(payloads) == 0 {
		return 0
	}

	entries := make([]Entry, 0, len(payloads))
	valid := make([][]byte, 0, len(payloads))
	for _, p := range payloads {
		var e Entry
		if err := json.Unmarshal(p, &e); err != nil {
			s.logger.Error("Failed to decode audit record", "error", err)
			s.deadLetter(ctx, [][]byte{p}, 0, err)
			continue
		}
		entries = append(entries, e)
		valid = append(valid, p)
	}

	if len(entries) > 0 {
		if err := s.deliver(ctx, entries); err != nil {
			s.deadLetter(ctx, valid, s.config.MaxRetries+1, err)
		}
	}
	return len(payloads)
}

// deliver writes entries, retrying recoverable errors up to MaxRetries times.
func (s *BufferedSink) deliver(ctx context.Context, entries []Entry) error {
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := s.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			s.logger.Debug("Retrying audit batch", "attempt", attempt, "backoff", backoff)
			s.metrics.ObserveRetry()
			if !s.pause(ctx, backoff) {
				break
			}
		}

		lastErr = s.writer.WriteBatch(ctx, entries)
		if lastErr == nil {
			s.metrics.ObserveDelivered(len(entries))
			s.logger.Debug("Delivered audit batch", "count", len(entries))
			return nil
		}

		s.logger.Error("Failed to write audit batch", "attempt", attempt, "error", lastErr)
		if !utils.IsRecoverableError(lastErr) {
			break
		}
	}
	return fmt.Errorf("audit batch not delivered: %w", lastErr)
}

func (s *BufferedSink) deadLetter(ctx context.Context, payloads [][]byte, attempts int, cause error) {
	if s.dlq == nil {
		s.logger.Warn("Dropping undeliverable audit records", "count", len(payloads), "error", cause)
		return
	}
	moved := 0
	for _, p := range payloads {
		if err := s.dlq.Add(ctx, p, attempts, cause); err != nil {
			s.logger.Error("Failed to add to dead letter queue", "error", err)
			continue
		}
		moved++
	}
	s.metrics.ObserveDeadLettered(moved)
	s.logger.Warn("Audit records moved to DLQ", "count", moved, "error", cause)
}

// pause sleeps for d and reports false if ctx ended first.
func (s *BufferedSink) pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
