// Package audit builds the request/response records emitted around every
// façade call and hands them to a pluggable Sink.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrSinkFailed wraps every error returned by a Sink.
var ErrSinkFailed = errors.New("audit sink failed")

// Sink receives audit records. Implementations live in internal/logging.
type Sink interface {
	Send(ctx context.Context, rec *Record) error
}

// SinkPolicy decides what a façade does when Record returns an error.
type SinkPolicy int

const (
	// PropagateSinkErrors returns sink failures to the caller together with
	// the operation's result.
	PropagateSinkErrors SinkPolicy = iota
	// IgnoreSinkErrors reports sink failures to the operational logger only.
	IgnoreSinkErrors
)

// Logger records audited calls for one category. The zero sink state is
// valid: Record then does nothing and reports success.
type Logger struct {
	category Category

	mu   sync.RWMutex
	sink Sink
}

// NewLogger creates a Logger. sink may be nil.
func NewLogger(category Category, sink Sink) *Logger {
	return &Logger{category: category, sink: sink}
}

// Category returns the category stamped on every record.
func (l *Logger) Category() Category {
	return l.category
}

// Sink returns the attached sink, or nil.
func (l *Logger) Sink() Sink {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sink
}

// SetSink attaches or, with nil, detaches the sink.
func (l *Logger) SetSink(sink Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = sink
}

// NewRecord builds the record for one call without sending it.
func NewRecord(category Category, op Operation, args []any, outcome string, level Level) *Record {
	return &Record{
		Category:  category,
		Message:   fmt.Sprintf("%s %s %s", level, category, op.Name),
		Operation: op.Name,
		Level:     level,
		Request:   BuildRequest(op.Params, args),
		Response:  outcome,
	}
}

// Record builds a record for op and sends it. Without a sink it returns nil.
// A sink failure is returned wrapped in ErrSinkFailed; the caller decides
// whether it surfaces (see SinkPolicy).
func (l *Logger) Record(ctx context.Context, op Operation, args []any, outcome string, level Level) error {
	sink := l.Sink()
	if sink == nil {
		return nil
	}

	rec := NewRecord(l.category, op, args, outcome, level)
	if err := sink.Send(ctx, rec); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkFailed, err)
	}
	return nil
}
