// Package facade holds what the S3, SQS and SES façades share: credentials
// with an atomically rebuilt client, the error taxonomy, and the three-tier
// outcome logging (INFO on success, ERROR on AWS or precondition failures,
// FATAL on anything else) around every audited call.
package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"aws_facade/internal/audit"
	"aws_facade/internal/metrics"
	"aws_facade/internal/utils"
)

// Account is the capability every façade exposes to code that needs its
// credentials, region or log sink without knowing which service it wraps.
type Account interface {
	Credentials() Credentials
	Region() string
	Sink() audit.Sink
}

// Base carries the audit logger, the sink failure policy and the
// operational logger of a façade. Façades embed a *Base.
type Base struct {
	auditor *audit.Logger
	logger  *utils.Logger

	mu      sync.RWMutex
	policy  audit.SinkPolicy
	metrics *metrics.Metrics
}

// NewBase creates a Base for category. sink may be nil.
func NewBase(category audit.Category, sink audit.Sink) *Base {
	return &Base{
		auditor: audit.NewLogger(category, sink),
		logger:  utils.NewLogger(string(category)),
	}
}

// Category returns the tag written on every record.
func (b *Base) Category() audit.Category {
	return b.auditor.Category()
}

// Sink returns the attached log sink, or nil.
func (b *Base) Sink() audit.Sink {
	return b.auditor.Sink()
}

// SetSink attaches a log sink; nil disables audit records.
func (b *Base) SetSink(sink audit.Sink) {
	b.auditor.SetSink(sink)
}

// SinkPolicy returns how sink failures are surfaced.
func (b *Base) SinkPolicy() audit.SinkPolicy {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.policy
}

// SetSinkPolicy changes how sink failures are surfaced.
func (b *Base) SetSinkPolicy(policy audit.SinkPolicy) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.policy = policy
}

// SetMetrics makes the façade count its audit records and sink failures.
func (b *Base) SetMetrics(m *metrics.Metrics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics = m
}

func (b *Base) observe(op audit.Operation, level audit.Level, sinkErr error) {
	if b.Sink() == nil {
		return
	}
	b.mu.RLock()
	m := b.metrics
	b.mu.RUnlock()

	category := string(b.Category())
	m.ObserveRecord(category, op.Name, string(level))
	if sinkErr != nil {
		m.ObserveSinkFailure(category)
	}
}

// Logger returns the operational logger.
func (b *Base) Logger() *utils.Logger {
	return b.logger
}

// Begin starts an audited call of op with args in declaration order. The
// returned context must be used for the transport call so that error bodies
// can be captured.
func (b *Base) Begin(ctx context.Context, op audit.Operation, args ...any) (context.Context, *Call) {
	ctx, capture := withCapture(ctx)
	return ctx, &Call{base: b, ctx: ctx, op: op, args: args, capture: capture}
}

// Call is one audited façade invocation.
type Call struct {
	base    *Base
	ctx     context.Context
	op      audit.Operation
	args    []any
	capture *bodyCapture
}

// Succeed records outcome at INFO. Strings are logged verbatim, anything
// else as JSON. Under PropagateSinkErrors a sink failure is returned; the
// caller returns it next to the operation's result.
func (c *Call) Succeed(outcome any) error {
	err := c.base.auditor.Record(c.ctx, c.op, c.args, encodeOutcome(outcome), audit.LevelInfo)
	c.base.observe(c.op, audit.LevelInfo, err)
	if err == nil {
		return nil
	}
	if c.base.SinkPolicy() == audit.IgnoreSinkErrors {
		c.base.logger.Warn("Audit record dropped", "operation", c.op.Name, "error", err)
		return nil
	}
	return err
}

// Fail records err at the level given by Severity and returns err unchanged.
// A sink failure here never replaces err.
func (c *Call) Fail(err error) error {
	level := Severity(err)

	outcome := err.Error()
	if te, ok := AsTransportError(err); ok {
		outcome = te.Body
		if body := c.capture.get(); len(body) > 0 {
			outcome = string(body)
		}
	}

	sinkErr := c.base.auditor.Record(c.ctx, c.op, c.args, outcome, level)
	c.base.observe(c.op, level, sinkErr)
	if sinkErr != nil {
		c.base.logger.Error("Audit record dropped", "operation", c.op.Name, "error", sinkErr)
	}
	return err
}

func encodeOutcome(outcome any) string {
	switch v := outcome.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Sprintf("%v", outcome)
	}
	return string(data)
}
