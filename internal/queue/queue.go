// Package queue buffers encoded audit records between the façades and a slow
// log backend. Two backends share one interface:
//
//   - MemoryQueue: a bounded channel. Nothing survives a restart.
//   - RedisQueue: a Redis list. Records survive restarts and can be drained
//     by a forwarder running in another process.
//
// Records that cannot be delivered after all retries land in a
// DeadLetterQueue with the last error.
package queue

import (
	"context"
	"time"
)

// Queue is a FIFO of opaque payloads.
type Queue interface {
	// Enqueue appends payload.
	Enqueue(ctx context.Context, payload []byte) error

	// Dequeue blocks until at least one payload is available, then returns up
	// to maxItems without blocking further.
	Dequeue(ctx context.Context, maxItems int) ([][]byte, error)

	// DequeueWithTimeout is Dequeue bounded by timeout. It returns an empty
	// slice when nothing arrived in time.
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([][]byte, error)

	Length(ctx context.Context) (int, error)

	Close() error
}

// DeadLetterQueue keeps payloads whose delivery failed for good.
type DeadLetterQueue interface {
	Add(ctx context.Context, payload []byte, attempts int, err error) error
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)
	Remove(ctx context.Context, id string) error
	Close() error
}

// DeadLetterItem is one dead-lettered payload.
type DeadLetterItem struct {
	ID        string    `json:"id"`
	Payload   []byte    `json:"payload"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	Attempts  int       `json:"attempts"`
}

// Config holds queue configuration
type Config struct {
	// BatchSize is the maximum number of payloads handed to the writer at once.
	BatchSize int

	// BatchTimeout is how long to wait before flushing a partial batch.
	BatchTimeout time.Duration

	// MaxRetries is the number of retries after the first failed write.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubled on every retry.
	RetryBackoff time.Duration

	UseRedis      bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// QueueName names the Redis keys queue:<name> and dlq:<name>.
	QueueName string
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		UseRedis:     false,
		QueueName:    queueName,
	}
}

// New opens the queue and dead-letter queue selected by config.
func New(config *Config) (Queue, DeadLetterQueue, error) {
	if config == nil {
		config = DefaultConfig("audit")
	}
	if !config.UseRedis {
		return NewMemoryQueue(config), NewMemoryDeadLetterQueue(), nil
	}

	q, err := NewRedisQueue(config)
	if err != nil {
		return nil, nil, err
	}
	dlq, err := NewRedisDeadLetterQueue(config)
	if err != nil {
		_ = q.Close()
		return nil, nil, err
	}
	return q, dlq, nil
}
