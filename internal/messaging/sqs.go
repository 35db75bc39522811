// Package messaging is the SQS façade: send, long-poll receive and delete
// against a default queue URL.
package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"aws_facade/internal/audit"
	"aws_facade/internal/facade"
)

// Receive defaults.
const (
	DefaultMaxMessages       = 10
	DefaultVisibilityTimeout = 60 * time.Second
	DefaultWaitTime          = 10 * time.Second
)

var (
	opSend    = audit.Declare("send", audit.Arg("messageBody"), audit.Arg("queueUrl"))
	opReceive = audit.Declare("receive",
		audit.Arg("queueUrl"),
		audit.Arg("maxMessages"),
		audit.Arg("visibilityTimeout"),
		audit.Arg("waitTime"),
	)
	opDelete = audit.Declare("delete", audit.Arg("receiptHandle"), audit.Arg("queueUrl"))
)

// SendOptions are the optional arguments of Send.
type SendOptions struct {
	// QueueURL overrides the default queue.
	QueueURL string
}

// ReceiveOptions are the optional arguments of Receive. Zero values select
// the defaults.
type ReceiveOptions struct {
	QueueURL          string
	MaxMessages       int32
	VisibilityTimeout time.Duration
	WaitTime          time.Duration
}

func (o ReceiveOptions) maxMessages() int32 {
	if o.MaxMessages <= 0 {
		return DefaultMaxMessages
	}
	return o.MaxMessages
}

func (o ReceiveOptions) visibilityTimeout() time.Duration {
	if o.VisibilityTimeout <= 0 {
		return DefaultVisibilityTimeout
	}
	return o.VisibilityTimeout
}

func (o ReceiveOptions) waitTime() time.Duration {
	if o.WaitTime <= 0 {
		return DefaultWaitTime
	}
	return o.WaitTime
}

// DeleteOptions are the optional arguments of Delete.
type DeleteOptions struct {
	QueueURL string
}

// Config configures a Queue façade.
type Config struct {
	Credentials facade.Credentials
	QueueURL    string
	Sink        audit.Sink
	// Builder defaults to NewClientBuilder().
	Builder facade.Builder[API]
}

// Queue wraps SQS.
type Queue struct {
	*facade.Base
	client *facade.Regional[API]

	mu       sync.RWMutex
	queueURL string
}

var _ facade.Account = (*Queue)(nil)

// New creates a Queue façade.
func New(ctx context.Context, cfg Config) (*Queue, error) {
	build := cfg.Builder
	if build == nil {
		build = NewClientBuilder()
	}

	client, err := facade.NewRegional(ctx, cfg.Credentials, build)
	if err != nil {
		return nil, err
	}

	return &Queue{
		Base:     facade.NewBase(audit.CategoryQueue, cfg.Sink),
		client:   client,
		queueURL: cfg.QueueURL,
	}, nil
}

// Credentials returns the credentials in use.
func (q *Queue) Credentials() facade.Credentials {
	return q.client.Credentials()
}

// Region returns the current region.
func (q *Queue) Region() string {
	return q.client.Region()
}

// ReconfigureRegion switches region and rebuilds the SQS client atomically.
func (q *Queue) ReconfigureRegion(ctx context.Context, region string) error {
	return q.client.ReconfigureRegion(ctx, region)
}

// QueueURL returns the default queue URL.
func (q *Queue) QueueURL() string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.queueURL
}

// SetQueueURL changes the default queue URL.
func (q *Queue) SetQueueURL(url string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queueURL = url
}

func (q *Queue) resolveURL(url string) string {
	if url != "" {
		return url
	}
	return q.QueueURL()
}

// Send enqueues body and returns the message ID.
func (q *Queue) Send(ctx context.Context, body string, opts SendOptions) (string, error) {
	ctx, call := q.Begin(ctx, opSend, body, audit.OrUnset(opts.QueueURL))

	out, err := q.client.Client().SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.resolveURL(opts.QueueURL)),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return "", call.Fail(err)
	}

	return aws.ToString(out.MessageId), call.Succeed(facade.ResponseMetadata(out.ResultMetadata))
}

type receiveOutcome struct {
	Metadata facade.Metadata `json:"metadata"`
	Messages []string        `json:"messages"`
}

// Receive long-polls for messages. It returns nil when nothing arrived
// within the wait time.
func (q *Queue) Receive(ctx context.Context, opts ReceiveOptions) ([]types.Message, error) {
	ctx, call := q.Begin(ctx, opReceive,
		audit.OrUnset(opts.QueueURL),
		audit.OrUnset(opts.MaxMessages),
		audit.OrUnset(seconds(opts.VisibilityTimeout)),
		audit.OrUnset(seconds(opts.WaitTime)),
	)

	out, err := q.client.Client().ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.resolveURL(opts.QueueURL)),
		MaxNumberOfMessages: opts.maxMessages(),
		VisibilityTimeout:   seconds(opts.visibilityTimeout()),
		WaitTimeSeconds:     seconds(opts.waitTime()),
	})
	if err != nil {
		return nil, call.Fail(err)
	}

	bodies := make([]string, 0, len(out.Messages))
	for _, m := range out.Messages {
		bodies = append(bodies, aws.ToString(m.Body))
	}
	sinkErr := call.Succeed(receiveOutcome{
		Metadata: facade.ResponseMetadata(out.ResultMetadata),
		Messages: bodies,
	})

	if len(out.Messages) == 0 {
		return nil, sinkErr
	}
	return out.Messages, sinkErr
}

// Delete removes a received message by its receipt handle.
func (q *Queue) Delete(ctx context.Context, receiptHandle string, opts DeleteOptions) (bool, error) {
	ctx, call := q.Begin(ctx, opDelete, receiptHandle, audit.OrUnset(opts.QueueURL))

	out, err := q.client.Client().DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.resolveURL(opts.QueueURL)),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return false, call.Fail(err)
	}

	return true, call.Succeed(facade.ResponseMetadata(out.ResultMetadata))
}

func seconds(d time.Duration) int32 {
	return int32(d / time.Second)
}
