package messaging

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"aws_facade/internal/facade"
)

// API is the part of *sqs.Client the façade uses.
type API interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// NewClientBuilder returns a builder of real SQS clients with raw error body
// capture installed.
func NewClientBuilder(optFns ...func(*sqs.Options)) facade.Builder[API] {
	return func(ctx context.Context, creds facade.Credentials) (API, error) {
		cfg, err := facade.LoadAWSConfig(ctx, creds)
		if err != nil {
			return nil, err
		}

		opts := append([]func(*sqs.Options){func(o *sqs.Options) {
			o.APIOptions = append(o.APIOptions, facade.CaptureErrorBodies)
		}}, optFns...)
		return sqs.NewFromConfig(cfg, opts...), nil
	}
}
