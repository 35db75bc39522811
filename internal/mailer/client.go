package mailer

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ses"

	"aws_facade/internal/facade"
)

// API is the part of *ses.Client the façade uses.
type API interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// NewClientBuilder returns a builder of real SES clients with raw error body
// capture installed.
func NewClientBuilder(optFns ...func(*ses.Options)) facade.Builder[API] {
	return func(ctx context.Context, creds facade.Credentials) (API, error) {
		cfg, err := facade.LoadAWSConfig(ctx, creds)
		if err != nil {
			return nil, err
		}

		opts := append([]func(*ses.Options){func(o *ses.Options) {
			o.APIOptions = append(o.APIOptions, facade.CaptureErrorBodies)
		}}, optFns...)
		return ses.NewFromConfig(cfg, opts...), nil
	}
}
