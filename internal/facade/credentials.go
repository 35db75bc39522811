package facade

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Credentials are the static AWS credentials and region a façade runs with.
type Credentials struct {
	AccessKey string
	Secret    string
	Region    string
}

// WithRegion returns a copy of c pointed at region.
func (c Credentials) WithRegion(region string) Credentials {
	c.Region = region
	return c
}

// LoadAWSConfig builds an aws.Config for c. Empty keys fall back to the
// default credential chain (environment, shared config, IAM role).
func LoadAWSConfig(ctx context.Context, c Credentials, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.Secret, ""),
		))
	}
	opts = append(opts, optFns...)

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}
