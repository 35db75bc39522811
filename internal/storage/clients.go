package storage

import (
	"context"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"aws_facade/internal/facade"
)

// ObjectAPI is the part of *s3.Client the façade uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner is the part of *s3.PresignClient the façade uses.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Clients are the transport handles built for one region.
type Clients struct {
	Objects ObjectAPI
	Presign Presigner
	Region  string
}

// NewClientBuilder returns a builder of real S3 clients. optFns are applied
// to every client, e.g. to point it at MinIO.
func NewClientBuilder(optFns ...func(*s3.Options)) facade.Builder[Clients] {
	return func(ctx context.Context, creds facade.Credentials) (Clients, error) {
		cfg, err := facade.LoadAWSConfig(ctx, creds)
		if err != nil {
			return Clients{}, err
		}

		opts := append([]func(*s3.Options){func(o *s3.Options) {
			o.APIOptions = append(o.APIOptions, facade.CaptureErrorBodies)
		}}, optFns...)
		client := s3.NewFromConfig(cfg, opts...)

		return Clients{
			Objects: client,
			Presign: s3.NewPresignClient(client),
			Region:  creds.Region,
		}, nil
	}
}
