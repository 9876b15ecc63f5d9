package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"media-ingest/internal/faults"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the subset of the S3 client the store uses, as an interface
// so tests can run without credentials.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store lands objects in an S3 bucket.
type S3Store struct {
	client s3API
	bucket string
}

// NewS3Store creates a store for the given bucket using the default AWS
// credential chain.
func NewS3Store(ctx context.Context, bucket, region string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Store{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// NewS3StoreWithClient creates a store around an existing client.
func NewS3StoreWithClient(client s3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Upload implements Store.
func (s *S3Store) Upload(ctx context.Context, path string, r io.Reader, opts UploadOptions) (string, error) {
	if !opts.Overwrite {
		exists, err := s.Exists(ctx, path)
		if err != nil {
			return "", err
		}
		if exists {
			return "", faults.New(faults.Unknown, "storage.upload", fmt.Sprintf("object already exists at %s", path))
		}
	}

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
		Body:   r,
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", faults.Wrap(faults.NetworkFailure, "storage.upload", err)
	}
	return path, nil
}

// Exists implements Store.
func (s *S3Store) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, faults.Wrap(faults.NetworkFailure, "storage.head", err)
}

// Delete implements Store.
func (s *S3Store) Delete(ctx context.Context, path string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}); err != nil {
		return faults.Wrap(faults.NetworkFailure, "storage.delete", err)
	}
	return nil
}
