// Package storage provides remittance file archive backends. Imported files
// are kept verbatim for audit; the archive key is recorded on the remittance.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	app "github.com/remitflow/backend/internal/application/reconciliation"
	infraconfig "github.com/remitflow/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Ensure S3Archiver implements FileArchiver
var _ app.FileArchiver = (*S3Archiver)(nil)

// S3Archiver archives remittance files to an S3 bucket. It works against any
// S3-compatible backend (AWS S3, MinIO, RustFS) when a custom endpoint is set.
type S3Archiver struct {
	client        *s3.Client
	bucket        string
	uploadTimeout time.Duration
	logger        *zap.Logger
}

// S3ArchiverOption is a functional option for configuring S3Archiver
type S3ArchiverOption func(*S3Archiver)

// WithLogger sets a custom logger for S3Archiver
func WithLogger(logger *zap.Logger) S3ArchiverOption {
	return func(s *S3Archiver) {
		s.logger = logger
	}
}

// WithUploadTimeout bounds how long a single Archive call may take
func WithUploadTimeout(d time.Duration) S3ArchiverOption {
	return func(s *S3Archiver) {
		s.uploadTimeout = d
	}
}

// NewS3Archiver creates an S3Archiver from configuration. When the endpoint is
// empty the AWS default resolver is used; a custom endpoint switches the client
// to an S3-compatible backend.
func NewS3Archiver(cfg *infraconfig.StorageConfig, opts ...S3ArchiverOption) (*S3Archiver, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	// Static credentials are optional; without them the default chain applies
	// (env vars, shared profile, IAM role).
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	archiver := &S3Archiver{
		client:        client,
		bucket:        cfg.Bucket,
		uploadTimeout: cfg.UploadTimeout,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(archiver)
	}
	if archiver.uploadTimeout == 0 {
		archiver.uploadTimeout = 30 * time.Second
	}

	return archiver, nil
}

// EnsureBucket creates the bucket if it doesn't exist. Call this during
// application startup against self-hosted backends; on AWS the bucket is
// expected to be provisioned out of band.
func (s *S3Archiver) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating archive bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// Ignore "BucketAlreadyOwnedByYou" (startup race between replicas)
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// Archive stores a remittance file under the given key
func (s *S3Archiver) Archive(ctx context.Context, key string, content []byte, contentType string) error {
	if key == "" {
		return errors.New("archive key is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to archive file: %w", err)
	}

	s.logger.Debug("Archived remittance file",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("size", len(content)))
	return nil
}

// Exists checks whether an archived file is present under the key
func (s *S3Archiver) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("archive key is required")
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return false, nil
		}
		// Some S3-compatible services report not-found through generic API errors
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey") {
			return false, nil
		}
		return false, fmt.Errorf("failed to check archive existence: %w", err)
	}

	return true, nil
}

// GetBucket returns the bucket name
func (s *S3Archiver) GetBucket() string {
	return s.bucket
}
