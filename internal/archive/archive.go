// Package archive stores finished autopilot run summaries in S3 as JSON
// documents keyed by date.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/eventnexus/autopilot/internal/config"
	"github.com/eventnexus/autopilot/internal/domain"
)

// ObjectAPI is the part of the S3 client the archiver uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes run summaries to a bucket.
type S3Archiver struct {
	client ObjectAPI
	bucket string
	prefix string
}

// New creates an archiver over an S3 client.
func New(client ObjectAPI, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// NewFromConfig loads AWS credentials and creates an S3-backed archiver.
func NewFromConfig(ctx context.Context, cfg config.ArchiveConfig) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket is required")
	}
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3Client creates the S3 client archives are written with. Static
// keys are used when both are set, the default credential chain otherwise.
func NewS3Client(ctx context.Context, cfg config.ArchiveConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

// Key returns the object key for a summary: prefix/YYYY/MM/DD/<run-id>.json.
func (a *S3Archiver) Key(s domain.RunSummary) string {
	day := s.StartedAt.UTC().Format("2006/01/02")
	return path.Join(a.prefix, day, s.RunID+".json")
}

// Archive uploads s.
func (a *S3Archiver) Archive(ctx context.Context, s domain.RunSummary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(s)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put run summary %s: %w", s.RunID, err)
	}
	return nil
}
