package formatter

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchiveOptions locates the report bucket. Endpoint and static keys are for S3-compatible stores.
type ArchiveOptions struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Archiver uploads rendered transfer reports to a bucket.
type S3Archiver struct {
	client putObjectAPI
	bucket string
}

func NewS3Archiver(ctx context.Context, opts ArchiveOptions) (*S3Archiver, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("%w: reports.bucket is not set", shared.ErrMissingConfig)
	}

	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archiver{client: client, bucket: opts.Bucket}, nil
}

// ReportKey is the object key for rec in format: transfers/{user}/{transfer}{ext}.
func ReportKey(rec *models.TransferRecord, format string) string {
	return path.Join("transfers", rec.UserID, rec.TransferID+Extension(format))
}

// Upload renders rec in format and stores it, returning the s3:// URI.
func (a *S3Archiver) Upload(ctx context.Context, rec *models.TransferRecord, format string) (string, error) {
	data, contentType, err := RenderReport(rec, format)
	if err != nil {
		return "", err
	}

	key := ReportKey(rec, format)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to upload report: %v", shared.ErrUpstream, err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}
