package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the subset of the S3 client the storage uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Storage implements ObjectStorage for AWS S3 and S3-compatible stores.
// Object paths are stored under an optional key prefix.
type S3Storage struct {
	client     s3API
	bucket     string
	prefix     string
	maxRetries int
	backoff    time.Duration
}

// S3Config holds configuration for S3 storage.
type S3Config struct {
	// Region is the AWS region for the S3 bucket.
	Region string
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
	// Prefix is prepended to every object key.
	Prefix string
	// MaxRetries bounds retries of failed requests.
	MaxRetries int
	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration
}

// DefaultS3Config returns the default S3 configuration.
func DefaultS3Config() S3Config {
	return S3Config{
		Region:     "us-east-1",
		MaxRetries: 3,
		Backoff:    100 * time.Millisecond,
	}
}

// NewS3Storage creates an S3 storage using the default AWS credential chain.
func NewS3Storage(ctx context.Context, bucket string, cfg S3Config) (*S3Storage, error) {
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newS3Storage(client, bucket, cfg), nil
}

func newS3Storage(client s3API, bucket string, cfg S3Config) *S3Storage {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &S3Storage{
		client:     client,
		bucket:     bucket,
		prefix:     strings.Trim(cfg.Prefix, "/"),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
}

// Put uploads data, labelling snapshot objects with their content type.
func (s *S3Storage) Put(ctx context.Context, objectPath string, data []byte) error {
	key := s.key(objectPath)
	err := s.retry(ctx, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String(contentType(objectPath)),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: s3://%s/%s: %w", ErrUploadFailed, s.bucket, key, err)
	}
	return nil
}

// Get downloads an object.
func (s *S3Storage) Get(ctx context.Context, objectPath string) ([]byte, error) {
	key := s.key(objectPath)
	var data []byte
	err := s.retry(ctx, func() error {
		resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var noSuchKey *s3types.NoSuchKey
			if errors.As(err, &noSuchKey) {
				return ErrObjectNotFound
			}
			return err
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(resp.Body)
		return err
	})
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, ErrObjectNotFound):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: s3://%s/%s: %w", ErrDownloadFailed, s.bucket, key, err)
	}
}

// Delete removes an object. S3 reports success for missing keys.
func (s *S3Storage) Delete(ctx context.Context, objectPath string) error {
	key := s.key(objectPath)
	err := s.retry(ctx, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: s3://%s/%s: %w", ErrDeleteFailed, s.bucket, key, err)
	}
	return nil
}

// Exists reports whether an object exists.
func (s *S3Storage) Exists(ctx context.Context, objectPath string) (bool, error) {
	key := s.key(objectPath)
	exists := false
	err := s.retry(ctx, func() error {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var notFound *s3types.NotFound
			if errors.As(err, &notFound) {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// ListObjects returns the object paths under prefix, without the storage's
// key prefix.
func (s *S3Storage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var objects []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.key(prefix)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, s.objectPath(aws.ToString(obj.Key)))
		}
	}
	return objects, nil
}

func (s *S3Storage) key(objectPath string) string {
	objectPath = strings.TrimPrefix(objectPath, "/")
	if s.prefix == "" {
		return objectPath
	}
	if objectPath == "" {
		return s.prefix + "/"
	}
	return path.Join(s.prefix, objectPath)
}

func (s *S3Storage) objectPath(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

// retry runs op until it succeeds, reports a missing object, runs out of
// attempts, or ctx ends. The delay doubles after each failure.
func (s *S3Storage) retry(ctx context.Context, op func() error) error {
	delay := s.backoff
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op()
		if lastErr == nil || errors.Is(lastErr, ErrObjectNotFound) {
			return lastErr
		}
		if attempt == s.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}

func contentType(objectPath string) string {
	switch path.Ext(objectPath) {
	case ".sz":
		return "application/x-snappy"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
