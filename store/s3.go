package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config configures the S3-backed store. Supports S3-compatible
// providers (R2, MinIO) via Endpoint/UsePathStyle overrides.
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// S3Backend stores objects as keys under an S3 bucket/prefix.
type S3Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Backend creates an S3Backend using the AWS SDK default credential
// chain (env vars, shared config, IAM role).
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, WrapInitError(err, cfg.Bucket)
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, WrapInitError(fmt.Errorf("load AWS config: %w", err), cfg.Bucket)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Backend{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (b *S3Backend) objectKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return strings.TrimSuffix(b.prefix, "/") + "/" + key
}

// Write implements Backend.
func (b *S3Backend) Write(ctx context.Context, key string, r io.Reader) error {
	objKey := b.objectKey(key)
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &b.bucket,
		Key:    &objKey,
		Body:   r,
	})
	if err != nil {
		return WrapWriteError(err, objKey)
	}
	return nil
}

// Open implements Backend.
func (b *S3Backend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objKey := b.objectKey(key)
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.bucket,
		Key:    &objKey,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, NewStorageError(ErrNotFound, "read", objKey, err)
		}
		return nil, WrapReadError(err, objKey)
	}
	return out.Body, nil
}

// Exists implements Backend.
func (b *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	objKey := b.objectKey(key)
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &b.bucket,
		Key:    &objKey,
	})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	if strings.Contains(err.Error(), "404") || strings.Contains(err.Error(), "NotFound") {
		return false, nil
	}
	return false, WrapReadError(err, objKey)
}

// List returns all keys under prefix (with the backend's own prefix
// stripped back off so callers see logical keys).
func (b *S3Backend) List(ctx context.Context, prefix string) ([]string, error) {
	objPrefix := b.objectKey(prefix)
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: &b.bucket,
		Prefix: &objPrefix,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, WrapReadError(err, objPrefix)
		}
		for _, obj := range page.Contents {
			key := *obj.Key
			if b.prefix != "" {
				key = strings.TrimPrefix(key, strings.TrimSuffix(b.prefix, "/")+"/")
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

var _ Backend = (*S3Backend)(nil)
