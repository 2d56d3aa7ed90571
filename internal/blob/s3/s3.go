// Package s3 provides an S3-compatible blob store backend.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/papertrove/papertrove/internal/blob"
	"github.com/papertrove/papertrove/pkg/models"
)

// Config configures the S3 blob store.
type Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// Store keeps blobs in an S3-compatible bucket under
// {prefix}/{tenant}/{YYYY}/{MM}/{file_id base}.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ blob.Store = (*Store)(nil)

// New creates an S3-backed blob store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	loadOptions := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Put persists the bytes and returns the generated file ID.
func (s *Store) Put(ctx context.Context, tenantID string, data io.Reader, ext string) (string, error) {
	fileID := blob.NewFileID(ext)
	key, err := s.objectKey(tenantID, fileID)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        data,
		ContentType: aws.String(blob.MimeForFileID(fileID)),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return fileID, nil
}

// Get opens the stored file and reports its MIME type.
func (s *Store) Get(ctx context.Context, tenantID, fileID string) (io.ReadCloser, string, error) {
	key, err := s.objectKey(tenantID, fileID)
	if err != nil {
		return nil, "", err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", fmt.Errorf("blob %s: %w", fileID, models.ErrNotFound)
		}
		return nil, "", fmt.Errorf("s3 get object: %w", err)
	}

	mimeType := blob.MimeForFileID(fileID)
	if out.ContentType != nil && *out.ContentType != "" {
		mimeType = *out.ContentType
	}
	return out.Body, mimeType, nil
}

// Delete removes the stored file.
func (s *Store) Delete(ctx context.Context, tenantID, fileID string) error {
	key, err := s.objectKey(tenantID, fileID)
	if err != nil {
		return err
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}); err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

// Stats lists the tenant's prefix counting objects and bytes.
func (s *Store) Stats(ctx context.Context, tenantID string) (int64, int64, error) {
	prefix := tenantID + "/"
	if s.prefix != "" {
		prefix = s.prefix + "/" + prefix
	}

	var count, bytes int64
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: &prefix,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("s3 list objects: %w", err)
		}
		for _, obj := range page.Contents {
			count++
			if obj.Size != nil {
				bytes += *obj.Size
			}
		}
	}
	return count, bytes, nil
}

// Close releases resources.
func (s *Store) Close() error { return nil }

func (s *Store) objectKey(tenantID, fileID string) (string, error) {
	if tenantID == "" || strings.ContainsAny(tenantID, "/\\") {
		return "", fmt.Errorf("invalid tenant id %q: %w", tenantID, models.ErrValidation)
	}
	year, month, name, err := blob.ParseFileID(fileID)
	if err != nil {
		return "", err
	}
	key := path.Join(tenantID, year, month, name)
	if s.prefix != "" {
		key = path.Join(s.prefix, key)
	}
	return key, nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) &&
		(strings.EqualFold(apiErr.ErrorCode(), "NotFound") || strings.EqualFold(apiErr.ErrorCode(), "NoSuchKey"))
}
