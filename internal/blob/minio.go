package blob

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig configures the S3-compatible image store
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// PublicURL overrides the base URL returned for stored objects
	PublicURL string
}

// MinioStore stores images in a MinIO or S3 bucket
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinioStore connects to MinIO and creates the bucket if it does not exist
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	base := strings.TrimSuffix(cfg.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, cli.EndpointURL().Host, cfg.Bucket)
	}
	return &MinioStore{client: cli, bucket: cfg.Bucket, baseURL: base}, nil
}

// Put uploads data under key and returns its URL
func (s *MinioStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}

// Ping checks that the bucket is reachable
func (s *MinioStore) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("minio unreachable: %w", err)
	}
	return nil
}
