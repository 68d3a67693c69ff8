package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const DefaultPresignTTL = 15 * time.Minute

var ErrEmptyKey = errors.New("object key is empty")

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

func NewClient(cfg Config) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return client, nil
}

// S3ContentSigner presigns downloads of bundle content stored in one bucket.
type S3ContentSigner struct {
	client *minio.Client
	bucket string
}

func NewS3ContentSigner(client *minio.Client, bucket string) *S3ContentSigner {
	return &S3ContentSigner{
		client: client,
		bucket: strings.TrimSpace(bucket),
	}
}

func (s *S3ContentSigner) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("s3 client is nil")
	}
	if strings.TrimSpace(key) == "" {
		return "", ErrEmptyKey
	}
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get object: %w", err)
	}

	return presigned.String(), nil
}
