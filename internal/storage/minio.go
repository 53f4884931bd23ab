package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioStorage implements Storage using a MinIO (or any S3-compatible) backend.
type MinioStorage struct {
	client    *minio.Client
	presigner *minio.Client
	bucket    string
	partSize  uint64
	expiry    time.Duration
}

// NewMinioStorage creates a MinIO client, ensures the bucket exists, and
// returns a ready-to-use MinioStorage.
func NewMinioStorage(ctx context.Context, opts Options) (*MinioStorage, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("storage bucket is required")
	}

	client, err := newMinioClient(opts.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	presigner := client
	if opts.PublicEndpoint != "" {
		presigner, err = newMinioClient(opts.PublicEndpoint, opts)
		if err != nil {
			return nil, fmt.Errorf("create minio presign client: %w", err)
		}
	}

	if err := ensureMinioBucket(ctx, client, opts.Bucket, opts.region()); err != nil {
		return nil, err
	}

	return &MinioStorage{
		client:    client,
		presigner: presigner,
		bucket:    opts.Bucket,
		partSize:  uint64(opts.partSize()),
		expiry:    opts.presignExpiry(),
	}, nil
}

// newMinioClient pins the region so that neither requests nor presigning
// trigger a bucket-location lookup.
func newMinioClient(endpoint string, opts Options) (*minio.Client, error) {
	host, secure, err := splitEndpoint(endpoint, opts.UseSSL)
	if err != nil {
		return nil, err
	}
	if host == "" {
		return nil, errors.New("storage endpoint is required")
	}
	return minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: secure,
		Region: opts.region(),
	})
}

func ensureMinioBucket(ctx context.Context, client *minio.Client, bucket, region string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		// Another replica may have created it between the check and the create.
		if code := minio.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return fmt.Errorf("create bucket %q: %w", bucket, err)
	}
	zap.S().Infow("storage: created bucket", "bucket", bucket)
	return nil
}

// Upload streams reader to MinIO under key with an unknown length; the client
// buffers one part at a time.
func (s *MinioStorage) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, -1, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    s.partSize,
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// PresignedURL returns a GET URL for key valid for the configured expiry.
func (s *MinioStorage) PresignedURL(ctx context.Context, key string) (string, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if code := minio.ToErrorResponse(err).Code; code == "NoSuchKey" || code == "NotFound" {
			return "", fmt.Errorf("stat object %q: %w", key, ErrObjectNotFound)
		}
		return "", fmt.Errorf("stat object %q: %w", key, err)
	}

	u, err := s.presigner.PresignedGetObject(ctx, s.bucket, key, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign object %q: %w", key, err)
	}
	return u.String(), nil
}
