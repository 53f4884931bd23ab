// Package storage defines the interface for object storage operations.
// Swap implementations by changing the driver selected at startup; both
// implementations work with any S3-compatible provider (MinIO, AWS S3, ...).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/reponote/storage/internal/config"
)

// ErrObjectNotFound is returned when the requested key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// Storage is the interface for uploading objects and handing out download URLs.
type Storage interface {
	// Upload streams reader to the store under key. The length is not known in
	// advance; implementations chunk the stream into fixed-size parts.
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	// PresignedURL returns a time-limited GET URL for an existing key.
	PresignedURL(ctx context.Context, key string) (string, error)
}

// Options configures a storage backend.
type Options struct {
	Endpoint       string // host[:port] or URL of the storage API
	PublicEndpoint string // host[:port] or URL used when signing download URLs; empty means Endpoint
	AccessKey      string
	SecretKey      string
	Bucket         string
	Region         string
	UseSSL         bool
	PartSize       int64
	PresignExpiry  time.Duration
}

// OptionsFromConfig maps the storage section of cfg to Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Endpoint:       cfg.StorageEndpoint,
		PublicEndpoint: cfg.StoragePublicEndpoint,
		AccessKey:      cfg.StorageAccessKey,
		SecretKey:      cfg.StorageSecretKey,
		Bucket:         cfg.StorageBucket,
		Region:         cfg.StorageRegion,
		UseSSL:         cfg.StorageUseSSL,
		PartSize:       cfg.StoragePartSize,
		PresignExpiry:  cfg.StoragePresignExpiry,
	}
}

func (o Options) partSize() int64 {
	if o.PartSize > 0 {
		return o.PartSize
	}
	return config.DefaultPartSize
}

func (o Options) presignExpiry() time.Duration {
	if o.PresignExpiry > 0 {
		return o.PresignExpiry
	}
	return config.DefaultPresignExpiry
}

func (o Options) region() string {
	if r := strings.TrimSpace(o.Region); r != "" {
		return r
	}
	return "us-east-1"
}

// New constructs the backend named by cfg.StorageDriver and ensures the
// configured bucket exists.
func New(ctx context.Context, cfg *config.Config) (Storage, error) {
	opts := OptionsFromConfig(cfg)
	switch cfg.StorageDriver {
	case config.DriverMinio, "":
		return NewMinioStorage(ctx, opts)
	case config.DriverS3:
		return NewS3Storage(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// splitEndpoint accepts either "host:port" or "scheme://host:port" and returns
// the host and whether TLS should be used.
func splitEndpoint(raw string, defaultSecure bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		return strings.TrimRight(raw, "/"), defaultSecure, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("endpoint %q has no host", raw)
	}
	return u.Host, u.Scheme == "https", nil
}

// endpointURL renders an endpoint as an absolute URL.
func endpointURL(raw string, defaultSecure bool) (string, error) {
	host, secure, err := splitEndpoint(raw, defaultSecure)
	if err != nil {
		return "", err
	}
	scheme := "http"
	if secure {
		scheme = "https"
	}
	return scheme + "://" + host, nil
}
