// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Development defaults; Validate rejects them when APP_ENV=production.
const (
	defaultJWTSecret        = "supersecretkey"
	defaultStorageAccessKey = "minioadmin"
	defaultStorageSecretKey = "minioadmin"

	// DefaultPartSize is the multipart chunk size used for unknown-length uploads.
	DefaultPartSize int64 = 10 * 1024 * 1024

	// DefaultPresignExpiry is how long a download URL stays valid.
	DefaultPresignExpiry = 15 * time.Minute

	// maxPresignExpiry is the S3 SigV4 upper bound.
	maxPresignExpiry = 7 * 24 * time.Hour

	// minPartSize is the smallest part S3 accepts for all but the last part.
	minPartSize int64 = 5 * 1024 * 1024
)

// Storage drivers.
const (
	DriverMinio = "minio"
	DriverS3    = "s3"
)

// ErrInsecureDefault is returned by Validate when a production deployment still
// uses a development secret.
var ErrInsecureDefault = errors.New("insecure development default in production")

// Config holds all runtime configuration for the service.
type Config struct {
	JWTSecret string
	Port      string
	AppEnv    string

	LogLevel    string
	LogEncoding string

	// 0 disables the timeout; large uploads can take arbitrarily long.
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration

	// Object storage (S3-compatible: MinIO locally, any S3 provider in production)
	StorageDriver         string
	StorageEndpoint       string
	StoragePublicEndpoint string // browser-reachable host used when signing download URLs
	StorageAccessKey      string
	StorageSecretKey      string
	StorageBucket         string
	StorageRegion         string
	StorageUseSSL         bool
	StoragePartSize       int64
	StoragePresignExpiry  time.Duration

	// EnvFileLoaded reports whether a .env file was read. Load runs before the
	// logger exists, so the caller logs its absence.
	EnvFileLoaded bool
}

// Load reads configuration from a .env file (if present) and environment variables.
// Malformed numeric, boolean or duration values are reported as errors.
func Load() (*Config, error) {
	envFileLoaded := godotenv.Load() == nil

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	readTimeout, err := durationFromEnv("HTTP_READ_TIMEOUT", 0)
	collect(err)
	writeTimeout, err := durationFromEnv("HTTP_WRITE_TIMEOUT", 0)
	collect(err)
	useSSL, err := boolFromEnv("STORAGE_USE_SSL", false)
	collect(err)
	partSize, err := int64FromEnv("STORAGE_PART_SIZE", DefaultPartSize)
	collect(err)
	presignExpiry, err := durationFromEnv("STORAGE_PRESIGN_EXPIRY", DefaultPresignExpiry)
	collect(err)

	cfg := &Config{
		JWTSecret: getEnv("JWT_SECRET", defaultJWTSecret),
		Port:      getEnv("PORT", "8080"),
		AppEnv:    getEnv("APP_ENV", "development"),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogEncoding: getEnv("LOG_ENCODING", "json"),

		HTTPReadTimeout:  readTimeout,
		HTTPWriteTimeout: writeTimeout,

		StorageDriver:         strings.ToLower(getEnv("STORAGE_DRIVER", DriverMinio)),
		StorageEndpoint:       getEnv("STORAGE_ENDPOINT", "minio:9000"),
		StoragePublicEndpoint: getEnv("STORAGE_PUBLIC_ENDPOINT", ""),
		StorageAccessKey:      getEnv("STORAGE_ACCESS_KEY", defaultStorageAccessKey),
		StorageSecretKey:      getEnv("STORAGE_SECRET_KEY", defaultStorageSecretKey),
		StorageBucket:         getEnv("STORAGE_BUCKET", "reponote-files"),
		StorageRegion:         getEnv("STORAGE_REGION", "us-east-1"),
		StorageUseSSL:         useSSL,
		StoragePartSize:       partSize,
		StoragePresignExpiry:  presignExpiry,

		EnvFileLoaded: envFileLoaded,
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// LoadJWTSecret returns JWT_SECRET from the environment or a .env file without
// parsing any other setting.
func LoadJWTSecret() string {
	_ = godotenv.Load()
	return getEnv("JWT_SECRET", defaultJWTSecret)
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate checks value ranges and, in production, that no development secret
// is still in use.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverMinio, DriverS3:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverMinio, DriverS3, c.StorageDriver)
	}
	if strings.TrimSpace(c.StorageBucket) == "" {
		return errors.New("STORAGE_BUCKET is required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.StoragePartSize < minPartSize {
		return fmt.Errorf("STORAGE_PART_SIZE must be at least %d bytes", minPartSize)
	}
	if c.StoragePresignExpiry < time.Second || c.StoragePresignExpiry > maxPresignExpiry {
		return fmt.Errorf("STORAGE_PRESIGN_EXPIRY must be between 1s and %s", maxPresignExpiry)
	}

	if !c.IsProduction() {
		return nil
	}
	if c.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("JWT_SECRET: %w", ErrInsecureDefault)
	}
	if c.StorageAccessKey == defaultStorageAccessKey {
		return fmt.Errorf("STORAGE_ACCESS_KEY: %w", ErrInsecureDefault)
	}
	if c.StorageSecretKey == defaultStorageSecretKey {
		return fmt.Errorf("STORAGE_SECRET_KEY: %w", ErrInsecureDefault)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

func int64FromEnv(key string, fallback int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}
