package storage

import (
	"errors"

	"github.com/tiberius19/canvas-core/internal/pkg/env"
)

const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

// Config holds the file storage configuration
type Config struct {
	Driver    string
	LocalRoot string
	S3        S3Config
}

// S3Config holds credentials for S3 or an S3-compatible service
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
}

// LoadConfig loads storage configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Driver:    env.GetEnv("STORAGE_DRIVER", DriverLocal),
		LocalRoot: env.GetEnv("STORAGE_LOCAL_ROOT", "./uploads"),
		S3: S3Config{
			AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
			Region:          env.GetEnv("S3_REGION", "us-east-1"),
			BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
			EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		},
	}

	switch config.Driver {
	case DriverLocal:
	case DriverS3:
		if config.S3.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the s3 storage driver is active")
		}
		if config.S3.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the s3 storage driver is active")
		}
		if config.S3.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the s3 storage driver is active")
		}
	default:
		return nil, errors.New("STORAGE_DRIVER must be local or s3")
	}

	return config, nil
}
