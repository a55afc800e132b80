package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/tiberius19/canvas-core/app/models"
)

// S3Backend stores file bytes in an S3 or S3-compatible bucket.
type S3Backend struct {
	db       *gorm.DB
	s3Client *s3.Client
	config   S3Config
}

// NewS3Backend creates an S3 storage backend and verifies bucket access.
func NewS3Backend(ctx context.Context, db *gorm.DB, cfg S3Config) (*S3Backend, error) {
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible services want path-style URLs.
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	backend := &S3Backend{db: db, s3Client: s3Client, config: cfg}
	if _, err := s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.BucketName),
	}); err != nil {
		return nil, fmt.Errorf("bucket %s not accessible: %w", cfg.BucketName, err)
	}

	log.Infof("[Storage] initialized S3 backend for bucket: %s", cfg.BucketName)
	return backend, nil
}

func (b *S3Backend) Save(ctx context.Context, r io.Reader, size int64, key, contentType string) (string, error) {
	if contentType == "" {
		contentType = getContentType(filepath.Ext(key))
	}

	_, err := b.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.config.BucketName),
		Key:           aws.String(key),
		Body:          r,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Infof("[Storage] uploaded s3://%s/%s (%d bytes)", b.config.BucketName, key, size)
	return key, nil
}

// Move relocates an object with copy-then-delete, since S3 has no rename.
func (b *S3Backend) Move(ctx context.Context, file *models.File, targetDir string) error {
	oldKey := strings.TrimPrefix(file.Path, "/")
	newKey := path.Join(targetDir, path.Base(oldKey))
	if newKey == oldKey {
		return nil
	}

	_, err := b.s3Client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.config.BucketName),
		CopySource: aws.String(b.config.BucketName + "/" + oldKey),
		Key:        aws.String(newKey),
	})
	if err != nil {
		return fmt.Errorf("failed to copy s3://%s/%s: %w", b.config.BucketName, oldKey, err)
	}

	file.Path = newKey
	if err := b.db.WithContext(ctx).Model(file).Update("path", newKey).Error; err != nil {
		file.Path = oldKey
		return fmt.Errorf("failed to update file path: %w", err)
	}

	if _, err := b.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.config.BucketName),
		Key:    aws.String(oldKey),
	}); err != nil {
		// The copy is canonical now; a leftover source object is only waste.
		log.Warnf("[Storage] failed to delete moved object s3://%s/%s: %v", b.config.BucketName, oldKey, err)
	}

	log.Infof("[Storage] moved s3://%s/%s -> %s", b.config.BucketName, oldKey, newKey)
	return nil
}

func (b *S3Backend) Delete(ctx context.Context, objectPath string) error {
	key := strings.TrimPrefix(objectPath, "/")
	_, err := b.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

func (b *S3Backend) Open(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	key := strings.TrimPrefix(objectPath, "/")
	out, err := b.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read object from S3: %w", err)
	}
	return out.Body, nil
}

// ObjectExists checks if an object exists in the bucket.
func (b *S3Backend) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := b.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}
