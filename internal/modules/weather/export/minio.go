package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLExpiry time.Duration
}

// MinioStore uploads artifacts to an S3-compatible bucket; locators are
// presigned GET URLs.
type MinioStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewMinioStore(ctx context.Context, cfg MinioConfig, logger *slog.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("created export bucket", "bucket", cfg.Bucket)
	}

	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		expiry: cfg.URLExpiry,
		now:    time.Now,
		logger: logger,
	}, nil
}

func (s *MinioStore) objectName(name string) string {
	return fmt.Sprintf("exports/%s/%s", s.now().UTC().Format("2006/01/02"), name)
}

func (s *MinioStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	object := s.objectName(name)

	_, err := s.client.PutObject(ctx, s.bucket, object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", object, err)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, object, s.expiry, nil)
	if err != nil {
		// no locator can be handed out, so drop the object
		if rmErr := s.client.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{}); rmErr != nil {
			s.logger.Warn("remove unlocatable export", "object", object, "error", rmErr)
		}
		return "", fmt.Errorf("presign %s: %w", object, err)
	}
	return u.String(), nil
}
