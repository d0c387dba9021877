// Package attachments stores comment attachment blobs in S3-compatible
// object storage. Metadata rows live in Postgres; only the bytes go here.
package attachments

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	// MaxSizeBytes caps a single attachment upload.
	MaxSizeBytes = 25 << 20

	presignExpiry = 15 * time.Minute
)

// Config holds object storage connection settings
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Service wraps a MinIO client scoped to one bucket
type Service struct {
	client *minio.Client
	bucket string
}

// NewService connects to object storage and makes sure the bucket exists.
func NewService(ctx context.Context, cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	s := &Service{client: client, bucket: cfg.Bucket}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return s, nil
}

// ObjectKey builds the storage key for an attachment. Keys are prefixed by
// task and comment so a task's blobs can be listed or expired together.
func ObjectKey(taskID, commentID int64, fileName string) string {
	return fmt.Sprintf("tasks/%d/comments/%d/%s", taskID, commentID, sanitizeName(fileName))
}

// Upload streams an attachment body into object storage and returns its key.
func (s *Service) Upload(ctx context.Context, taskID, commentID int64, fileName, contentType string, body io.Reader, size int64) (string, error) {
	if size <= 0 || size > MaxSizeBytes {
		return "", fmt.Errorf("attachment size %d out of range", size)
	}

	key := ObjectKey(taskID, commentID, fileName)
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}

// PresignedURL returns a short-lived download URL for the given object key.
// Clients fetch the blob straight from storage; the API never proxies bytes.
func (s *Service) PresignedURL(ctx context.Context, objectKey, fileName string) (string, error) {
	params := make(url.Values)
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, presignExpiry, params)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectKey, err)
	}
	return u.String(), nil
}

// Remove deletes an attachment blob.
func (s *Service) Remove(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", objectKey, err)
	}
	return nil
}

// sanitizeName keeps the base name and drops characters that complicate keys
// or content-disposition headers.
func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "attachment"
	}
	return b.String()
}
