package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ctf_backend/internal/config"
	"ctf_backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageProvider persists challenge attachments and returns a URL players
// can fetch them from.
type StorageProvider interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, objectName string) error
}

// LocalStorage writes attachments to disk; the router serves them under
// /uploads.
type LocalStorage struct {
	BasePath      string
	PublicBaseURL string
}

func (s *LocalStorage) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	path := filepath.Join(s.BasePath, objectName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}

	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/uploads/%s", strings.TrimRight(s.PublicBaseURL, "/"), objectName), nil
}

func (s *LocalStorage) Remove(ctx context.Context, objectName string) error {
	return os.Remove(filepath.Join(s.BasePath, objectName))
}

// MinioStorage keeps attachments in an S3-compatible bucket.
type MinioStorage struct {
	Client   *minio.Client
	Bucket   string
	Endpoint string
	UseSSL   bool
}

func (s *MinioStorage) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := s.Client.PutObject(ctx, s.Bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}

	scheme := "http"
	if s.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.Endpoint, s.Bucket, objectName), nil
}

func (s *MinioStorage) Remove(ctx context.Context, objectName string) error {
	return s.Client.RemoveObject(ctx, s.Bucket, objectName, minio.RemoveObjectOptions{})
}

// StorageService wraps the configured provider and names uploaded objects.
type StorageService struct {
	Provider StorageProvider
}

func NewStorageService(cfg *config.StorageConfig) (*StorageService, error) {
	switch cfg.Type {
	case "minio":
		client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
			Secure: cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("minio init: %w", err)
		}

		ctx := context.Background()
		exists, err := client.BucketExists(ctx, cfg.MinioBucket)
		if err != nil {
			return nil, fmt.Errorf("minio bucket check: %w", err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("minio bucket create: %w", err)
			}
		}

		logger.Log.Info("attachment storage ready", zap.String("type", "minio"), zap.String("bucket", cfg.MinioBucket))
		return &StorageService{Provider: &MinioStorage{
			Client:   client,
			Bucket:   cfg.MinioBucket,
			Endpoint: cfg.MinioEndpoint,
			UseSSL:   cfg.MinioUseSSL,
		}}, nil
	default:
		logger.Log.Info("attachment storage ready", zap.String("type", "local"), zap.String("path", cfg.LocalPath))
		return &StorageService{Provider: &LocalStorage{
			BasePath:      cfg.LocalPath,
			PublicBaseURL: cfg.PublicBaseURL,
		}}, nil
	}
}

// UploadAttachment stores the file under a collision-free name and returns
// its public URL.
func (s *StorageService) UploadAttachment(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	ext := filepath.Ext(filename)
	objectName := uuid.NewString() + ext
	return s.Provider.Upload(ctx, objectName, reader, size, contentType)
}
