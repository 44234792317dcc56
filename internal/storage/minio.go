package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig - параметры подключения к S3-совместимому хранилищу.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStorage хранит вложения в бакете MinIO/S3.
type MinioStorage struct {
	client         *minio.Client
	bucket         string
	maxUploadBytes int64
}

// NewMinioStorage подключается к хранилищу и создаёт бакет при необходимости.
func NewMinioStorage(ctx context.Context, cfg MinioConfig, maxUploadMB int64) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: проверка бакета %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: создание бакета %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioStorage{
		client:         client,
		bucket:         cfg.Bucket,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Save загружает объект. Размер должен быть известен заранее.
func (s *MinioStorage) Save(ctx context.Context, key string, obj Object) (int64, error) {
	if obj.Size > s.maxUploadBytes {
		return 0, ErrTooLarge
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, obj.Body, obj.Size, minio.PutObjectOptions{
		ContentType: obj.ContentType,
	})
	if err != nil {
		return 0, fmt.Errorf("storage: put object %s: %w", key, err)
	}
	return info.Size, nil
}

// Open возвращает поток чтения объекта.
func (s *MinioStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	// GetObject ленивый: отсутствие объекта проявляется только при Stat/Read
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: stat object %s: %w", key, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: get object %s: %w", key, err)
	}
	return obj, nil
}

// Delete удаляет объект.
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("storage: remove object %s: %w", key, err)
	}
	return nil
}
