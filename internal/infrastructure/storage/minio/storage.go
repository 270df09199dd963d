// Package minio stores source documents in an S3-compatible bucket.
package minio

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/core/ports"
	"github.com/kirillkom/doc-triage/internal/infrastructure/resilience"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Storage struct {
	client   *minio.Client
	bucket   string
	executor *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Storage{client: client, bucket: cfg.Bucket, executor: executor}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func (s *Storage) Store(ctx context.Context, folder, filename, contentType string, data io.Reader) (string, error) {
	key := path.Join(folder, filename)
	_, err := s.client.PutObject(ctx, s.bucket, key, data, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}
	return key, nil
}

func (s *Storage) Fetch(ctx context.Context, locator string) (ports.Blob, error) {
	var blob ports.Blob
	call := func(ctx context.Context) error {
		obj, err := s.client.GetObject(ctx, s.bucket, locator, minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		defer obj.Close()

		info, err := obj.Stat()
		if err != nil {
			return err
		}
		data, err := io.ReadAll(obj)
		if err != nil {
			return err
		}
		blob = ports.Blob{Data: data, ContentType: info.ContentType}
		return nil
	}

	var err error
	if s.executor != nil {
		err = s.executor.Execute(ctx, "blob.fetch", call, classifyMinioError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ports.Blob{}, domain.WrapError(domain.ErrNotFound, "fetch object", err)
		}
		return ports.Blob{}, fmt.Errorf("fetch object %s: %w", locator, err)
	}
	return blob, nil
}

// objectErrors maps S3 error responses. Missing objects and denied access
// are the caller's problem; server-side failures are worth another attempt.
func objectErrors(err error) (resilience.ErrorClassification, bool) {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.Code == "AccessDenied":
		return resilience.Rejected, true
	case resp.StatusCode >= 500:
		return resilience.Transient, true
	default:
		return resilience.ErrorClassification{}, false
	}
}

func classifyMinioError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, objectErrors, resilience.NetworkErrors)
}
