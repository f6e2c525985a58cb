package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/therealutkarshpriyadarshi/substills/internal/config"
	"github.com/therealutkarshpriyadarshi/substills/internal/logging"
	"github.com/therealutkarshpriyadarshi/substills/internal/metrics"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// Storage saves screenshots to object storage; it is the download target
type Storage struct {
	client        *minio.Client
	bucketName    string
	prefix        string
	presignExpiry time.Duration
	logger        *logging.Logger
}

// New creates a new storage client
func New(cfg config.StorageConfig, logger *logging.Logger) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	// Ensure bucket exists
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	if logger == nil {
		logger = logging.Nop()
	}
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	return &Storage{
		client:        client,
		bucketName:    cfg.BucketName,
		prefix:        strings.Trim(cfg.Prefix, "/"),
		presignExpiry: expiry,
		logger:        logger.WithComponent("storage"),
	}, nil
}

// ObjectKey places a capture under prefix/YYYY/MM/DD/<id>/<filename> so
// identical filenames never collide.
func ObjectKey(prefix string, capture *models.Capture) string {
	day := capture.CreatedAt.UTC().Format("2006/01/02")
	return path.Join(prefix, day, capture.ID, capture.Filename)
}

// SaveCapture uploads the capture's image bytes and returns the object key
func (s *Storage) SaveCapture(ctx context.Context, capture *models.Capture) (string, error) {
	if len(capture.Data) == 0 {
		return "", fmt.Errorf("capture %s has no image data", capture.ID)
	}

	key := ObjectKey(s.prefix, capture)
	contentType := capture.MIMEType
	if contentType == "" {
		contentType = getContentType(capture.Filename)
	}

	start := time.Now()
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(capture.Data), int64(len(capture.Data)), minio.PutObjectOptions{
		ContentType:        contentType,
		ContentDisposition: contentDisposition(capture.Filename),
		UserMetadata: map[string]string{
			"capture-id": capture.ID,
			"tab-id":     capture.TabID,
			"source":     capture.Source,
		},
	})
	s.observe("put", key, int64(len(capture.Data)), start, err)
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	return key, nil
}

// Download opens an object for reading
func (s *Storage) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	start := time.Now()
	object, err := s.client.GetObject(ctx, s.bucketName, objectName, minio.GetObjectOptions{})
	s.observe("get", objectName, 0, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to download object: %w", err)
	}

	return object, nil
}

// Delete deletes an object from storage
func (s *Storage) Delete(ctx context.Context, objectName string) error {
	start := time.Now()
	err := s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{})
	s.observe("delete", objectName, 0, start, err)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// DownloadURL returns a presigned URL that saves the object as filename
func (s *Storage) DownloadURL(ctx context.Context, objectName, filename string) (string, error) {
	params := url.Values{}
	if filename != "" {
		params.Set("response-content-disposition", contentDisposition(filename))
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucketName, objectName, s.presignExpiry, params)
	if err != nil {
		return "", fmt.Errorf("failed to generate URL: %w", err)
	}

	return u.String(), nil
}

// List lists objects with a prefix
func (s *Storage) List(ctx context.Context, prefix string) ([]string, error) {
	var objects []string

	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		objects = append(objects, object.Key)
	}

	return objects, nil
}

// Health checks that the bucket is reachable
func (s *Storage) Health(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}

func (s *Storage) observe(operation, key string, size int64, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start)
	metrics.RecordStorageOperation(operation, status, duration.Seconds(), size)
	s.logger.LogStorageOperation(operation, s.bucketName, key, size, duration, err)
}

func contentDisposition(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}

// getContentType returns the content type based on file extension
func getContentType(filePath string) string {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
