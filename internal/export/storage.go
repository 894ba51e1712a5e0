package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/tigerroll/spaceweather/internal/config"
	"github.com/tigerroll/spaceweather/internal/logger"
)

const (
	// LocalType stores objects under a base directory.
	LocalType = "local"
	// GCSType stores objects in a Google Cloud Storage bucket.
	GCSType = "gcs"
)

// Uploader writes objects to a storage destination.
type Uploader interface {
	// Upload stores data as objectName in bucket. An empty bucket selects the configured default.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Type returns the storage type.
	Type() string
	// Close releases the uploader.
	Close() error
}

// NewUploader creates the Uploader selected by cfg.Type.
func NewUploader(ctx context.Context, cfg config.StorageConfig) (Uploader, error) {
	switch cfg.Type {
	case LocalType, "":
		return NewLocalUploader(cfg)
	case GCSType:
		var opts []option.ClientOption
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		return NewGCSUploader(ctx, cfg, opts...)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// LocalUploader writes objects below BaseDir on the local file system.
type LocalUploader struct {
	cfg config.StorageConfig
}

// NewLocalUploader creates the base directory if needed.
func NewLocalUploader(cfg config.StorageConfig) (*LocalUploader, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("local storage: base_dir must be specified")
	}
	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
			return nil, fmt.Errorf("local storage: failed to create base_dir '%s': %w", cfg.BaseDir, err)
		}
	case err != nil:
		return nil, fmt.Errorf("local storage: failed to stat base_dir '%s': %w", cfg.BaseDir, err)
	case !info.IsDir():
		return nil, fmt.Errorf("local storage: base_dir '%s' is not a directory", cfg.BaseDir)
	}
	return &LocalUploader{cfg: cfg}, nil
}

func (u *LocalUploader) Type() string { return LocalType }

func (u *LocalUploader) Close() error { return nil }

// Upload writes data to BaseDir[/bucket]/objectName, creating directories as needed.
func (u *LocalUploader) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := u.resolvePath(bucket, objectName)
	if err != nil {
		return fmt.Errorf("failed to resolve path for upload: %w", err)
	}
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file '%s': %w", fullPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, data); err != nil {
		return fmt.Errorf("failed to write data to file '%s': %w", fullPath, err)
	}
	logger.Debugf("Wrote '%s'.", fullPath)
	return nil
}

// resolvePath joins the object path below BaseDir and refuses paths that escape it.
func (u *LocalUploader) resolvePath(bucket, objectName string) (string, error) {
	if bucket == "" {
		bucket = u.cfg.BucketName
	}
	fullPath := filepath.Join(u.cfg.BaseDir, bucket, objectName)

	absBaseDir, err := filepath.Abs(u.cfg.BaseDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for base_dir '%s': %w", u.cfg.BaseDir, err)
	}
	absFullPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", fullPath, err)
	}
	if absFullPath != absBaseDir && !strings.HasPrefix(absFullPath, absBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("resolved path '%s' is outside of base_dir '%s'", fullPath, u.cfg.BaseDir)
	}
	return fullPath, nil
}

// GCSUploader writes objects to Google Cloud Storage.
type GCSUploader struct {
	client *storage.Client
	bucket string
}

// NewGCSUploader creates a storage client with opts.
func NewGCSUploader(ctx context.Context, cfg config.StorageConfig, opts ...option.ClientOption) (*GCSUploader, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs storage: failed to create client: %w", err)
	}
	return &GCSUploader{client: client, bucket: cfg.BucketName}, nil
}

func (u *GCSUploader) Type() string { return GCSType }

func (u *GCSUploader) Close() error { return u.client.Close() }

// Upload streams data into gs://bucket/objectName.
func (u *GCSUploader) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	if bucket == "" {
		bucket = u.bucket
	}
	if bucket == "" {
		return fmt.Errorf("gcs storage: no bucket for object '%s'", objectName)
	}
	w := u.client.Bucket(bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", bucket, objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize gs://%s/%s: %w", bucket, objectName, err)
	}
	logger.Debugf("Uploaded gs://%s/%s.", bucket, objectName)
	return nil
}

var (
	_ Uploader = (*LocalUploader)(nil)
	_ Uploader = (*GCSUploader)(nil)
)
