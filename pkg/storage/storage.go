package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/noah-isme/maintenance-portal-api/pkg/config"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is implemented by every storage backend.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string, before time.Time) ([]ObjectInfo, error)
}

// New returns the backend selected by uploads.Driver.
func New(ctx context.Context, uploads config.UploadsConfig, s3 config.S3Config) (ObjectStore, error) {
	switch uploads.Driver {
	case "", config.UploadDriverLocal:
		return NewLocalStorage(uploads.StorageDir)
	case config.UploadDriverS3:
		store, err := NewS3Storage(s3)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown uploads driver %q", uploads.Driver)
	}
}
