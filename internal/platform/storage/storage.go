package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"agt_platform/internal/platform/config"
)

var ErrObjectNotFound = errors.New("object not found")

type Storage interface {
	Upload(ctx context.Context, key string, data io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// New picks the backend named by STORAGE_MODE.
func New(cfg *config.Config) (Storage, error) {
	switch cfg.StorageMode {
	case config.StorageModeS3:
		return NewS3Storage(cfg)
	case config.StorageModeLocal, "":
		return NewLocalStorage(cfg.UploadRoot)
	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.StorageMode)
	}
}
