package storage

import (
	"context"
	"io"
)

// Storage holds uploaded manifest workbooks between the API and the worker.
type Storage interface {
	Upload(ctx context.Context, key string, data io.ReadSeeker) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
