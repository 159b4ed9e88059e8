// Package photostore stores capture image files.
package photostore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned for keys with no stored file.
var ErrNotFound = errors.New("photo not found")

// PhotoStore saves capture files and returns an opaque key used as the
// capture's file reference.
type PhotoStore interface {
	Save(ctx context.Context, prefix, mimeType string, r io.Reader) (storageKey string, err error)
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, storageKey string) error
}
