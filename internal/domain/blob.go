package domain

import (
	"context"
	"io"
)

// BlobWriter uploads objects to cold storage. Used only by the cold
// archiver; the hot path never touches blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
