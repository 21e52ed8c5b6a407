// Package storage holds the image payloads. Photo documents carry
// only a reference; the bytes themselves live in a blob store.
package storage

import "context"

// BlobStore stores raw image payloads. Put returns the id under
// which the payload was stored; the id goes into the photo document.
type BlobStore interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}
