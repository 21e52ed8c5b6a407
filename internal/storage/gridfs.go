package storage

import (
	"bytes"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
)

// GridFS stores image payloads in the database itself via GridFS,
// which keeps blobs out of the 16MB single-document limit. This is
// the default backend.
type GridFS struct {
	bucket *gridfs.Bucket
}

// NewGridFS creates a GridFS-backed blob store on the given database.
func NewGridFS(db *mongo.Database) (*GridFS, error) {
	bucket, err := gridfs.NewBucket(db)
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}
	return &GridFS{bucket: bucket}, nil
}

// Put uploads the payload and returns the assigned file id as a hex
// string. The bucket API predates context plumbing; deadlines are
// applied through the bucket when the context carries one.
func (g *GridFS) Put(ctx context.Context, name string, data []byte) (string, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := g.bucket.SetWriteDeadline(deadline); err != nil {
			return "", fmt.Errorf("failed to set gridfs write deadline: %w", err)
		}
	}
	id, err := g.bucket.UploadFromStream(name, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return id.Hex(), nil
}

// Get downloads the payload stored under id.
func (g *GridFS) Get(ctx context.Context, id string) ([]byte, error) {
	fileID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid image id %q: %w", id, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := g.bucket.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("failed to set gridfs read deadline: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := g.bucket.DownloadToStream(fileID, &buf); err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	return buf.Bytes(), nil
}

// Delete removes the payload stored under id.
func (g *GridFS) Delete(ctx context.Context, id string) error {
	fileID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid image id %q: %w", id, err)
	}
	if err := g.bucket.Delete(fileID); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
