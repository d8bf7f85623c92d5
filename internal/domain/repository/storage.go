package repository

import (
	"context"
	"io"
	"time"
)

// ObjectStorage defines the interface for archiving downloaded media.
// Implementations should be provided by the infrastructure layer (e.g., MinIO, S3).
type ObjectStorage interface {
	// Upload stores an object in the storage.
	// size may be -1 when unknown.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// GeneratePresignedDownloadURL creates a presigned URL for downloading an object.
	// fileName, when set, is sent back as the attachment name.
	GeneratePresignedDownloadURL(ctx context.Context, key, fileName string, expiry time.Duration) (string, error)
}
