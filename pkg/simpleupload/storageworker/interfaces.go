package storageworker

import (
	"context"
	"io"
	"time"
)

// BlobStore defines the interface for object byte storage
type BlobStore interface {
	// Upload stores the reader's content under params.ObjectKey
	Upload(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download opens the stored content
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes the object
	Delete(ctx context.Context, objectKey string) error

	// Copy duplicates sourceKey to targetKey
	Copy(ctx context.Context, sourceKey, targetKey string) error

	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// Repository persists file records
type Repository interface {
	CreateFile(ctx context.Context, file *FileRecord) error
	GetFile(ctx context.Context, key string) (*FileRecord, error)
	UpdateFile(ctx context.Context, file *FileRecord) error
	DeleteFile(ctx context.Context, key string) error

	// ListUnconfirmed returns unconfirmed files created before the cutoff, oldest first
	ListUnconfirmed(ctx context.Context, createdBefore time.Time) ([]*FileRecord, error)
}
