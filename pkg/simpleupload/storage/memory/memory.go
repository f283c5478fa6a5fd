package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/tendant/simple-upload/pkg/simpleupload/storageworker"
)

type object struct {
	data      []byte
	mimeType  string
	updatedAt time.Time
}

// Backend is an in-memory implementation of the storageworker.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
	}
}

var _ storageworker.BlobStore = (*Backend)(nil)

// GetObjectMeta retrieves metadata for an object in memory
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*storageworker.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, storageworker.ErrObjectNotFound
	}

	sum := md5.Sum(obj.data)
	return &storageworker.ObjectMeta{
		Key:         objectKey,
		Size:        int64(len(obj.data)),
		ContentType: obj.mimeType,
		UpdatedAt:   obj.updatedAt,
		ETag:        hex.EncodeToString(sum[:]),
	}, nil
}

// Upload uploads content directly
func (b *Backend) Upload(ctx context.Context, reader io.Reader, params storageworker.UploadParams) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	mimeType := params.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[params.ObjectKey] = object{data: data, mimeType: mimeType, updatedAt: time.Now().UTC()}
	return nil
}

// Download downloads content directly
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, storageworker.ErrObjectNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Copy duplicates an object; the copy does not share the source buffer
func (b *Backend) Copy(ctx context.Context, sourceKey, targetKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, exists := b.objects[sourceKey]
	if !exists {
		return storageworker.ErrObjectNotFound
	}

	b.objects[targetKey] = object{
		data:      bytes.Clone(obj.data),
		mimeType:  obj.mimeType,
		updatedAt: time.Now().UTC(),
	}
	return nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return storageworker.ErrObjectNotFound
	}

	delete(b.objects, objectKey)
	return nil
}
