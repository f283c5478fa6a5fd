package fs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/tendant/simple-upload/pkg/simpleupload/storageworker"
)

// Backend is a filesystem implementation of the storageworker.BlobStore interface
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing files
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{baseDir: filepath.Clean(config.BaseDir)}, nil
}

var _ storageworker.BlobStore = (*Backend)(nil)

// filePath maps a key below baseDir; ".." segments cannot escape it
func (b *Backend) filePath(objectKey string) string {
	return filepath.Join(b.baseDir, filepath.FromSlash(path.Clean("/"+objectKey)))
}

// GetObjectMeta retrieves metadata for an object in the filesystem
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*storageworker.ObjectMeta, error) {
	filePath := b.filePath(objectKey)

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, storageworker.ErrObjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hash := md5.New()
	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	hash.Write(head[:n])
	if _, err := io.Copy(hash, file); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Detect content type from the extension first, then the content
	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = http.DetectContentType(head[:n])
	}

	return &storageworker.ObjectMeta{
		Key:         objectKey,
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime().UTC(),
		ETag:        hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// Upload writes content to a temporary file and renames it into place
func (b *Backend) Upload(ctx context.Context, reader io.Reader, params storageworker.UploadParams) error {
	filePath := b.filePath(params.ObjectKey)

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to store file: %w", err)
	}
	return nil
}

// Download downloads content directly from the filesystem
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	file, err := os.Open(b.filePath(objectKey))
	if os.IsNotExist(err) {
		return nil, storageworker.ErrObjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Copy duplicates sourceKey to targetKey
func (b *Backend) Copy(ctx context.Context, sourceKey, targetKey string) error {
	src, err := b.Download(ctx, sourceKey)
	if err != nil {
		return err
	}
	defer src.Close()

	return b.Upload(ctx, src, storageworker.UploadParams{ObjectKey: targetKey})
}

// Delete deletes content from the filesystem
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	filePath := b.filePath(objectKey)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return storageworker.ErrObjectNotFound
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir || len(dir) < len(b.baseDir) {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
