package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tendant/simple-upload/pkg/simpleupload/storageworker"
)

// Repository implements storageworker.Repository using in-memory storage
type Repository struct {
	mu    sync.RWMutex
	files map[string]*storageworker.FileRecord
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		files: make(map[string]*storageworker.FileRecord),
	}
}

var _ storageworker.Repository = (*Repository)(nil)

func (r *Repository) CreateFile(ctx context.Context, file *storageworker.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.files[file.Key]; exists {
		return storageworker.ErrFileExists
	}

	// Create a copy to avoid external modifications
	r.files[file.Key] = clone(file)
	return nil
}

func (r *Repository) GetFile(ctx context.Context, key string) (*storageworker.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	file, exists := r.files[key]
	if !exists {
		return nil, storageworker.ErrFileNotFound
	}
	return clone(file), nil
}

func (r *Repository) UpdateFile(ctx context.Context, file *storageworker.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.files[file.Key]; !exists {
		return storageworker.ErrFileNotFound
	}

	r.files[file.Key] = clone(file)
	return nil
}

func (r *Repository) DeleteFile(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.files[key]; !exists {
		return storageworker.ErrFileNotFound
	}

	delete(r.files, key)
	return nil
}

func (r *Repository) ListUnconfirmed(ctx context.Context, createdBefore time.Time) ([]*storageworker.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*storageworker.FileRecord
	for _, file := range r.files {
		if !file.Confirmed() && file.CreatedAt.Before(createdBefore) {
			result = append(result, clone(file))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func clone(file *storageworker.FileRecord) *storageworker.FileRecord {
	c := *file
	if file.ConfirmedAt != nil {
		at := *file.ConfirmedAt
		c.ConfirmedAt = &at
	}
	return &c
}
