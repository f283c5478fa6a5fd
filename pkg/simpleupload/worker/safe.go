package worker

import (
	"context"
	"fmt"
	"log/slog"
)

// Safe is the single place where worker failures become default values.
// Every method logs the failure with its operation and key and returns the
// documented sentinel: false, 0, nil, "" or a zero CleanupResult.
type Safe struct {
	api    API
	logger *slog.Logger
}

func NewSafe(api API, logger *slog.Logger) *Safe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Safe{api: api, logger: logger}
}

// orDefault runs fn and maps any error or panic to fallback
func orDefault[T any](ctx context.Context, s *Safe, op, key string, fallback T, fn func(context.Context) (T, error)) (result T) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "storage worker call panicked", "op", op, "key", key, "panic", fmt.Sprint(r))
			result = fallback
		}
	}()

	v, err := fn(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "storage worker call failed", "op", op, "key", key, "err", err)
		return fallback
	}
	return v
}

func (s *Safe) DeleteFile(ctx context.Context, key string) bool {
	return orDefault(ctx, s, "delete", key, false, func(ctx context.Context) (bool, error) {
		err := s.api.Delete(ctx, key)
		return err == nil, err
	})
}

// BatchDeleteFiles returns how many keys the worker deleted, 0 on any failure
func (s *Safe) BatchDeleteFiles(ctx context.Context, keys []string) int {
	return orDefault(ctx, s, "batch-delete", fmt.Sprintf("%d keys", len(keys)), 0, func(ctx context.Context) (int, error) {
		return s.api.BatchDelete(ctx, keys)
	})
}

// GetFileInfo returns nil when the file does not exist or the call failed
func (s *Safe) GetFileInfo(ctx context.Context, key string) *FileInfo {
	return orDefault(ctx, s, "get-info", key, (*FileInfo)(nil), func(ctx context.Context) (*FileInfo, error) {
		return s.api.GetInfo(ctx, key)
	})
}

// CreateFile returns the stored key, or "" on failure
func (s *Safe) CreateFile(ctx context.Context, req CreateRequest) string {
	return orDefault(ctx, s, "create", req.Key, "", func(ctx context.Context) (string, error) {
		return s.api.Create(ctx, req)
	})
}

func (s *Safe) UpdateFile(ctx context.Context, key string, req UpdateRequest) bool {
	return orDefault(ctx, s, "update", key, false, func(ctx context.Context) (bool, error) {
		err := s.api.Update(ctx, key, req)
		return err == nil, err
	})
}

// CopyFile returns the target key, or "" on failure
func (s *Safe) CopyFile(ctx context.Context, sourceKey, targetKey string) string {
	return orDefault(ctx, s, "copy", sourceKey, "", func(ctx context.Context) (string, error) {
		return s.api.Copy(ctx, sourceKey, targetKey)
	})
}

func (s *Safe) ConfirmFile(ctx context.Context, key string) bool {
	return orDefault(ctx, s, "confirm", key, false, func(ctx context.Context) (bool, error) {
		err := s.api.Confirm(ctx, key)
		return err == nil, err
	})
}

// ListOrphans returns nil on failure and a non-nil (possibly empty) slice on success
func (s *Safe) ListOrphans(ctx context.Context, maxAge int) []OrphanFile {
	return orDefault(ctx, s, "list-orphans", "", []OrphanFile(nil), func(ctx context.Context) ([]OrphanFile, error) {
		return s.api.ListOrphans(ctx, maxAge)
	})
}

func (s *Safe) CleanupOrphans(ctx context.Context, maxAge int) CleanupResult {
	return orDefault(ctx, s, "cleanup-orphans", "", CleanupResult{}, func(ctx context.Context) (CleanupResult, error) {
		return s.api.CleanupOrphans(ctx, maxAge)
	})
}
