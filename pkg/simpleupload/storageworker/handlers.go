package storageworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-upload/pkg/simpleupload/objectkey"
	"github.com/tendant/simple-upload/pkg/simpleupload/token"
	"github.com/tendant/simple-upload/pkg/simpleupload/worker"
)

// KeyResponse is returned by upload, create and copy
type KeyResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type batchDeleteRequest struct {
	Keys []string `json:"keys"`
}

type copyRequest struct {
	SourceKey string `json:"sourceKey"`
	TargetKey string `json:"targetKey"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, worker.Envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, worker.Envelope{Success: false, Error: msg})
}

func (s *Server) denied(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.WarnContext(r.Context(), "request rejected", "path", r.URL.Path, "err", err)
	respondError(w, r, authStatus(err), err.Error())
}

func (s *Server) failed(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrFileNotFound), errors.Is(err, ErrObjectNotFound):
		respondError(w, r, http.StatusNotFound, "file not found")
	case errors.Is(err, ErrFileExists):
		respondError(w, r, http.StatusConflict, "file already exists")
	default:
		s.logger.ErrorContext(r.Context(), "storage operation failed", "op", op, "err", err)
		respondError(w, r, http.StatusInternalServerError, op+" failed")
	}
}

// pathKey returns the wildcard or named key, unescaped when routing used RawPath.
// Keys with "." or ".." segments are rejected.
func pathKey(r *http.Request, name string) (string, error) {
	key := chi.URLParam(r, name)
	if r.URL.RawPath != "" {
		var err error
		if key, err = url.PathUnescape(key); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
	}
	if !cleanKey(key) {
		return "", ErrInvalidKey
	}
	return key, nil
}

// cleanKey reports whether key is already in path.Clean form, so backends
// that normalize paths resolve it to the same object
func cleanKey(key string) bool {
	return key == "" || path.Clean(key) == key
}

func isStorageKey(key string) bool {
	if key == "" || !cleanKey(key) {
		return false
	}
	return strings.HasPrefix(key, objectkey.PublicPrefix+"/") || strings.HasPrefix(key, objectkey.PrivatePrefix+"/")
}

func (s *Server) invalidKey(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusBadRequest, ErrInvalidKey.Error())
}

// Upload stores a client upload authorized by a client token
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	claims, err := s.clientClaims(r)
	if err != nil {
		s.denied(w, r, err)
		return
	}

	fileKey, err := pathKey(r, "*")
	if err != nil || fileKey == "" {
		s.invalidKey(w, r)
		return
	}
	if claimString(claims, token.ClaimFileKey) != fileKey {
		s.denied(w, r, errClaimMismatch)
		return
	}

	contentType := claimString(claims, token.ClaimContentType)
	if contentType == "" {
		contentType = r.Header.Get("Content-Type")
	}
	role := objectkey.AccessRole(claimString(claims, token.ClaimAccessRole))
	key := s.keys.GenerateKey(role, "", fileKey)

	body := http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	size, err := s.put(r.Context(), key, contentType, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		s.failed(w, r, "upload", err)
		return
	}

	now := s.now().UTC()
	record := &FileRecord{
		Key:         key,
		FileName:    fileKey,
		ContentType: contentType,
		AccessRole:  string(role),
		Size:        size,
		UploadID:    claimString(claims, token.ClaimUploadID),
		Status:      FileStatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateFile(r.Context(), record); err != nil {
		s.store.Delete(r.Context(), key)
		s.failed(w, r, "upload", err)
		return
	}

	s.logger.InfoContext(r.Context(), "file uploaded", "key", key, "size", size)
	respond(w, r, http.StatusCreated, KeyResponse{Key: key, URL: s.urls.FileURL(key)})
}

// put stores the body and returns the stored size
func (s *Server) put(ctx context.Context, key, contentType string, body io.Reader) (int64, error) {
	counter := &countingReader{r: body}
	if err := s.store.Upload(ctx, counter, UploadParams{ObjectKey: key, MimeType: contentType}); err != nil {
		return 0, err
	}
	return counter.n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// CreateFile stores a server-originated multipart upload
func (s *Server) CreateFile(w http.ResponseWriter, r *http.Request) {
	claims, err := s.backendClaims(r, token.ActionCreate)
	if err != nil {
		s.denied(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}

	key := r.FormValue("key")
	if key == "" || key != claimString(claims, token.ClaimKey) {
		s.denied(w, r, errClaimMismatch)
		return
	}
	if !isStorageKey(key) {
		respondError(w, r, http.StatusBadRequest, "key must start with public/ or private/")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if _, err := s.repo.GetFile(r.Context(), key); err == nil {
		s.failed(w, r, "create", ErrFileExists)
		return
	}

	contentType := r.FormValue("contentType")
	if contentType == "" {
		contentType = header.Header.Get("Content-Type")
	}
	fileName := r.FormValue("fileName")
	if fileName == "" {
		fileName = header.Filename
	}

	size, err := s.put(r.Context(), key, contentType, file)
	if err != nil {
		s.failed(w, r, "create", err)
		return
	}

	// Backend-originated files are referenced from the start
	now := s.now().UTC()
	record := &FileRecord{
		Key:         key,
		FileName:    fileName,
		ContentType: contentType,
		AccessRole:  r.FormValue("accessRole"),
		Size:        size,
		Status:      FileStatusConfirmed,
		CreatedAt:   now,
		UpdatedAt:   now,
		ConfirmedAt: &now,
	}
	if err := s.repo.CreateFile(r.Context(), record); err != nil {
		s.failed(w, r, "create", err)
		return
	}

	respond(w, r, http.StatusCreated, KeyResponse{Key: key, URL: s.urls.FileURL(key)})
}

// UpdateFile replaces content and/or metadata of a stored file
func (s *Server) UpdateFile(w http.ResponseWriter, r *http.Request) {
	claims, err := s.backendClaims(r, token.ActionUpdate)
	if err != nil {
		s.denied(w, r, err)
		return
	}
	key, err := pathKey(r, "*")
	if err != nil {
		s.invalidKey(w, r)
		return
	}
	if key != claimString(claims, token.ClaimKey) {
		s.denied(w, r, errClaimMismatch)
		return
	}

	record, err := s.repo.GetFile(r.Context(), key)
	if err != nil {
		s.failed(w, r, "update", err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		err = r.ParseMultipartForm(32 << 20)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid form")
		return
	}

	if v := r.FormValue("contentType"); v != "" {
		record.ContentType = v
	}
	if v := r.FormValue("accessRole"); v != "" {
		record.AccessRole = v
	}

	if r.MultipartForm != nil && len(r.MultipartForm.File["file"]) > 0 {
		file, header, err := r.FormFile("file")
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid file")
			return
		}
		defer file.Close()

		size, err := s.put(r.Context(), key, record.ContentType, file)
		if err != nil {
			s.failed(w, r, "update", err)
			return
		}
		record.Size = size
		if header.Filename != "" && header.Filename != "file" {
			record.FileName = header.Filename
		}
	}

	record.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateFile(r.Context(), record); err != nil {
		s.failed(w, r, "update", err)
		return
	}

	respond(w, r, http.StatusOK, KeyResponse{Key: key, URL: s.urls.FileURL(key)})
}

// deleteFile removes blob and record; a half-present file still counts as deleted
func (s *Server) deleteFile(ctx context.Context, key string) error {
	blobErr := s.store.Delete(ctx, key)
	repoErr := s.repo.DeleteFile(ctx, key)

	if errors.Is(blobErr, ErrObjectNotFound) && errors.Is(repoErr, ErrFileNotFound) {
		return ErrFileNotFound
	}
	if blobErr != nil && !errors.Is(blobErr, ErrObjectNotFound) {
		return blobErr
	}
	if repoErr != nil && !errors.Is(repoErr, ErrFileNotFound) {
		return repoErr
	}
	return nil
}

// DeleteFile deletes one file
func (s *Server) DeleteFile(w http.ResponseWriter, r *http.Request) {
	claims, err := s.backendClaims(r, token.ActionDelete)
	if err != nil {
		s.denied(w, r, err)
		return
	}
	key, err := pathKey(r, "*")
	if err != nil {
		s.invalidKey(w, r)
		return
	}
	if key != claimString(claims, token.ClaimKey) {
		s.denied(w, r, errClaimMismatch)
		return
	}

	if err := s.deleteFile(r.Context(), key); err != nil {
		s.failed(w, r, "delete", err)
		return
	}

	respond(w, r, http.StatusOK, KeyResponse{Key: key})
}

// BatchDelete deletes every key the token names
func (s *Server) BatchDelete(w http.ResponseWriter, r *http.Request) {
	claims, err := s.backendClaims(r, token.ActionBatchDelete)
	if err != nil {
		s.denied(w, r, err)
		return
	}

	var req batchDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Keys) == 0 {
		respondError(w, r, http.StatusBadRequest, "keys are required")
		return
	}

	allowed := claimStrings(claims, token.ClaimKeys)
	for _, key := range req.Keys {
		if !cleanKey(key) {
			s.invalidKey(w, r)
			return
		}
		if !slices.Contains(allowed, key) {
			s.denied(w, r, errClaimMismatch)
			return
		}
	}

	deleted, failed := 0, 0
	for _, key := range req.Keys {
		if err := s.deleteFile(r.Context(), key); err != nil {
			if !errors.Is(err, ErrFileNotFound) {
				s.logger.ErrorContext(r.Context(), "batch delete failed", "key", key, "err", err)
			}
			failed++
			continue
		}
		deleted++
	}

	respond(w, r, http.StatusOK, map[string]int{"deleted": deleted, "failed": failed})
}

// GetInfo returns metadata for a stored file
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	claims, err := s.backendClaims(r, token.ActionGetInfo)
	if err != nil {
		s.denied(w, r, err)
		return
	}
	key, err := pathKey(r, "*")
	if err != nil {
		s.invalidKey(w, r)
		return
	}
	if key != claimString(claims, token.ClaimKey) {
		s.denied(w, r, errClaimMismatch)
		return
	}

	record, err := s.repo.GetFile(r.Context(), key)
	if err != nil {
		s.failed(w, r, "get-info", err)
		return
	}

	info := worker.FileInfo{
		Key:          key,
		Size:         record.Size,
		ContentType:  record.ContentType,
		LastModified: record.UpdatedAt,
		AccessRole:   record.AccessRole,
		Exists:       true,
	}
	meta, err := s.store.GetObjectMeta(r.Context(), key)
	switch {
	case err == nil:
		info.Size = meta.Size
		info.LastModified = meta.UpdatedAt
		if info.ContentType == "" {
			info.ContentType = meta.ContentType
		}
	case errors.Is(err, ErrObjectNotFound):
		info.Exists = false
	default:
		s.failed(w, r, "get-info", err)
		return
	}

	respond(w, r, http.StatusOK, info)
}

// CopyFile copies sourceKey to targetKey
func (s *Server) CopyFile(w http.ResponseWriter, r *http.Request) {
	claims, err := s.backendClaims(r, token.ActionCopy)
	if err != nil {
		s.denied(w, r, err)
		return
	}

	var req copyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if !cleanKey(req.SourceKey) || !cleanKey(req.TargetKey) {
		s.invalidKey(w, r)
		return
	}
	if req.SourceKey != claimString(claims, token.ClaimSourceKey) || req.TargetKey != claimString(claims, token.ClaimTargetKey) {
		s.denied(w, r, errClaimMismatch)
		return
	}
	if !isStorageKey(req.TargetKey) {
		respondError(w, r, http.StatusBadRequest, "targetKey must start with public/ or private/")
		return
	}

	source, err := s.repo.GetFile(r.Context(), req.SourceKey)
	if err != nil {
		s.failed(w, r, "copy", err)
		return
	}
	if _, err := s.repo.GetFile(r.Context(), req.TargetKey); err == nil {
		s.failed(w, r, "copy", ErrFileExists)
		return
	}

	if err := s.store.Copy(r.Context(), req.SourceKey, req.TargetKey); err != nil {
		s.failed(w, r, "copy", err)
		return
	}

	now := s.now().UTC()
	target := &FileRecord{
		Key:         req.TargetKey,
		FileName:    source.FileName,
		ContentType: source.ContentType,
		AccessRole:  source.AccessRole,
		Size:        source.Size,
		Status:      FileStatusConfirmed,
		CreatedAt:   now,
		UpdatedAt:   now,
		ConfirmedAt: &now,
	}
	if err := s.repo.CreateFile(r.Context(), target); err != nil {
		s.store.Delete(r.Context(), req.TargetKey)
		s.failed(w, r, "copy", err)
		return
	}

	respond(w, r, http.StatusOK, KeyResponse{Key: req.TargetKey, URL: s.urls.FileURL(req.TargetKey)})
}

// ConfirmFile marks an upload as referenced. The key arrives as one escaped segment.
func (s *Server) ConfirmFile(w http.ResponseWriter, r *http.Request) {
	claims, err := s.backendClaims(r, token.ActionConfirm)
	if err != nil {
		s.denied(w, r, err)
		return
	}

	key, err := pathKey(r, "key")
	if err != nil {
		s.invalidKey(w, r)
		return
	}
	if key != claimString(claims, token.ClaimKey) {
		s.denied(w, r, errClaimMismatch)
		return
	}

	record, err := s.repo.GetFile(r.Context(), key)
	if err != nil {
		s.failed(w, r, "confirm", err)
		return
	}

	if !record.Confirmed() {
		now := s.now().UTC()
		record.Status = FileStatusConfirmed
		record.ConfirmedAt = &now
		record.UpdatedAt = now
		if err := s.repo.UpdateFile(r.Context(), record); err != nil {
			s.failed(w, r, "confirm", err)
			return
		}
	}

	respond(w, r, http.StatusOK, KeyResponse{Key: key, URL: s.urls.FileURL(key)})
}

// orphanAge reads maxAge (hours) from the query and checks it against the token
func orphanAge(r *http.Request, claims map[string]any) (int, error) {
	maxAge := DefaultOrphanMaxAge
	if raw := r.URL.Query().Get("maxAge"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid maxAge %q", raw)
		}
		maxAge = v
	}
	if claimed, ok := claimInt(claims, token.ClaimMaxAge); ok && claimed != maxAge {
		return 0, errClaimMismatch
	}
	return maxAge, nil
}

func (s *Server) orphans(ctx context.Context, maxAge int) ([]*FileRecord, error) {
	cutoff := s.now().UTC().Add(-time.Duration(maxAge) * time.Hour)
	return s.repo.ListUnconfirmed(ctx, cutoff)
}

// ListOrphans lists unconfirmed uploads older than maxAge hours
func (s *Server) ListOrphans(w http.ResponseWriter, r *http.Request) {
	claims, err := s.backendClaims(r, token.ActionListOrphans)
	if err != nil {
		s.denied(w, r, err)
		return
	}
	maxAge, err := orphanAge(r, claims)
	if err != nil {
		if errors.Is(err, errClaimMismatch) {
			s.denied(w, r, err)
			return
		}
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.orphans(r.Context(), maxAge)
	if err != nil {
		s.failed(w, r, "list-orphans", err)
		return
	}

	orphans := make([]worker.OrphanFile, 0, len(records))
	for _, rec := range records {
		orphans = append(orphans, worker.OrphanFile{
			Key:         rec.Key,
			Size:        rec.Size,
			Uploaded:    rec.CreatedAt,
			OrphanSince: rec.CreatedAt.Add(time.Duration(maxAge) * time.Hour),
		})
	}

	respond(w, r, http.StatusOK, map[string]any{"orphans": orphans, "count": len(orphans)})
}

// CleanupOrphans deletes unconfirmed uploads older than maxAge hours
func (s *Server) CleanupOrphans(w http.ResponseWriter, r *http.Request) {
	claims, err := s.backendClaims(r, token.ActionCleanupOrphans)
	if err != nil {
		s.denied(w, r, err)
		return
	}
	maxAge, err := orphanAge(r, claims)
	if err != nil {
		if errors.Is(err, errClaimMismatch) {
			s.denied(w, r, err)
			return
		}
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.orphans(r.Context(), maxAge)
	if err != nil {
		s.failed(w, r, "cleanup-orphans", err)
		return
	}

	var result worker.CleanupResult
	for _, rec := range records {
		if err := s.deleteFile(r.Context(), rec.Key); err != nil {
			s.logger.ErrorContext(r.Context(), "orphan cleanup failed", "key", rec.Key, "err", err)
			result.Failed++
			continue
		}
		result.Deleted++
	}

	s.logger.InfoContext(r.Context(), "orphans cleaned up", "max_age_hours", maxAge, "deleted", result.Deleted, "failed", result.Failed)
	respond(w, r, http.StatusOK, result)
}

// ServeFile streams a stored file. Private files need a client token for the key.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r, "*")
	if err != nil || !isStorageKey(key) {
		respondError(w, r, http.StatusNotFound, "file not found")
		return
	}

	if strings.HasPrefix(key, objectkey.PrivatePrefix+"/") {
		claims, err := s.clientClaims(r)
		if err != nil {
			s.denied(w, r, err)
			return
		}
		if claimString(claims, token.ClaimFileKey) != key {
			s.denied(w, r, errClaimMismatch)
			return
		}
	}

	meta, err := s.store.GetObjectMeta(r.Context(), key)
	if err != nil {
		s.failed(w, r, "serve", err)
		return
	}
	body, err := s.store.Download(r.Context(), key)
	if err != nil {
		s.failed(w, r, "serve", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	if meta.ETag != "" {
		w.Header().Set("ETag", `"`+meta.ETag+`"`)
	}
	if !meta.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", meta.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.logger.WarnContext(r.Context(), "serve interrupted", "key", key, "err", err)
	}
}
