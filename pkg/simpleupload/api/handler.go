// Package api exposes the upload service over HTTP for browser clients and
// backend callers.
package api

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/worker"
)

const maxMultipartMemory = 32 << 20

// DefaultManagerRoles may use the file management and orphan routes
var DefaultManagerRoles = []string{"ADMIN", "TEACHER"}

// Handler serves the upload API
type Handler struct {
	service      simpleupload.Service
	auth         *jwtauth.JWTAuth
	managerRoles []string
	logger       *slog.Logger
}

type Option func(*Handler)

// WithManagerRoles sets the user roles allowed on management routes.
// An empty list keeps DefaultManagerRoles.
func WithManagerRoles(roles ...string) Option {
	return func(h *Handler) {
		if len(roles) > 0 {
			h.managerRoles = roles
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates a Handler. auth verifies HS256 user tokens; file
// management routes need one whose role claim is a manager role.
func NewHandler(service simpleupload.Service, auth *jwtauth.JWTAuth, opts ...Option) *Handler {
	h := &Handler{
		service:      service,
		auth:         auth,
		managerRoles: DefaultManagerRoles,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router for upload endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestIDMiddleware, LoggingMiddleware(h.logger), RecoveryMiddleware(h.logger))

	// Upload flow: a user token is optional and only supplies a default role
	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(h.auth))
		r.Post("/uploads/presign", h.Presign)
		r.Post("/uploads/confirm", h.Confirm)
	})

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(h.auth), jwtauth.Authenticator, RequireRole(h.managerRoles...))
		r.Post("/files", h.CreateFile)
		r.Post("/files/batch-delete", h.BatchDelete)
		r.Post("/files/copy", h.CopyFile)
		r.Get("/files/info/*", h.GetFileInfo)
		r.Put("/files/*", h.UpdateFile)
		r.Delete("/files/*", h.DeleteFile)
		r.Get("/orphans", h.ListOrphans)
		r.Delete("/orphans", h.CleanupOrphans)
	})

	return r
}

type confirmRequest struct {
	FileURL string `json:"fileUrl"`
}

type keyResponse struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

type batchDeleteRequest struct {
	Keys []string `json:"keys"`
}

type copyRequest struct {
	SourceKey  string                  `json:"sourceKey"`
	AccessRole simpleupload.AccessRole `json:"accessRole"`
	Folder     string                  `json:"folder"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, worker.Envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, worker.Envelope{Error: msg})
}

// wildcardKey returns the key matched by a trailing wildcard
func wildcardKey(r *http.Request) (string, bool) {
	key := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(key)
		if err != nil {
			return "", false
		}
		key = unescaped
	}
	return key, key != ""
}

// userRole returns the role claim of a verified user token, if any
func userRole(r *http.Request) simpleupload.AccessRole {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil || claims == nil {
		return ""
	}
	role, _ := claims["role"].(string)
	return simpleupload.AccessRole(role)
}

// Presign issues a direct upload URL
func (h *Handler) Presign(w http.ResponseWriter, r *http.Request) {
	var req simpleupload.PresignRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccessRole == "" {
		req.AccessRole = userRole(r)
	}

	resp, err := h.service.PresignUpload(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "presign failed", "err", err)
		respondError(w, r, http.StatusInternalServerError, "upload is not configured")
		return
	}
	respond(w, r, http.StatusOK, resp)
}

// Confirm marks an uploaded file as in use so orphan cleanup keeps it
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	key, err := h.service.ValidateAndExtractKey(req.FileURL)
	if err != nil {
		respondError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if !h.service.ConfirmFile(r.Context(), key) {
		respondError(w, r, http.StatusBadGateway, "confirm failed")
		return
	}
	respond(w, r, http.StatusOK, keyResponse{Key: key, URL: h.service.FileURL(key)})
}

// CreateFile stores a multipart upload under a derived key
func (h *Handler) CreateFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		respondError(w, r, http.StatusBadRequest, "multipart form required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	req := simpleupload.CreateFileRequest{
		AccessRole:  simpleupload.AccessRole(r.FormValue("accessRole")),
		Folder:      r.FormValue("folder"),
		FileName:    formOr(r, "fileName", header.Filename),
		ContentType: formOr(r, "contentType", header.Header.Get("Content-Type")),
		Body:        file,
	}
	if req.AccessRole == "" {
		req.AccessRole = userRole(r)
	}

	key := h.service.CreateFile(r.Context(), req)
	if key == "" {
		respondError(w, r, http.StatusBadGateway, "create failed")
		return
	}
	respond(w, r, http.StatusCreated, keyResponse{Key: key, URL: h.service.FileURL(key)})
}

// UpdateFile replaces content and/or metadata of a stored file
func (h *Handler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	key, ok := wildcardKey(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, "key is required")
		return
	}

	var (
		file   multipart.File
		header *multipart.FileHeader
	)
	if err := r.ParseMultipartForm(maxMultipartMemory); err == nil {
		file, header, _ = r.FormFile("file")
	} else if err := r.ParseForm(); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid form")
		return
	}

	req := simpleupload.UpdateRequest{
		FileName:    r.FormValue("fileName"),
		ContentType: r.FormValue("contentType"),
		AccessRole:  r.FormValue("accessRole"),
	}
	if file != nil {
		defer file.Close()
		req.Body = file
		if req.FileName == "" {
			req.FileName = header.Filename
		}
		if req.ContentType == "" {
			req.ContentType = header.Header.Get("Content-Type")
		}
	}

	if !h.service.UpdateFile(r.Context(), key, req) {
		respondError(w, r, http.StatusBadGateway, "update failed")
		return
	}
	respond(w, r, http.StatusOK, keyResponse{Key: key, URL: h.service.FileURL(key)})
}

// GetFileInfo returns worker metadata for a key
func (h *Handler) GetFileInfo(w http.ResponseWriter, r *http.Request) {
	key, ok := wildcardKey(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, "key is required")
		return
	}
	info := h.service.GetFileInfo(r.Context(), key)
	if info == nil {
		respondError(w, r, http.StatusNotFound, "file not found")
		return
	}
	respond(w, r, http.StatusOK, info)
}

// DeleteFile removes a stored file
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	key, ok := wildcardKey(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, "key is required")
		return
	}
	if !h.service.DeleteFile(r.Context(), key) {
		respondError(w, r, http.StatusBadGateway, "delete failed")
		return
	}
	respond(w, r, http.StatusOK, map[string]bool{"deleted": true})
}

// BatchDelete removes several files and reports how many went
func (h *Handler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	var req batchDeleteRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil || len(req.Keys) == 0 {
		respondError(w, r, http.StatusBadRequest, "keys are required")
		return
	}
	deleted := h.service.BatchDeleteFiles(r.Context(), req.Keys)
	respond(w, r, http.StatusOK, map[string]int{"deleted": deleted})
}

// CopyFile copies a stored file to a freshly derived key
func (h *Handler) CopyFile(w http.ResponseWriter, r *http.Request) {
	var req copyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil || req.SourceKey == "" {
		respondError(w, r, http.StatusBadRequest, "sourceKey is required")
		return
	}
	key := h.service.CopyFile(r.Context(), simpleupload.CopyFileRequest{
		SourceKey:  req.SourceKey,
		AccessRole: req.AccessRole,
		Folder:     req.Folder,
	})
	if key == "" {
		respondError(w, r, http.StatusBadGateway, "copy failed")
		return
	}
	respond(w, r, http.StatusCreated, keyResponse{Key: key, URL: h.service.FileURL(key)})
}

// ListOrphans lists unconfirmed uploads older than maxAge hours
func (h *Handler) ListOrphans(w http.ResponseWriter, r *http.Request) {
	maxAge, ok := queryMaxAge(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, "invalid maxAge")
		return
	}
	orphans := h.service.ListOrphans(r.Context(), maxAge)
	if orphans == nil {
		orphans = []simpleupload.OrphanFile{}
	}
	respond(w, r, http.StatusOK, map[string]any{"orphans": orphans, "count": len(orphans)})
}

// CleanupOrphans deletes unconfirmed uploads older than maxAge hours
func (h *Handler) CleanupOrphans(w http.ResponseWriter, r *http.Request) {
	maxAge, ok := queryMaxAge(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, "invalid maxAge")
		return
	}
	respond(w, r, http.StatusOK, h.service.CleanupOrphans(r.Context(), maxAge))
}

// queryMaxAge parses ?maxAge=; absent means the service default
func queryMaxAge(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("maxAge")
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func formOr(r *http.Request, field, fallback string) string {
	if v := r.FormValue(field); v != "" {
		return v
	}
	return fallback
}
