package simpleupload

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-upload/pkg/simpleupload/fileurl"
	"github.com/tendant/simple-upload/pkg/simpleupload/objectkey"
	"github.com/tendant/simple-upload/pkg/simpleupload/token"
	"github.com/tendant/simple-upload/pkg/simpleupload/worker"
)

// TokenIssuer mints client and backend tokens. *token.Issuer satisfies it.
type TokenIssuer interface {
	worker.TokenSource
	IssueClientToken(claims token.Claims, ttl time.Duration) (string, error)
	ClientTTL() time.Duration
}

// service implements the Service interface
type service struct {
	issuer        TokenIssuer
	api           worker.API
	worker        *worker.Safe
	urls          *fileurl.Validator
	keys          *objectkey.Generator
	workerBaseURL string
	logger        *slog.Logger
	newID         func() uuid.UUID
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithTokenIssuer sets the token issuer used for client and backend tokens
func WithTokenIssuer(issuer TokenIssuer) Option {
	return func(s *service) {
		s.issuer = issuer
	}
}

// WithWorker replaces the HTTP worker client
func WithWorker(api worker.API) Option {
	return func(s *service) {
		s.api = api
	}
}

// WithFileURLValidator sets the callback URL validator
func WithFileURLValidator(v *fileurl.Validator) Option {
	return func(s *service) {
		s.urls = v
	}
}

// WithKeyGenerator sets the generator for derived keys
func WithKeyGenerator(g *objectkey.Generator) Option {
	return func(s *service) {
		s.keys = g
	}
}

// WithWorkerBaseURL sets the storage worker base URL
func WithWorkerBaseURL(baseURL string) Option {
	return func(s *service) {
		s.workerBaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		logger: slog.Default(),
		newID:  uuid.New,
	}

	for _, option := range options {
		option(s)
	}

	if s.issuer == nil {
		return nil, ErrTokenIssuerRequired
	}
	if s.workerBaseURL == "" {
		return nil, ErrWorkerBaseURLRequired
	}
	if s.api == nil {
		s.api = worker.NewClient(s.workerBaseURL, s.issuer, worker.WithLogger(s.logger))
	}
	if s.urls == nil {
		s.urls = fileurl.New(s.workerBaseURL)
	}
	if s.keys == nil {
		s.keys = objectkey.NewGenerator()
	}
	s.worker = worker.NewSafe(s.api, s.logger)

	return s, nil
}

// Client uploads

func (s *service) PresignUpload(ctx context.Context, req PresignRequest) (*PresignResponse, error) {
	role := req.AccessRole
	if role == "" {
		role = RoleGuest
	}
	fileName := req.FileName
	if fileName == "" {
		fileName = DefaultFileName
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	uploadID := s.newID().String()
	ttl := s.issuer.ClientTTL()

	tok, err := s.issuer.IssueClientToken(token.UploadClaims{
		FileKey:     fileName,
		ContentType: contentType,
		UploadID:    uploadID,
		AccessRole:  string(role),
	}, ttl)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	s.logger.DebugContext(ctx, "presigned upload", "upload_id", uploadID, "access_role", role, "content_type", contentType)

	return &PresignResponse{
		UploadURL:  s.workerBaseURL + "/upload/" + escapePath(fileName) + "?token=" + url.QueryEscape(tok),
		Key:        fileName,
		UploadID:   uploadID,
		AccessRole: role,
		ExpiresIn:  int(ttl / time.Second),
	}, nil
}

// Backend operations

func (s *service) DeleteFile(ctx context.Context, key string) bool {
	return s.worker.DeleteFile(ctx, key)
}

func (s *service) BatchDeleteFiles(ctx context.Context, keys []string) int {
	return s.worker.BatchDeleteFiles(ctx, keys)
}

func (s *service) GetFileInfo(ctx context.Context, key string) *FileInfo {
	return s.worker.GetFileInfo(ctx, key)
}

func (s *service) CreateFile(ctx context.Context, req CreateFileRequest) string {
	fileName := req.FileName
	if fileName == "" {
		fileName = DefaultFileName
	}
	return s.worker.CreateFile(ctx, worker.CreateRequest{
		Key:         s.keys.GenerateKey(req.AccessRole, req.Folder, fileName),
		FileName:    fileName,
		ContentType: req.ContentType,
		AccessRole:  string(req.AccessRole),
		Body:        req.Body,
	})
}

func (s *service) UpdateFile(ctx context.Context, key string, req UpdateRequest) bool {
	return s.worker.UpdateFile(ctx, key, req)
}

func (s *service) CopyFile(ctx context.Context, req CopyFileRequest) string {
	if req.SourceKey == "" {
		s.logger.WarnContext(ctx, "copy requested without source key")
		return ""
	}
	target := s.keys.GenerateKey(req.AccessRole, req.Folder, objectkey.BaseName(req.SourceKey))
	return s.worker.CopyFile(ctx, req.SourceKey, target)
}

func (s *service) ConfirmFile(ctx context.Context, key string) bool {
	return s.worker.ConfirmFile(ctx, key)
}

func (s *service) ListOrphans(ctx context.Context, maxAge int) []OrphanFile {
	return s.worker.ListOrphans(ctx, orphanAge(maxAge))
}

func (s *service) CleanupOrphans(ctx context.Context, maxAge int) CleanupResult {
	return s.worker.CleanupOrphans(ctx, orphanAge(maxAge))
}

// Callback URLs

func (s *service) ValidateAndExtractKey(fileURL string) (string, error) {
	return s.urls.ValidateAndExtractKey(fileURL)
}

func (s *service) ValidateAndConfirmFile(ctx context.Context, fileURL string) bool {
	key, err := s.urls.ValidateAndExtractKey(fileURL)
	if err != nil {
		s.logger.WarnContext(ctx, "rejected file URL", "err", err)
		return false
	}
	return s.worker.ConfirmFile(ctx, key)
}

func (s *service) FileURL(key string) string {
	return s.urls.FileURL(key)
}

// Keys

func (s *service) GenerateFileKey(role AccessRole, folder, fileName string) string {
	return s.keys.GenerateKey(role, folder, fileName)
}

func orphanAge(maxAge int) int {
	if maxAge <= 0 {
		return DefaultOrphanMaxAge
	}
	return maxAge
}

// escapePath escapes each segment of p and keeps the slashes
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
