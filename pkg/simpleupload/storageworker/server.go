package storageworker

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tendant/simple-upload/pkg/simpleupload/fileurl"
	"github.com/tendant/simple-upload/pkg/simpleupload/objectkey"
	"github.com/tendant/simple-upload/pkg/simpleupload/token"
)

const (
	// DefaultMaxUploadSize bounds a single upload body (100 MiB)
	DefaultMaxUploadSize = 100 << 20

	// DefaultOrphanMaxAge is used when a request carries no maxAge (hours)
	DefaultOrphanMaxAge = 24
)

// TokenVerifier checks client and backend tokens. *token.Verifier satisfies it.
type TokenVerifier interface {
	Verify(tokenString string, aud token.Audience) (jwt.MapClaims, error)
}

// Server serves the storage worker HTTP API
type Server struct {
	store         BlobStore
	repo          Repository
	verifier      TokenVerifier
	keys          *objectkey.Generator
	urls          *fileurl.Validator
	logger        *slog.Logger
	now           func() time.Time
	maxUploadSize int64
	router        http.Handler
}

// Option represents a functional option for configuring the server
type Option func(*Server)

func WithBlobStore(store BlobStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

func WithRepository(repo Repository) Option {
	return func(s *Server) {
		s.repo = repo
	}
}

func WithVerifier(v TokenVerifier) Option {
	return func(s *Server) {
		s.verifier = v
	}
}

func WithKeyGenerator(g *objectkey.Generator) Option {
	return func(s *Server) {
		s.keys = g
	}
}

// WithPublicBaseURL sets the base URL used to build file URLs in responses
func WithPublicBaseURL(baseURL string) Option {
	return func(s *Server) {
		s.urls = fileurl.New(strings.TrimRight(baseURL, "/"))
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func WithMaxUploadSize(n int64) Option {
	return func(s *Server) {
		s.maxUploadSize = n
	}
}

// New creates a storage worker server
func New(opts ...Option) (*Server, error) {
	s := &Server{
		keys:          objectkey.NewGenerator(),
		logger:        slog.Default(),
		now:           time.Now,
		maxUploadSize: DefaultMaxUploadSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		return nil, errors.New("blob store is required")
	}
	if s.repo == nil {
		return nil, errors.New("repository is required")
	}
	if s.verifier == nil {
		return nil, errors.New("token verifier is required")
	}
	if s.urls == nil || s.urls.BaseURL() == "" {
		return nil, errors.New("public base URL is required")
	}

	s.router = s.Routes()
	return s, nil
}

// Routes returns the worker router
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Put("/upload/*", s.Upload)

	r.Route("/files", func(r chi.Router) {
		r.Post("/", s.CreateFile)
		r.Post("/batch-delete", s.BatchDelete)
		r.Post("/copy", s.CopyFile)
		r.Get("/orphans", s.ListOrphans)
		r.Delete("/cleanup-orphans", s.CleanupOrphans)
		r.Get("/info/*", s.GetInfo)
		r.Post("/{key}/confirm", s.ConfirmFile)
		r.Get("/*", s.ServeFile)
		r.Put("/*", s.UpdateFile)
		r.Delete("/*", s.DeleteFile)
	})

	return r
}

// ServeHTTP makes the server usable as an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
