package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	memoryrepo "github.com/tendant/simple-upload/pkg/simpleupload/repo/memory"
	repopg "github.com/tendant/simple-upload/pkg/simpleupload/repo/postgres"
	fsstorage "github.com/tendant/simple-upload/pkg/simpleupload/storage/fs"
	memorystorage "github.com/tendant/simple-upload/pkg/simpleupload/storage/memory"
	s3storage "github.com/tendant/simple-upload/pkg/simpleupload/storage/s3"
	"github.com/tendant/simple-upload/pkg/simpleupload/storageworker"
	"github.com/tendant/simple-upload/pkg/simpleupload/token"
)

const defaultWorkerPort = "3000"

// WorkerOption applies configuration to a WorkerConfig instance.
type WorkerOption func(*WorkerConfig) error

// S3Config holds the S3 settings used when STORAGE_URL is s3://
type S3Config struct {
	Endpoint        string `env:"AWS_S3_ENDPOINT"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Region          string `env:"AWS_S3_REGION"`
	UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE"`
	EnableSSE       bool   `env:"AWS_S3_ENABLE_SSE"`
	SSEAlgorithm    string `env:"AWS_S3_SSE_ALGORITHM"`
	SSEKMSKeyID     string `env:"AWS_S3_SSE_KMS_KEY_ID"`
	CreateBucket    bool   `env:"AWS_S3_CREATE_BUCKET"`
}

// WorkerConfig is the resolved configuration of the reference storage worker
type WorkerConfig struct {
	Port          string
	Environment   string
	PublicBaseURL string

	DatabaseURL   string // "memory" or postgres://...
	StorageURL    string // memory://, file:///path or s3://bucket
	MaxUploadSize int64

	S3 S3Config

	JWTKey        string
	BackendJWTKey string

	// Defaulted lists the environment variables that fell back to a
	// development default during LoadWorker.
	Defaulted []string

	logger *slog.Logger
}

// workerEnv is the environment surface of WorkerConfig
type workerEnv struct {
	Port          string `env:"PORT"`
	Environment   string `env:"ENVIRONMENT"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	DatabaseURL   string `env:"DATABASE_URL"`
	StorageURL    string `env:"STORAGE_URL"`
	MaxUploadSize int64  `env:"MAX_UPLOAD_SIZE"`
	JWTKey        string `env:"UPLOAD_JWT_KEY"`
	BackendJWTKey string `env:"UPLOAD_BACKEND_JWT_KEY"`
	S3            S3Config
}

// LoadWorker resolves a WorkerConfig the same way Load resolves a ServerConfig
func LoadWorker(opts ...WorkerOption) (*WorkerConfig, error) {
	cfg := WorkerConfig{logger: slog.Default()}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *WorkerConfig) applyDefaults() {
	if c.Port == "" {
		c.Port = defaultWorkerPort
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDev
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = "memory"
	}
	if c.StorageURL == "" {
		c.StorageURL = "memory://"
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = storageworker.DefaultMaxUploadSize
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
	if c.S3.SSEAlgorithm == "" {
		c.S3.SSEAlgorithm = "AES256"
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "http://localhost:" + c.Port
	}

	c.Defaulted = nil
	if c.JWTKey == "" {
		c.JWTKey = DevJWTKey
		c.Defaulted = append(c.Defaulted, envJWTKey)
	}
	if c.BackendJWTKey == "" {
		c.BackendJWTKey = DevBackendJWTKey
		c.Defaulted = append(c.Defaulted, envBackendJWTKey)
	}
	if len(c.Defaulted) > 0 {
		c.logger.Warn("using development defaults", "vars", strings.Join(c.Defaulted, ","))
	}
}

// Validate validates the worker configuration
func (c *WorkerConfig) Validate() error {
	if c.MaxUploadSize < 0 {
		return errors.New("max upload size must be positive")
	}
	if _, err := parseStorageURL(c.StorageURL); err != nil {
		return err
	}
	if !isMemoryDatabase(c.DatabaseURL) && !isPostgresURL(c.DatabaseURL) {
		return fmt.Errorf("unsupported DATABASE_URL format (use 'memory' or 'postgres://...')")
	}
	if c.Environment == EnvironmentProd && len(c.Defaulted) > 0 {
		return fmt.Errorf("production requires explicit %s", strings.Join(c.Defaulted, ", "))
	}
	return nil
}

// WithWorkerEnv fills settings not already set by an explicit option from the
// environment (PORT, PUBLIC_BASE_URL, DATABASE_URL, STORAGE_URL, AWS_S3_*,
// UPLOAD_JWT_KEY, UPLOAD_BACKEND_JWT_KEY).
func WithWorkerEnv() WorkerOption {
	return func(c *WorkerConfig) error {
		var env workerEnv
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		fillString(&c.Port, env.Port)
		fillString(&c.Environment, env.Environment)
		fillString(&c.PublicBaseURL, env.PublicBaseURL)
		fillString(&c.DatabaseURL, env.DatabaseURL)
		fillString(&c.StorageURL, env.StorageURL)
		fillString(&c.JWTKey, env.JWTKey)
		fillString(&c.BackendJWTKey, env.BackendJWTKey)
		if c.MaxUploadSize == 0 {
			c.MaxUploadSize = env.MaxUploadSize
		}
		if c.S3 == (S3Config{}) {
			c.S3 = env.S3
		}
		return nil
	}
}

// WithWorkerStorage sets STORAGE_URL explicitly
func WithWorkerStorage(storageURL string) WorkerOption {
	return func(c *WorkerConfig) error {
		if _, err := parseStorageURL(storageURL); err != nil {
			return err
		}
		c.StorageURL = storageURL
		return nil
	}
}

// WithWorkerDatabase sets DATABASE_URL explicitly
func WithWorkerDatabase(databaseURL string) WorkerOption {
	return func(c *WorkerConfig) error {
		c.DatabaseURL = databaseURL
		return nil
	}
}

// WithWorkerKeys sets the token verification keys
func WithWorkerKeys(clientKey, backendKey string) WorkerOption {
	return func(c *WorkerConfig) error {
		if clientKey == "" || backendKey == "" {
			return errors.New("jwt keys cannot be empty")
		}
		c.JWTKey = clientKey
		c.BackendJWTKey = backendKey
		return nil
	}
}

// WithWorkerLogger sets the logger handed to built components
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(c *WorkerConfig) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// BuildServer wires storage and repository into a worker server. The
// returned close function releases database connections.
func (c *WorkerConfig) BuildServer(ctx context.Context) (*storageworker.Server, func(), error) {
	store, err := c.buildBlobStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build storage: %w", err)
	}

	repo, closeRepo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}

	server, err := storageworker.New(
		storageworker.WithBlobStore(store),
		storageworker.WithRepository(repo),
		storageworker.WithVerifier(token.NewVerifier(c.JWTKey, c.BackendJWTKey)),
		storageworker.WithPublicBaseURL(c.PublicBaseURL),
		storageworker.WithMaxUploadSize(c.MaxUploadSize),
		storageworker.WithLogger(c.logger),
	)
	if err != nil {
		closeRepo()
		return nil, nil, err
	}
	return server, closeRepo, nil
}

type storageTarget struct {
	kind   string // memory, fs, s3
	path   string
	bucket string
	query  url.Values
}

func parseStorageURL(raw string) (storageTarget, error) {
	if raw == "" || raw == "memory" || raw == "memory://" {
		return storageTarget{kind: "memory"}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return storageTarget{}, fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	switch u.Scheme {
	case "file":
		p := u.Host + u.Path
		if p == "" {
			return storageTarget{}, errors.New("filesystem path cannot be empty in STORAGE_URL")
		}
		return storageTarget{kind: "fs", path: p}, nil
	case "s3":
		if u.Host == "" {
			return storageTarget{}, errors.New("S3 bucket name cannot be empty in STORAGE_URL")
		}
		return storageTarget{kind: "s3", bucket: u.Host, query: u.Query()}, nil
	}
	return storageTarget{}, fmt.Errorf("unsupported STORAGE_URL scheme %q (use 'memory://', 'file://...' or 's3://...')", u.Scheme)
}

func (c *WorkerConfig) buildBlobStore(ctx context.Context) (storageworker.BlobStore, error) {
	target, err := parseStorageURL(c.StorageURL)
	if err != nil {
		return nil, err
	}

	switch target.kind {
	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: target.path})
	case "s3":
		cfg := s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 target.bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			EnableSSE:              c.S3.EnableSSE,
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		}
		if v := target.query.Get("region"); v != "" {
			cfg.Region = v
		}
		if v := target.query.Get("endpoint"); v != "" {
			cfg.Endpoint = v
			cfg.UsePathStyle = true
		}
		return s3storage.New(ctx, cfg)
	default:
		return memorystorage.New(), nil
	}
}

func (c *WorkerConfig) buildRepository(ctx context.Context) (storageworker.Repository, func(), error) {
	if isMemoryDatabase(c.DatabaseURL) {
		return memoryrepo.New(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, c.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("database ping failed: %w", err)
	}

	repo := repopg.NewWithPool(pool)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return repo, pool.Close, nil
}

func isMemoryDatabase(databaseURL string) bool {
	return databaseURL == "" || databaseURL == "memory"
}

func isPostgresURL(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://")
}
