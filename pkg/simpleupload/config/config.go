// Package config resolves process configuration for the upload server and the
// reference storage worker. Every setting follows the same chain: explicit
// option, then environment, then a development default. Components receive
// the resolved struct and never read the environment themselves.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/api"
	"github.com/tendant/simple-upload/pkg/simpleupload/fileurl"
	"github.com/tendant/simple-upload/pkg/simpleupload/token"
	"github.com/tendant/simple-upload/pkg/simpleupload/worker"
)

// Development defaults. Production refuses to start with any of them.
const (
	DevWorkerBaseURL  = "http://localhost:3000"
	DevJWTKey         = "dev-upload-jwt-key"
	DevBackendJWTKey  = "dev-upload-backend-jwt-key"
	DevUserJWTSecret  = "dev-user-jwt-secret"
	EnvironmentProd   = "production"
	EnvironmentDev    = "development"
	defaultServerPort = "8080"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// ServerConfig is the resolved configuration of the upload API server
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Worker connection
	WorkerBaseURL string
	FileBaseURL   string // base of file URLs accepted on confirm; defaults to WorkerBaseURL
	WorkerTimeout time.Duration

	// Signing keys
	JWTKey        string
	BackendJWTKey string
	UserJWTSecret string

	ClientTokenTTL  time.Duration
	BackendTokenTTL time.Duration

	// User roles allowed on the API's file management routes
	ManagerRoles []string

	// Defaulted lists the environment variables that fell back to a
	// development default during Load.
	Defaulted []string

	logger *slog.Logger
}

// Load constructs a ServerConfig by applying the supplied options, then
// development defaults for anything still unset.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := ServerConfig{logger: slog.Default()}

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

func (c *ServerConfig) applyDefaults() {
	if c.Port == "" {
		c.Port = defaultServerPort
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDev
	}
	if c.ClientTokenTTL == 0 {
		c.ClientTokenTTL = token.DefaultClientTTL
	}
	if c.BackendTokenTTL == 0 {
		c.BackendTokenTTL = token.DefaultBackendTTL
	}
	if c.WorkerTimeout == 0 {
		c.WorkerTimeout = worker.DefaultTimeout
	}
	if len(c.ManagerRoles) == 0 {
		c.ManagerRoles = api.DefaultManagerRoles
	}

	c.Defaulted = nil
	fill := func(field *string, env, value string) {
		if *field == "" {
			*field = value
			c.Defaulted = append(c.Defaulted, env)
		}
	}
	fill(&c.WorkerBaseURL, envWorkerURL, DevWorkerBaseURL)
	fill(&c.JWTKey, envJWTKey, DevJWTKey)
	fill(&c.BackendJWTKey, envBackendJWTKey, DevBackendJWTKey)
	fill(&c.UserJWTSecret, envUserJWTSecret, DevUserJWTSecret)

	if c.FileBaseURL == "" {
		c.FileBaseURL = c.WorkerBaseURL
	}

	if len(c.Defaulted) > 0 {
		c.logger.Warn("using development defaults", "vars", strings.Join(c.Defaulted, ","))
	}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.ClientTokenTTL < 0 || c.BackendTokenTTL < 0 {
		return errors.New("token ttl must be positive")
	}
	if c.WorkerTimeout < 0 {
		return errors.New("worker timeout must be positive")
	}
	if c.Environment == EnvironmentProd && len(c.Defaulted) > 0 {
		return fmt.Errorf("production requires explicit %s", strings.Join(c.Defaulted, ", "))
	}
	return nil
}

// BuildIssuer creates the token issuer for the configured keys
func (c *ServerConfig) BuildIssuer() *token.Issuer {
	return token.New(
		token.WithClientKey(c.JWTKey),
		token.WithBackendKey(c.BackendJWTKey),
		token.WithClientTTL(c.ClientTokenTTL),
		token.WithBackendTTL(c.BackendTokenTTL),
		token.WithLogger(c.logger),
	)
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService() (simpleupload.Service, error) {
	issuer := c.BuildIssuer()
	client := worker.NewClient(c.WorkerBaseURL, issuer,
		worker.WithTimeout(c.WorkerTimeout),
		worker.WithLogger(c.logger),
	)

	return simpleupload.New(
		simpleupload.WithTokenIssuer(issuer),
		simpleupload.WithWorker(client),
		simpleupload.WithWorkerBaseURL(c.WorkerBaseURL),
		simpleupload.WithFileURLValidator(fileurl.New(c.FileBaseURL)),
		simpleupload.WithLogger(c.logger),
	)
}
