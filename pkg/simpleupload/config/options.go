package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return errors.New("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return errors.New("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithWorkerBaseURL sets the storage worker base URL
func WithWorkerBaseURL(baseURL string) Option {
	return func(c *ServerConfig) error {
		if baseURL == "" {
			return errors.New("worker base URL cannot be empty")
		}
		c.WorkerBaseURL = baseURL
		return nil
	}
}

// WithFileBaseURL sets the base of file URLs accepted on confirm
func WithFileBaseURL(baseURL string) Option {
	return func(c *ServerConfig) error {
		c.FileBaseURL = baseURL
		return nil
	}
}

// WithJWTKeys sets the client and backend signing keys
func WithJWTKeys(clientKey, backendKey string) Option {
	return func(c *ServerConfig) error {
		if clientKey == "" || backendKey == "" {
			return errors.New("jwt keys cannot be empty")
		}
		c.JWTKey = clientKey
		c.BackendJWTKey = backendKey
		return nil
	}
}

// WithUserJWTSecret sets the secret used to verify API user tokens
func WithUserJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		if secret == "" {
			return errors.New("user jwt secret cannot be empty")
		}
		c.UserJWTSecret = secret
		return nil
	}
}

// WithTokenTTLs sets client and backend token lifetimes
func WithTokenTTLs(client, backend time.Duration) Option {
	return func(c *ServerConfig) error {
		if client <= 0 || backend <= 0 {
			return fmt.Errorf("token ttls must be positive, got %s and %s", client, backend)
		}
		c.ClientTokenTTL = client
		c.BackendTokenTTL = backend
		return nil
	}
}

// WithWorkerTimeout bounds every call to the worker
func WithWorkerTimeout(timeout time.Duration) Option {
	return func(c *ServerConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("worker timeout must be positive, got %s", timeout)
		}
		c.WorkerTimeout = timeout
		return nil
	}
}

// WithLogger sets the logger handed to built components
func WithLogger(logger *slog.Logger) Option {
	return func(c *ServerConfig) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithManagerRoles sets the user roles allowed on file management routes
func WithManagerRoles(roles ...string) Option {
	return func(c *ServerConfig) error {
		c.ManagerRoles = roles
		return nil
	}
}
