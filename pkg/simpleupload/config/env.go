package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	envWorkerURL     = "UPLOAD_WORKER_URL"
	envJWTKey        = "UPLOAD_JWT_KEY"
	envBackendJWTKey = "UPLOAD_BACKEND_JWT_KEY"
	envUserJWTSecret = "UPLOAD_USER_JWT_SECRET"
)

// serverEnv is the environment surface of ServerConfig
type serverEnv struct {
	Port            string        `env:"PORT"`
	Environment     string        `env:"ENVIRONMENT"`
	WorkerBaseURL   string        `env:"UPLOAD_WORKER_URL"`
	FileBaseURL     string        `env:"UPLOAD_FILE_BASE_URL"`
	WorkerTimeout   time.Duration `env:"UPLOAD_WORKER_TIMEOUT"`
	JWTKey          string        `env:"UPLOAD_JWT_KEY"`
	BackendJWTKey   string        `env:"UPLOAD_BACKEND_JWT_KEY"`
	UserJWTSecret   string        `env:"UPLOAD_USER_JWT_SECRET"`
	ClientTokenTTL  time.Duration `env:"UPLOAD_CLIENT_TOKEN_TTL"`
	BackendTokenTTL time.Duration `env:"UPLOAD_BACKEND_TOKEN_TTL"`
	ManagerRoles    []string      `env:"UPLOAD_MANAGER_ROLES" env-separator:","`
}

// WithEnv fills settings not already set by an explicit option from the
// environment:
//
//	PORT, ENVIRONMENT
//	UPLOAD_WORKER_URL        storage worker base URL
//	UPLOAD_FILE_BASE_URL     file URL base accepted on confirm (default: worker URL)
//	UPLOAD_WORKER_TIMEOUT    e.g. "30s"
//	UPLOAD_JWT_KEY           client token signing key
//	UPLOAD_BACKEND_JWT_KEY   backend token signing key
//	UPLOAD_USER_JWT_SECRET   API user token secret
//	UPLOAD_CLIENT_TOKEN_TTL  e.g. "15m"
//	UPLOAD_BACKEND_TOKEN_TTL e.g. "5m"
//	UPLOAD_MANAGER_ROLES     e.g. "ADMIN,TEACHER"
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env serverEnv
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		fillString(&c.Port, env.Port)
		fillString(&c.Environment, env.Environment)
		fillString(&c.WorkerBaseURL, env.WorkerBaseURL)
		fillString(&c.FileBaseURL, env.FileBaseURL)
		fillString(&c.JWTKey, env.JWTKey)
		fillString(&c.BackendJWTKey, env.BackendJWTKey)
		fillString(&c.UserJWTSecret, env.UserJWTSecret)
		fillDuration(&c.WorkerTimeout, env.WorkerTimeout)
		fillDuration(&c.ClientTokenTTL, env.ClientTokenTTL)
		fillDuration(&c.BackendTokenTTL, env.BackendTokenTTL)
		if len(c.ManagerRoles) == 0 {
			c.ManagerRoles = nonEmpty(env.ManagerRoles)
		}
		return nil
	}
}

func fillString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func fillDuration(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}
