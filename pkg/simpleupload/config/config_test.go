package config

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/api"
	"github.com/tendant/simple-upload/pkg/simpleupload/token"
)

// clearEnv blanks the string variables a developer machine may export
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "ENVIRONMENT",
		envWorkerURL, "UPLOAD_FILE_BASE_URL", envJWTKey, envBackendJWTKey, envUserJWTSecret,
		"PUBLIC_BASE_URL", "DATABASE_URL", "STORAGE_URL", "UPLOAD_MANAGER_ROLES",
	} {
		t.Setenv(k, "")
	}
}

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	logger, logs := captureLogger()

	cfg, err := Load(WithLogger(logger), WithEnv())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, EnvironmentDev, cfg.Environment)
	assert.Equal(t, DevWorkerBaseURL, cfg.WorkerBaseURL)
	assert.Equal(t, DevWorkerBaseURL, cfg.FileBaseURL)
	assert.Equal(t, DevJWTKey, cfg.JWTKey)
	assert.Equal(t, DevBackendJWTKey, cfg.BackendJWTKey)
	assert.Equal(t, token.DefaultClientTTL, cfg.ClientTokenTTL)
	assert.Equal(t, token.DefaultBackendTTL, cfg.BackendTokenTTL)
	assert.Equal(t, api.DefaultManagerRoles, cfg.ManagerRoles)
	assert.ElementsMatch(t, []string{envWorkerURL, envJWTKey, envBackendJWTKey, envUserJWTSecret}, cfg.Defaulted)

	// one warning at startup, naming variables but never values
	assert.Equal(t, 1, strings.Count(logs.String(), "using development defaults"))
	assert.Contains(t, logs.String(), envJWTKey)
	assert.NotContains(t, logs.String(), DevJWTKey)
}

func TestLoadFallbackChain(t *testing.T) {
	clearEnv(t)
	t.Setenv(envWorkerURL, "https://worker.env.example")
	t.Setenv(envJWTKey, "env-client-key")
	t.Setenv(envBackendJWTKey, "env-backend-key")
	t.Setenv("UPLOAD_CLIENT_TOKEN_TTL", "30m")

	t.Run("environment beats defaults", func(t *testing.T) {
		cfg, err := Load(WithEnv())
		require.NoError(t, err)
		assert.Equal(t, "https://worker.env.example", cfg.WorkerBaseURL)
		assert.Equal(t, "env-client-key", cfg.JWTKey)
		assert.Equal(t, 30*time.Minute, cfg.ClientTokenTTL)
		assert.Equal(t, []string{envUserJWTSecret}, cfg.Defaulted)
	})

	t.Run("explicit option beats environment in any order", func(t *testing.T) {
		for _, opts := range [][]Option{
			{WithWorkerBaseURL("https://explicit.example"), WithEnv()},
			{WithEnv(), WithWorkerBaseURL("https://explicit.example")},
		} {
			cfg, err := Load(opts...)
			require.NoError(t, err)
			assert.Equal(t, "https://explicit.example", cfg.WorkerBaseURL)
			assert.Equal(t, "env-client-key", cfg.JWTKey)
		}
	})

	t.Run("environment ignored without WithEnv", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, DevWorkerBaseURL, cfg.WorkerBaseURL)
	})
}

func TestProductionRefusesDevDefaults(t *testing.T) {
	clearEnv(t)

	_, err := Load(WithEnvironment(EnvironmentProd))
	require.Error(t, err)
	assert.Contains(t, err.Error(), envJWTKey)

	cfg, err := Load(
		WithEnvironment(EnvironmentProd),
		WithWorkerBaseURL("https://worker.example"),
		WithJWTKeys("k1", "k2"),
		WithUserJWTSecret("s"),
	)
	require.NoError(t, err)
	assert.Empty(t, cfg.Defaulted)
}

func TestOptionsRejectInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"empty port", WithPort("")},
		{"empty environment", WithEnvironment("")},
		{"empty worker url", WithWorkerBaseURL("")},
		{"empty keys", WithJWTKeys("", "x")},
		{"empty user secret", WithUserJWTSecret("")},
		{"zero ttl", WithTokenTTLs(0, time.Minute)},
		{"negative timeout", WithWorkerTimeout(-time.Second)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestBuildService(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(
		WithWorkerBaseURL("https://worker.example"),
		WithJWTKeys("client", "backend"),
		WithTokenTTLs(30*time.Minute, time.Minute),
	)
	require.NoError(t, err)

	svc, err := cfg.BuildService()
	require.NoError(t, err)

	resp, err := svc.PresignUpload(context.Background(), simpleupload.PresignRequest{FileName: "a.png"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.UploadURL, "https://worker.example/upload/a.png?token="))
	assert.Equal(t, 1800, resp.ExpiresIn)

	key, err := svc.ValidateAndExtractKey("https://worker.example/files/public/uploads/a.png")
	require.NoError(t, err)
	assert.Equal(t, "public/uploads/a.png", key)

	tok := strings.TrimPrefix(resp.UploadURL, "https://worker.example/upload/a.png?token=")
	claims, err := token.NewVerifier("client", "backend").Verify(tok, token.AudienceClient)
	require.NoError(t, err)
	assert.Equal(t, "a.png", claims[token.ClaimFileKey])
}

func TestLoadManagerRoles(t *testing.T) {
	clearEnv(t)
	t.Setenv("UPLOAD_MANAGER_ROLES", "ops, ADMIN,")

	cfg, err := Load(WithEnv())
	require.NoError(t, err)
	assert.Equal(t, []string{"ops", "ADMIN"}, cfg.ManagerRoles)

	cfg, err = Load(WithManagerRoles("TEACHER"), WithEnv())
	require.NoError(t, err)
	assert.Equal(t, []string{"TEACHER"}, cfg.ManagerRoles)
}
