package token

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring an Issuer
type Option func(*Issuer)

// WithClientKey sets the key used for client-facing upload tokens (jwtKey)
func WithClientKey(key string) Option {
	return func(i *Issuer) {
		i.clientKey = []byte(key)
	}
}

// WithBackendKey sets the key used for backend-to-backend tokens (backendJwtKey).
// It must never be exposed to clients.
func WithBackendKey(key string) Option {
	return func(i *Issuer) {
		i.backendKey = []byte(key)
	}
}

// WithClientTTL overrides the default 15 minute client token lifetime.
// Non-positive values keep the default.
func WithClientTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.clientTTL = ttl
		}
	}
}

// WithBackendTTL overrides the default 5 minute backend token lifetime.
// Non-positive values keep the default.
func WithBackendTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.backendTTL = ttl
		}
	}
}

// WithLogger sets the logger used for issuance events
func WithLogger(logger *slog.Logger) Option {
	return func(i *Issuer) {
		i.logger = logger
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}
