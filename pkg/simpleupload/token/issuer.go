// Package token mints the short-lived HS256 tokens that authorize operations
// against the storage worker.
//
// Two keys partition trust: client tokens (jwtKey) end up in upload URLs and
// browser history, backend tokens (backendJwtKey) always carry role=backend and
// are required for privileged operations such as delete or orphan cleanup.
package token

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultClientTTL  = 15 * time.Minute
	DefaultBackendTTL = 5 * time.Minute
)

// Audience selects the signing key and claim rules.
type Audience string

const (
	AudienceClient  Audience = "client"
	AudienceBackend Audience = "backend"
)

// Issuer signs tokens. It holds no mutable state after construction and is
// safe for concurrent use.
type Issuer struct {
	clientKey  []byte
	backendKey []byte
	clientTTL  time.Duration
	backendTTL time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a new Issuer with the given options
func New(opts ...Option) *Issuer {
	i := &Issuer{
		clientTTL:  DefaultClientTTL,
		backendTTL: DefaultBackendTTL,
		logger:     slog.Default(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// ClientTTL returns the lifetime applied when IssueClientToken gets ttl == 0
func (i *Issuer) ClientTTL() time.Duration {
	return i.clientTTL
}

// IssueClientToken signs claims with the client key. A zero ttl uses the
// configured client lifetime (15 minutes by default); a negative one is an error.
func (i *Issuer) IssueClientToken(claims Claims, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = i.clientTTL
	}
	if len(i.clientKey) == 0 {
		i.logger.Error("client token requested without signing key", "key_set", false)
		return "", &ConfigurationError{Key: "jwtKey"}
	}
	return i.sign(AudienceClient, i.clientKey, claims, ttl, nil)
}

// IssueBackendToken signs claims with the backend key and forces role=backend,
// overriding any role the caller supplied. A zero ttl uses the configured
// backend lifetime (5 minutes by default).
func (i *Issuer) IssueBackendToken(claims Claims, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = i.backendTTL
	}
	if len(i.backendKey) == 0 {
		i.logger.Error("backend token requested without signing key", "key_set", false)
		return "", &ConfigurationError{Key: "backendJwtKey"}
	}
	return i.sign(AudienceBackend, i.backendKey, claims, ttl, map[string]any{ClaimRole: RoleBackend})
}

func (i *Issuer) sign(aud Audience, key []byte, claims Claims, ttl time.Duration, forced map[string]any) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}
	if claims == nil {
		claims = Fields{}
	}
	if err := claims.Validate(); err != nil {
		return "", err
	}

	mapClaims := jwt.MapClaims{}
	for k, v := range claims.Fields() {
		mapClaims[k] = v
	}
	for k, v := range forced {
		mapClaims[k] = v
	}

	now := i.now()
	mapClaims[ClaimIssuedAt] = now.Unix()
	mapClaims[ClaimExpiresAt] = now.Add(ttl).Unix()

	i.logger.Debug("issuing token",
		"audience", aud,
		"action", mapClaims[ClaimAction],
		"ttl_seconds", int64(ttl/time.Second),
		"key_set", true,
		"key_length", len(key),
	)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims).SignedString(key)
	if err != nil {
		i.logger.Error("failed to sign token", "audience", aud, "err", err)
		return "", fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	if signed == "" {
		return "", ErrSigningFailed
	}

	return signed, nil
}
