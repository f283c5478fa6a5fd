package token

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSigningKey is returned when a token is requested for a tier whose key is empty
	ErrMissingSigningKey = errors.New("token: signing key not configured")

	// ErrInvalidClaims is returned when a claim set fails validation before signing
	ErrInvalidClaims = errors.New("token: invalid claims")

	// ErrInvalidTTL is returned for a negative token lifetime
	ErrInvalidTTL = errors.New("token: ttl must be positive")

	// ErrSigningFailed wraps any failure of the underlying signer
	ErrSigningFailed = errors.New("token: signing failed")

	// ErrInvalidToken is returned by the Verifier for bad signatures, wrong algorithms or expired tokens
	ErrInvalidToken = errors.New("token: invalid token")

	// ErrWrongAudience is returned when a backend token lacks role=backend
	ErrWrongAudience = errors.New("token: wrong audience")
)

// ConfigurationError reports a missing signing key. Key names the configuration
// entry ("jwtKey" or "backendJwtKey"), never its value.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("token: %s is not configured", e.Key)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrMissingSigningKey
}
