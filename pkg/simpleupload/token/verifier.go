package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks tokens minted by an Issuer. The storage worker is the
// production verifier; this one backs the reference worker and tests.
type Verifier struct {
	clientKey  []byte
	backendKey []byte
}

func NewVerifier(clientKey, backendKey string) *Verifier {
	return &Verifier{
		clientKey:  []byte(clientKey),
		backendKey: []byte(backendKey),
	}
}

// Verify validates signature and expiry and returns the claims. Backend tokens
// must carry role=backend.
func (v *Verifier) Verify(tokenString string, aud Audience) (jwt.MapClaims, error) {
	key := v.clientKey
	if aud == AudienceBackend {
		key = v.backendKey
	}
	if len(key) == 0 {
		return nil, ErrMissingSigningKey
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if aud == AudienceBackend {
		if role, _ := claims[ClaimRole].(string); role != RoleBackend {
			return nil, ErrWrongAudience
		}
	}

	return claims, nil
}

// IsAuthError returns true if err is a token validation failure
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrWrongAudience)
}
