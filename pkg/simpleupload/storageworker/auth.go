package storageworker

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tendant/simple-upload/pkg/simpleupload/token"
)

var (
	errMissingToken   = errors.New("missing token")
	errActionMismatch = errors.New("token does not authorize this action")
	errClaimMismatch  = errors.New("token does not match request")
)

// backendClaims verifies the bearer token and its action claim
func (s *Server) backendClaims(r *http.Request, action token.Action) (jwt.MapClaims, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, errMissingToken
	}

	claims, err := s.verifier.Verify(raw, token.AudienceBackend)
	if err != nil {
		return nil, err
	}
	if claimString(claims, token.ClaimAction) != string(action) {
		return nil, errActionMismatch
	}
	return claims, nil
}

// clientClaims verifies the ?token= client token
func (s *Server) clientClaims(r *http.Request) (jwt.MapClaims, error) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		return nil, errMissingToken
	}
	return s.verifier.Verify(raw, token.AudienceClient)
}

// authStatus maps an authorization failure to its HTTP status
func authStatus(err error) int {
	if errors.Is(err, errActionMismatch) || errors.Is(err, errClaimMismatch) || errors.Is(err, token.ErrWrongAudience) {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}

func claimString(claims jwt.MapClaims, name string) string {
	v, _ := claims[name].(string)
	return v
}

func claimInt(claims jwt.MapClaims, name string) (int, bool) {
	switch v := claims[name].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func claimStrings(claims jwt.MapClaims, name string) []string {
	raw, _ := claims[name].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
