package security

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService signs timesheet paths with HMAC-SHA256. A token is the hex
// digest of the path keyed by the server secret, so anyone holding the link can
// approve that timesheet.
type TokenService struct {
	secret []byte
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// Sign returns the lowercase hex HMAC-SHA256 digest of id.
func (s *TokenService) Sign(id string) (string, error) {
	sig, err := jwt.SigningMethodHS256.Sign(id, s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s: %w", id, err)
	}
	return hex.EncodeToString(sig), nil
}

// Verify reports whether token is the signature of id. The comparison is constant-time.
func (s *TokenService) Verify(id string, token string) bool {
	if id == "" || token == "" {
		return false
	}
	// uppercase hex decodes to the same bytes, but the token must match exactly
	if strings.ToLower(token) != token {
		return false
	}
	sig, err := hex.DecodeString(token)
	if err != nil {
		return false
	}
	return jwt.SigningMethodHS256.Verify(id, sig, s.secret) == nil
}

// SignedURL builds `<siteURL>/<path>?signed_token=<token>`.
func (s *TokenService) SignedURL(siteURL string, path string) (string, error) {
	token, err := s.Sign(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s?signed_token=%s",
		strings.TrimRight(siteURL, "/"), url.PathEscape(path), token), nil
}
