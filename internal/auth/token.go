// Package auth issues and verifies the signed session tokens that
// replace raw role cookies, and hashes account passwords.
//
// A token is base64url(payload).base64url(HMAC-SHA256(payload)) where
// the payload is a small JSON document carrying the subject, role and
// expiry. Anything unsigned, tampered with or expired is rejected, so
// the role claim inside can be trusted by the HTTP layer.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sonara-health/sonara/pkg/store"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 24 * time.Hour

var (
	// ErrInvalidToken is returned for malformed or tampered tokens.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrExpiredToken is returned for well-formed tokens past expiry.
	ErrExpiredToken = errors.New("auth: expired token")
)

// Claims is the verified content of a session token.
type Claims struct {
	Subject string     `json:"sub"`
	Role    store.Role `json:"role"`
	Expiry  int64      `json:"exp"`
}

// TokenSigner issues and verifies session tokens with a shared secret.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// SignerOption customizes a [TokenSigner].
type SignerOption func(*TokenSigner)

// WithTTL overrides [DefaultTokenTTL].
func WithTTL(ttl time.Duration) SignerOption {
	return func(s *TokenSigner) { s.ttl = ttl }
}

// WithSignerClock overrides the time source. Intended for tests.
func WithSignerClock(now func() time.Time) SignerOption {
	return func(s *TokenSigner) { s.now = now }
}

// NewTokenSigner creates a signer keyed with secret. The secret must be
// non-empty; an unsigned token scheme is not an option here.
func NewTokenSigner(secret []byte, opts ...SignerOption) (*TokenSigner, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: empty signing secret")
	}
	s := &TokenSigner{
		secret: secret,
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue returns a signed token for subject with the given role.
func (s *TokenSigner) Issue(subject string, role store.Role) (string, error) {
	claims := Claims{
		Subject: subject,
		Role:    role,
		Expiry:  s.now().Add(s.ttl).Unix(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("auth: marshal claims: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + s.sign(encoded), nil
}

// Verify checks the token's signature and expiry and returns its claims.
func (s *TokenSigner) Verify(token string) (Claims, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(encoded))) {
		return Claims{}, ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if s.now().Unix() >= claims.Expiry {
		return Claims{}, ErrExpiredToken
	}
	return claims, nil
}

func (s *TokenSigner) sign(encoded string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
