package delivery

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Token errors.
var (
	ErrInvalidToken = errors.New("invalid unsubscribe token")
	ErrExpiredToken = errors.New("unsubscribe token expired")
)

// DefaultTokenTTL is how long an unsubscribe link stays valid.
const DefaultTokenTTL = 365 * 24 * time.Hour

// Claims are the values bound into an unsubscribe token.
type Claims struct {
	OrganizationID string
	ItemID         string
	ExpiresAt      time.Time
}

// Signer issues and verifies unsubscribe tokens. A token is
// base64url(org|item|expiry) "." base64url(HMAC-SHA256 of the payload).
type Signer struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

// NewSigner creates a signer. ttl <= 0 selects DefaultTokenTTL.
func NewSigner(secret, baseURL string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Signer{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces time.Now, for tests.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Token signs (orgID, itemID) with the configured lifetime.
func (s *Signer) Token(orgID, itemID string) (string, error) {
	if orgID == "" || itemID == "" {
		return "", errors.New("organization and item are required")
	}
	if strings.Contains(orgID, "|") || strings.Contains(itemID, "|") {
		return "", errors.New("identifiers must not contain '|'")
	}
	exp := s.now().Add(s.ttl).Unix()
	payload := orgID + "|" + itemID + "|" + strconv.FormatInt(exp, 10)
	enc := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return enc + "." + s.sign(enc), nil
}

// Verify checks the signature and expiry and returns the bound claims.
func (s *Signer) Verify(token string) (*Claims, error) {
	enc, sig, ok := strings.Cut(token, ".")
	if !ok || enc == "" || sig == "" {
		return nil, ErrInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(enc))) {
		return nil, ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return nil, ErrInvalidToken
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return nil, ErrInvalidToken
	}
	exp, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims := &Claims{OrganizationID: parts[0], ItemID: parts[1], ExpiresAt: time.Unix(exp, 0).UTC()}
	if !s.now().Before(claims.ExpiresAt) {
		return nil, ErrExpiredToken
	}
	return claims, nil
}

// URL returns the public unsubscribe link for an item.
func (s *Signer) URL(orgID, itemID string) (string, error) {
	tok, err := s.Token(orgID, itemID)
	if err != nil {
		return "", fmt.Errorf("sign unsubscribe token: %w", err)
	}
	return s.baseURL + "/unsubscribe/" + tok, nil
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
