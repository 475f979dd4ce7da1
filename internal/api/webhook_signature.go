package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/outreach-pipeline/internal/pkg/httputil"
	"github.com/ignite/outreach-pipeline/internal/pkg/logger"
)

// Signature headers set by Resend (Svix) on webhook deliveries.
const (
	HeaderWebhookID        = "svix-id"
	HeaderWebhookTimestamp = "svix-timestamp"
	HeaderWebhookSignature = "svix-signature"
)

// DefaultWebhookTolerance bounds the age of an accepted delivery.
const DefaultWebhookTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("webhook signature headers missing")
	ErrStaleSignature   = errors.New("webhook timestamp outside tolerance")
	ErrBadSignature     = errors.New("webhook signature mismatch")
)

// WebhookVerifier checks the HMAC-SHA256 signature over "id.timestamp.body".
type WebhookVerifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookVerifier decodes a "whsec_" prefixed base64 signing secret.
func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return nil, fmt.Errorf("decode webhook secret: %w", err)
	}
	if len(key) == 0 {
		return nil, errors.New("webhook secret is empty")
	}
	return &WebhookVerifier{key: key, tolerance: DefaultWebhookTolerance, now: time.Now}, nil
}

// WithClock replaces time.Now, for tests.
func (v *WebhookVerifier) WithClock(now func() time.Time) *WebhookVerifier {
	v.now = now
	return v
}

// Sign returns the "v1,<base64>" signature for a delivery.
func (v *WebhookVerifier) Sign(id string, ts time.Time, body []byte) string {
	mac := hmac.New(sha256.New, v.key)
	fmt.Fprintf(mac, "%s.%d.", id, ts.Unix())
	mac.Write(body)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify accepts the delivery if any v1 signature in the header matches.
func (v *WebhookVerifier) Verify(h http.Header, body []byte) error {
	id, tsRaw, sigs := h.Get(HeaderWebhookID), h.Get(HeaderWebhookTimestamp), h.Get(HeaderWebhookSignature)
	if id == "" || tsRaw == "" || sigs == "" {
		return ErrMissingSignature
	}
	secs, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrMissingSignature)
	}
	ts := time.Unix(secs, 0)
	if d := v.now().Sub(ts); d > v.tolerance || d < -v.tolerance {
		return ErrStaleSignature
	}

	want := []byte(v.Sign(id, ts, body))
	for _, sig := range strings.Fields(sigs) {
		if hmac.Equal([]byte(sig), want) {
			return nil
		}
	}
	return ErrBadSignature
}

// Middleware rejects unsigned or mis-signed deliveries with 401 and hands
// the buffered body to next.
func (v *WebhookVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			httputil.BadRequest(w, "unreadable body")
			return
		}
		if err := v.Verify(r.Header, body); err != nil {
			logger.Warn("webhook: rejected delivery", "error", err.Error(), "remote", r.RemoteAddr)
			httputil.Unauthorized(w, "invalid webhook signature")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}
