package delivery

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestSigner_RoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewSigner("secret", "https://app.example.com/", 0).WithClock(fixedClock(now))

	tok, err := s.Token("org-1", "item-9")
	require.NoError(t, err)

	claims, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "org-1", claims.OrganizationID)
	assert.Equal(t, "item-9", claims.ItemID)
	assert.Equal(t, now.Add(DefaultTokenTTL), claims.ExpiresAt)
}

func TestSigner_RejectsTampering(t *testing.T) {
	s := NewSigner("secret", "https://app.example.com", time.Hour)
	tok, err := s.Token("org-1", "item-9")
	require.NoError(t, err)

	other := NewSigner("other-secret", "https://app.example.com", time.Hour)
	_, err = other.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	forged, _ := s.Token("org-2", "item-9")
	payload, _, _ := strings.Cut(forged, ".")
	_, sig, _ := strings.Cut(tok, ".")
	_, err = s.Verify(payload + "." + sig)
	assert.ErrorIs(t, err, ErrInvalidToken)

	for _, bad := range []string{"", "abc", "abc.", ".abc", "!!!.???"} {
		_, err = s.Verify(bad)
		assert.ErrorIs(t, err, ErrInvalidToken, bad)
	}
}

func TestSigner_Expiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewSigner("secret", "https://app.example.com", time.Hour).WithClock(fixedClock(now))
	tok, err := s.Token("org-1", "item-9")
	require.NoError(t, err)

	s.WithClock(fixedClock(now.Add(2 * time.Hour)))
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestSigner_URL(t *testing.T) {
	s := NewSigner("secret", "https://app.example.com/", time.Hour)
	u, err := s.URL("org-1", "item-9")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://app.example.com/unsubscribe/"))

	_, err = s.URL("", "item-9")
	assert.Error(t, err)
}

func TestAddUnsubscribeFooter(t *testing.T) {
	url := "https://app.example.com/unsubscribe/tok?a=1&b=2"

	withBody := AddUnsubscribeFooter("<html><body><p>Hi</p></BODY></html>", url)
	assert.True(t, strings.HasSuffix(withBody, "</div></BODY></html>"))
	assert.Contains(t, withBody, `href="https://app.example.com/unsubscribe/tok?a=1&amp;b=2"`)

	fragment := AddUnsubscribeFooter("<p>Hi</p>", url)
	assert.True(t, strings.HasPrefix(fragment, "<p>Hi</p><div"))
	assert.Contains(t, fragment, "Unsubscribe</a>")
}

func TestAddress_String(t *testing.T) {
	assert.Equal(t, `"Dana Reyes" <dana@example.com>`, Address{Name: "Dana Reyes", Email: "dana@example.com"}.String())
	assert.Equal(t, "dana@example.com", Address{Email: "dana@example.com"}.String())
}

func TestMessage_Validate(t *testing.T) {
	ok := Message{From: Address{Email: "a@example.com"}, To: "b@example.com", Subject: "Hi", HTML: "<p>x</p>"}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.To = "not-an-address"
	assert.Error(t, bad.Validate())

	bad = ok
	bad.Subject = " "
	assert.Error(t, bad.Validate())
}

type countingLimiter struct{ n int32 }

func (c *countingLimiter) Wait(ctx context.Context) error {
	atomic.AddInt32(&c.n, 1)
	return ctx.Err()
}

func TestThrottled_WaitsBeforeEachSend(t *testing.T) {
	lim := &countingLimiter{}
	var sent int32
	adapter := NewThrottled(AdapterFunc(func(context.Context, Message) (string, error) {
		atomic.AddInt32(&sent, 1)
		return "msg-1", nil
	}), "test", lim, nil)

	for i := 0; i < 3; i++ {
		id, err := adapter.Send(context.Background(), Message{})
		require.NoError(t, err)
		assert.Equal(t, "msg-1", id)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&lim.n))
	assert.Equal(t, int32(3), atomic.LoadInt32(&sent))
}

func TestThrottled_StopsOnCancelledContext(t *testing.T) {
	called := false
	adapter := NewThrottled(AdapterFunc(func(context.Context, Message) (string, error) {
		called = true
		return "", nil
	}), "test", NewRateLimiter(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := adapter.Send(ctx, Message{})
	assert.Error(t, err)
	assert.False(t, called)
}
