package httpretry

import (
	"net/http"
)

type roundTripDoer struct{ rt http.RoundTripper }

func (d roundTripDoer) Do(req *http.Request) (*http.Response, error) { return d.rt.RoundTrip(req) }

// Transport is an http.RoundTripper that retries like RetryClient. It lets
// SDKs that only accept an *http.Client retry transient failures.
type Transport struct {
	rc *RetryClient
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(base http.RoundTripper, maxRetries int, b Backoff) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{rc: NewRetryClient(roundTripDoer{base}, maxRetries).WithBackoff(b)}
}

// RoundTrip implements http.RoundTripper. The caller's request is not
// modified; retries run on a clone.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.rc.Do(req.Clone(req.Context()))
}
