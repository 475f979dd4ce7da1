package esp

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/resend/resend-go/v3"

	"github.com/ignite/outreach-pipeline/internal/pkg/httpretry"
	"github.com/ignite/outreach-pipeline/internal/service/delivery"
)

// Transient Resend failures (429 and 5xx) are retried this many times
// before the item is failed.
const resendRetries = 2

var resendBackoff = httpretry.Backoff{Base: 500 * time.Millisecond, Max: 4 * time.Second, Jitter: true}

// Resend sends through the Resend API.
type Resend struct {
	client *resend.Client
}

// NewResend creates a Resend adapter for apiKey.
func NewResend(apiKey string) *Resend {
	return NewResendWithClient(resend.NewCustomClient(resendHTTPClient(nil, resendBackoff), apiKey))
}

// resendHTTPClient retries transient responses below the SDK. Client
// errors such as 422 validation failures are returned on the first try.
func resendHTTPClient(base http.RoundTripper, b httpretry.Backoff) *http.Client {
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: httpretry.NewTransport(base, resendRetries, b),
	}
}

// NewResendWithClient wraps a configured client.
func NewResendWithClient(client *resend.Client) *Resend {
	return &Resend{client: client}
}

// Send implements delivery.Adapter.
func (r *Resend) Send(ctx context.Context, msg delivery.Message) (string, error) {
	req := &resend.SendEmailRequest{
		From:    msg.From.String(),
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Tags:    resendTags(msg.Tags),
	}
	resp, err := r.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: resend: %v", delivery.ErrRejected, err)
	}
	return resp.Id, nil
}

func resendTags(tags map[string]string) []resend.Tag {
	if len(tags) == 0 {
		return nil
	}
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]resend.Tag, 0, len(names))
	for _, k := range names {
		out = append(out, resend.Tag{Name: k, Value: tags[k]})
	}
	return out
}
