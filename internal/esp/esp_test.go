package esp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/resend/resend-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/outreach-pipeline/internal/config"
	"github.com/ignite/outreach-pipeline/internal/pkg/httpretry"
	"github.com/ignite/outreach-pipeline/internal/service/delivery"
)

type fakeSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-123")}, nil
}

func testMessage() delivery.Message {
	return delivery.Message{
		From:    delivery.Address{Name: "Ann", Email: "ann@acme.io"},
		To:      "bo@example.com",
		Subject: "Hello",
		HTML:    "<p>Hi</p>",
		Tags:    map[string]string{"organization": "org1", "campaign": "c1"},
	}
}

func TestSES_Send(t *testing.T) {
	client := &fakeSES{}
	id, err := NewSES(client).Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, "ses-123", id)

	assert.Equal(t, `"Ann" <ann@acme.io>`, aws.ToString(client.in.FromEmailAddress))
	assert.Equal(t, []string{"bo@example.com"}, client.in.Destination.ToAddresses)
	assert.Equal(t, "<p>Hi</p>", aws.ToString(client.in.Content.Simple.Body.Html.Data))
	require.Len(t, client.in.EmailTags, 2)
	assert.Equal(t, "campaign", aws.ToString(client.in.EmailTags[0].Name))
	assert.Equal(t, "c1", aws.ToString(client.in.EmailTags[0].Value))
}

func TestSES_SendRejected(t *testing.T) {
	client := &fakeSES{err: errors.New("MessageRejected")}
	_, err := NewSES(client).Send(context.Background(), testMessage())
	assert.ErrorIs(t, err, delivery.ErrRejected)
}

func newTestResend(t *testing.T, h http.HandlerFunc) *Resend {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client := resend.NewCustomClient(srv.Client(), "re_test")
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base
	return NewResendWithClient(client)
}

func TestResend_Send(t *testing.T) {
	var got map[string]interface{}
	r := newTestResend(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/emails", req.URL.Path)
		assert.Equal(t, "Bearer re_test", req.Header.Get("Authorization"))
		body, _ := io.ReadAll(req.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"re-456"}`))
	})

	id, err := r.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, "re-456", id)
	assert.Equal(t, "Hello", got["subject"])
	assert.Equal(t, []interface{}{"bo@example.com"}, got["to"])
}

func TestResend_SendRejected(t *testing.T) {
	r := newTestResend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"Invalid to"}`))
	})

	_, err := r.Send(context.Background(), testMessage())
	assert.ErrorIs(t, err, delivery.ErrRejected)
}

func newRetryingResend(t *testing.T, h http.HandlerFunc) *Resend {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	hc := resendHTTPClient(srv.Client().Transport, httpretry.Backoff{Base: time.Millisecond, Max: 2 * time.Millisecond})
	client := resend.NewCustomClient(hc, "re_test")
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base
	return NewResendWithClient(client)
}

func TestResend_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	r := newRetryingResend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"statusCode":503,"name":"internal_server_error","message":"try again"}`))
			return
		}
		w.Write([]byte(`{"id":"re-789"}`))
	})

	id, err := r.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, "re-789", id)
	assert.EqualValues(t, 3, calls.Load())
}

func TestResend_RetriesAreBounded(t *testing.T) {
	var calls atomic.Int32
	r := newRetryingResend(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"statusCode":502,"name":"internal_server_error","message":"bad gateway"}`))
	})

	_, err := r.Send(context.Background(), testMessage())
	assert.ErrorIs(t, err, delivery.ErrRejected)
	assert.EqualValues(t, resendRetries+1, calls.Load())
}

func TestResend_ValidationErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	r := newRetryingResend(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"Invalid to"}`))
	})

	_, err := r.Send(context.Background(), testMessage())
	assert.ErrorIs(t, err, delivery.ErrRejected)
	assert.EqualValues(t, 1, calls.Load())
}

func TestNew_RequiresResendKey(t *testing.T) {
	_, err := New(context.Background(), config.ESPConfig{Provider: "resend"})
	assert.Error(t, err)

	_, err = New(context.Background(), config.ESPConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}
