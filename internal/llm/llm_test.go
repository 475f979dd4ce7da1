package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/outreach-pipeline/internal/config"
	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/service/content"
)

type fakeInvoker struct {
	in   *bedrockruntime.InvokeModelInput
	body string
	err  error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestBedrock_Complete(t *testing.T) {
	inv := &fakeInvoker{body: `{"content":[{"type":"text","text":"SUBJECT: Hi\n"},{"type":"text","text":"BODY: there"}],"stop_reason":"end_turn"}`}
	m := NewBedrock(inv, "anthropic.claude-3-haiku")

	out, err := m.Complete(context.Background(), content.Prompt{System: "sys", User: "write", Temperature: 0.7, MaxTokens: 500})
	require.NoError(t, err)
	assert.Equal(t, "SUBJECT: Hi\nBODY: there", out)

	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(inv.in.ModelId))
	var req bedrockRequest
	require.NoError(t, json.Unmarshal(inv.in.Body, &req))
	assert.Equal(t, anthropicVersion, req.AnthropicVersion)
	assert.Equal(t, "sys", req.System)
	assert.Equal(t, 500, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "write", req.Messages[0].Content[0].Text)
}

func TestBedrock_AccessDeniedIsUnauthorized(t *testing.T) {
	for _, code := range []string{"AccessDeniedException", "UnrecognizedClientException"} {
		inv := &fakeInvoker{err: &smithy.GenericAPIError{Code: code, Message: "no"}}
		_, err := NewBedrock(inv, "m").Complete(context.Background(), content.Prompt{User: "x"})
		assert.ErrorIs(t, err, content.ErrUnauthorized, code)
	}
}

func TestBedrock_ThrottleIsNotUnauthorized(t *testing.T) {
	inv := &fakeInvoker{err: &smithy.GenericAPIError{Code: "ThrottlingException"}}
	_, err := NewBedrock(inv, "m").Complete(context.Background(), content.Prompt{User: "x"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, content.ErrUnauthorized))
}

func TestOpenAI_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req chatRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"SUBJECT: Hello"}}]}`))
	}))
	defer srv.Close()

	m := NewOpenAI(srv.Client(), srv.URL+"/v1/", "sk-test", "gpt-4o-mini")
	out, err := m.Complete(context.Background(), content.Prompt{System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "SUBJECT: Hello", out)
}

func TestOpenAI_StatusMapping(t *testing.T) {
	tests := []struct {
		status       int
		unauthorized bool
	}{
		{http.StatusUnauthorized, true},
		{http.StatusForbidden, true},
		{http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error":"x"}`))
		}))
		_, err := NewOpenAI(srv.Client(), srv.URL, "k", "m").Complete(context.Background(), content.Prompt{User: "u"})
		srv.Close()

		require.Error(t, err)
		assert.Equal(t, tt.unauthorized, errors.Is(err, content.ErrUnauthorized), "status %d", tt.status)
	}
}

func TestOpenAI_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.Client(), srv.URL, "k", "m").Complete(context.Background(), content.Prompt{User: "u"})
	assert.ErrorIs(t, err, content.ErrEmptyResponse)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.LLMConfig{Provider: "nope"})
	assert.Error(t, err)

	_, err = New(context.Background(), config.LLMConfig{Provider: "openai"})
	assert.Error(t, err)
}

func TestNew_OpenAIMakesOneCallPerGeneratorAttempt(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	model, err := New(context.Background(), config.LLMConfig{Provider: "openai", APIKey: "k", BaseURL: srv.URL, TimeoutSeconds: 5})
	require.NoError(t, err)

	gen := content.NewGenerator(model, content.GeneratorConfig{Attempts: 3}).
		WithSleep(func(context.Context, time.Duration) error { return nil })
	_, err = gen.Generate(context.Background(), content.Request{
		Recipient:          domain.ResolvedRecipient{Name: "Harbour Bakery", Email: "owner@harbour.test"},
		ServiceDescription: "websites",
		SenderName:         "Dana",
	})
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestBedrockLoadOptions_SingleAttempt(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), bedrockLoadOptions(config.LLMConfig{Region: "us-east-1"})...)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.RetryMaxAttempts)
	assert.Equal(t, "us-east-1", cfg.Region)
}
