package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ignite/outreach-pipeline/internal/pkg/httpretry"
	"github.com/ignite/outreach-pipeline/internal/service/content"
)

// DefaultOpenAIBaseURL is used when no base URL is configured.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI completes prompts through an OpenAI-compatible chat completions
// endpoint.
type OpenAI struct {
	client  httpretry.HTTPDoer
	baseURL string
	apiKey  string
	model   string
}

// NewOpenAI creates a chat completions model. A nil client gets a default
// that makes one attempt per call.
func NewOpenAI(client httpretry.HTTPDoer, baseURL, apiKey, model string) *OpenAI {
	if client == nil {
		client = httpretry.NewRetryClient(nil, -1)
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAI{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete implements content.Model.
func (o *OpenAI) Complete(ctx context.Context, p content.Prompt) (string, error) {
	msgs := make([]chatMessage, 0, 2)
	if p.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: p.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: p.User})

	body, err := json.Marshal(chatRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: status %d", content.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("chat completion error (status %d): %s", resp.StatusCode, truncate(string(respBody), 256))
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("parse chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", content.ErrEmptyResponse
	}
	return out.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
