package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"github.com/ignite/outreach-pipeline/internal/service/content"
)

const anthropicVersion = "bedrock-2023-05-31"

// BedrockInvoker is the subset of *bedrockruntime.Client used here.
type BedrockInvoker interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type bedrockMessage struct {
	Role    string                `json:"role"`
	Content []bedrockContentBlock `json:"content"`
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Bedrock completes prompts with an Anthropic model hosted on AWS Bedrock.
type Bedrock struct {
	client  BedrockInvoker
	modelID string
}

// NewBedrock creates a Bedrock model for modelID.
func NewBedrock(client BedrockInvoker, modelID string) *Bedrock {
	return &Bedrock{client: client, modelID: modelID}
}

// Complete implements content.Model.
func (b *Bedrock) Complete(ctx context.Context, p content.Prompt) (string, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        p.MaxTokens,
		System:           p.System,
		Messages: []bedrockMessage{{
			Role:    "user",
			Content: []bedrockContentBlock{{Type: "text", Text: p.User}},
		}},
		Temperature: p.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal bedrock request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", wrapBedrockError(err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("parse bedrock response: %w", err)
	}

	var sb strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	return sb.String(), nil
}

// wrapBedrockError maps credential failures onto content.ErrUnauthorized.
func wrapBedrockError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnrecognizedClientException",
			"ExpiredTokenException", "InvalidSignatureException":
			return fmt.Errorf("%w: %v", content.ErrUnauthorized, err)
		}
	}
	return fmt.Errorf("bedrock invoke: %w", err)
}
