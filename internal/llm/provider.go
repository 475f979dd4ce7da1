package llm

import (
	"context"
	"fmt"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/ignite/outreach-pipeline/internal/config"
	"github.com/ignite/outreach-pipeline/internal/pkg/httpretry"
	"github.com/ignite/outreach-pipeline/internal/service/content"
)

// New builds the model selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (content.Model, error) {
	switch cfg.Provider {
	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, bedrockLoadOptions(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return NewBedrock(bedrockruntime.NewFromConfig(awsCfg), cfg.Model), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm provider openai requires an api key")
		}
		client := openAIClient(cfg)
		return NewOpenAI(client, cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

// The content generator owns the retry budget for a model call, so the
// transports below make exactly one attempt per call.

func bedrockLoadOptions(cfg config.LLMConfig) []func(*awsconfig.LoadOptions) error {
	return []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(1),
	}
}

func openAIClient(cfg config.LLMConfig) *httpretry.RetryClient {
	return httpretry.NewRetryClient(&http.Client{Timeout: cfg.Timeout()}, -1)
}
