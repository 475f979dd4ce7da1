package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/outreach-pipeline/internal/pkg/httpretry"
	"github.com/ignite/outreach-pipeline/internal/pkg/logger"
	"github.com/ignite/outreach-pipeline/internal/pkg/metrics"
)

// Email is a generated message ready to persist on a campaign item.
type Email struct {
	Subject  string
	Body     string
	HTML     string
	Warnings []string
}

// GeneratorConfig controls sampling and retries.
type GeneratorConfig struct {
	Provider    string
	Temperature float64
	MaxTokens   int
	Attempts    int
	Backoff     httpretry.Backoff
}

// DefaultGeneratorConfig returns the production defaults: temperature 0.7,
// 2000 tokens, 3 attempts, 1s doubling backoff capped at 10s.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Provider:    "model",
		Temperature: 0.7,
		MaxTokens:   2000,
		Attempts:    3,
		Backoff:     httpretry.Backoff{Base: time.Second, Max: 10 * time.Second},
	}
}

// Generator writes personalized emails with a Model. It is safe for
// concurrent use if the Model is.
type Generator struct {
	model Model
	cfg   GeneratorConfig
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGenerator creates a Generator. Zero config fields take their defaults.
func NewGenerator(model Model, cfg GeneratorConfig) *Generator {
	def := DefaultGeneratorConfig()
	if cfg.Provider == "" {
		cfg.Provider = def.Provider
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.Backoff.Base == 0 {
		cfg.Backoff = def.Backoff
	}
	return &Generator{model: model, cfg: cfg, sleep: httpretry.Sleep}
}

// WithSleep replaces the retry wait, for tests.
func (g *Generator) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Generator {
	g.sleep = fn
	return g
}

// Generate writes one email for the request.
func (g *Generator) Generate(ctx context.Context, req Request) (*Email, error) {
	prompt := Prompt{
		System:      SystemPrompt,
		User:        BuildPrompt(req),
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	}

	raw, err := g.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	subject, body, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}

	vals := Values{
		SenderName:    req.SenderName,
		RecipientName: req.Recipient.Name,
		Industry:      req.Recipient.Industry,
	}
	subject = ScrubPlaceholders(subject, vals)
	body = ScrubPlaceholders(body, vals)
	if subject == "" || body == "" {
		return nil, ErrUnparseable
	}

	email := &Email{
		Subject:  subject,
		Body:     body,
		HTML:     RenderHTML(body),
		Warnings: Lint(subject, body),
	}
	if len(email.Warnings) > 0 {
		logger.Debug("generated email has warnings", "recipient", req.Recipient.Name, "warnings", email.Warnings)
	}
	return email, nil
}

func (g *Generator) complete(ctx context.Context, p Prompt) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= g.cfg.Attempts; attempt++ {
		start := time.Now()
		raw, err := g.model.Complete(ctx, p)
		metrics.ModelCallDuration.WithLabelValues(g.cfg.Provider).Observe(time.Since(start).Seconds())
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if errors.Is(err, ErrUnauthorized) || ctx.Err() != nil {
			return "", err
		}
		logger.Warn("model call failed", "provider", g.cfg.Provider, "attempt", attempt, "max_attempts", g.cfg.Attempts, "error", err.Error())

		if attempt < g.cfg.Attempts {
			if err := g.sleep(ctx, g.cfg.Backoff.Delay(attempt)); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("generate email after %d attempts: %w", g.cfg.Attempts, lastErr)
}
