package esp

import (
	"context"
	"fmt"

	"github.com/ignite/outreach-pipeline/internal/config"
	"github.com/ignite/outreach-pipeline/internal/service/delivery"
)

// New builds the adapter selected by cfg.Provider.
func New(ctx context.Context, cfg config.ESPConfig) (delivery.Adapter, error) {
	switch cfg.Provider {
	case "ses":
		return NewSESFromCredentials(ctx, cfg.SESAccessKey, cfg.SESSecretKey, cfg.SESRegion)
	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("esp provider resend requires an api key")
		}
		return NewResend(cfg.ResendAPIKey), nil
	}
	return nil, fmt.Errorf("unknown esp provider %q", cfg.Provider)
}
