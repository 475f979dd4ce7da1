package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignite/outreach-pipeline/internal/config"
	"github.com/ignite/outreach-pipeline/internal/pkg/httputil"
)

var defaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// SetupRoutes configures all API routes. Unsubscribe links and provider
// webhooks are public; everything else requires an organization.
func SetupRoutes(h *Handlers, health *HealthChecker, cfg config.ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = defaultAllowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", OrgHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", health.HandleHealth)
	r.Get("/healthz/ready", health.HandleReadiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/unsubscribe/{token}", h.HandleUnsubscribe)
	r.Post("/unsubscribe/{token}", h.HandleUnsubscribe)
	r.With(h.verifyWebhook).Post("/webhooks/email-events", h.HandleEmailEvent)

	orgs := NewOrgContextProvider(cfg.DefaultOrgID, cfg.DevMode)
	r.Group(func(r chi.Router) {
		r.Use(orgs.RequireOrgMiddleware)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Post("/", h.CreateCampaign)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetCampaign)
				r.Put("/", h.UpdateCampaign)
				r.Delete("/", h.DeleteCampaign)
				r.Post("/start", h.StartCampaign)
				r.Post("/send", h.SendCampaign)
				r.Get("/items", h.ListCampaignItems)
				r.Get("/events", h.ListCampaignEvents)
				r.Get("/analytics", h.GetCampaignAnalytics)
			})
		})

		r.Get("/quota", h.GetQuota)
		r.Put("/quota", h.UpdateQuota)
		r.Get("/quota/check", h.CheckQuota)

		r.Get("/suppressions", h.ListSuppressions)
		r.Post("/suppressions", h.AddSuppression)
		r.Get("/suppressions/stats", h.SuppressionStats)
		r.Delete("/suppressions/{email}", h.RemoveSuppression)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.NotFound(w, "not found")
	})

	return r
}
