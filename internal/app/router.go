package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/noah-isme/payscore/internal/platform/httpx"
	scoringhttp "github.com/noah-isme/payscore/internal/scoring/http"
)

// Version reported by the metadata endpoint.
const Version = "1.0.0"

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	CustomersHandler *scoringhttp.Handler
}

// NewRouter constructs the chi.Router with payscore defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"message": "Payment Scoring API",
			"version": Version,
			"endpoints": map[string]string{
				"health":         "/healthz",
				"customers":      "/api/v1/customers",
				"payment_scores": "/api/v1/customers/payment-scores",
				"high_risk":      "/api/v1/customers/high-risk",
				"followups":      "/api/v1/customers/followups",
			},
		})
	})

	r.Route("/api/v1", params.CustomersHandler.MountRoutes)

	return r
}
