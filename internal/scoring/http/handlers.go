// Package scoringhttp exposes the scoring pipeline over JSON endpoints.
package scoringhttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/payscore/internal/erpnext"
	"github.com/noah-isme/payscore/internal/platform/httpx"
	"github.com/noah-isme/payscore/internal/scoring"
	"github.com/noah-isme/payscore/internal/shared"
)

// ScoringService defines the scoring contract used by the handler.
type ScoringService interface {
	ScoreAll(ctx context.Context, limit int) (scoring.Batch, error)
	HighRisk(ctx context.Context, limit int) (scoring.Batch, error)
	FollowUps(ctx context.Context, limit int) (scoring.FollowUpGroups, error)
	CustomerScore(ctx context.Context, customerID string) (scoring.CustomerScore, error)
	CustomerInsights(ctx context.Context, customerID string) (scoring.TrendReport, error)
}

// CustomerLister lists raw customer records for the plain listing endpoint.
type CustomerLister interface {
	ListCustomers(ctx context.Context, limit int) ([]erpnext.Record, error)
}

// Handler coordinates HTTP requests for customer payment scoring.
type Handler struct {
	logger  *slog.Logger
	service ScoringService
	source  CustomerLister
}

// NewHandler constructs the scoring HTTP handler.
func NewHandler(logger *slog.Logger, service ScoringService, source CustomerLister) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		source:  source,
	}
}

// MountRoutes registers the customer scoring endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/customers", h.ListCustomers)
	r.Get("/customers/payment-scores", h.PaymentScores)
	r.Get("/customers/high-risk", h.HighRisk)
	r.Get("/customers/followups", h.FollowUps)
	r.Get("/customers/{customerID}/score", h.CustomerScore)
	r.Get("/customers/{customerID}/insights", h.CustomerInsights)
}

// ListCustomers returns the raw ERP customer listing.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	limit, err := shared.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	customers, err := h.source.ListCustomers(r.Context(), limit)
	if err != nil {
		h.logger.Error("list customers failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customers)
}

// PaymentScores returns the full ranking, riskiest customers first.
func (h *Handler) PaymentScores(w http.ResponseWriter, r *http.Request) {
	limit, err := shared.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	batch, err := h.service.ScoreAll(r.Context(), limit)
	if err != nil {
		h.logger.Error("score customers failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logSkipped(batch.Skipped)
	httpx.JSON(w, http.StatusOK, batch.Scores)
}

// HighRisk returns customers with score below 50.
func (h *Handler) HighRisk(w http.ResponseWriter, r *http.Request) {
	limit, err := shared.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	batch, err := h.service.HighRisk(r.Context(), limit)
	if err != nil {
		h.logger.Error("high-risk listing failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logSkipped(batch.Skipped)
	httpx.JSON(w, http.StatusOK, batch.Scores)
}

// FollowUps returns customers grouped by recommended action.
func (h *Handler) FollowUps(w http.ResponseWriter, r *http.Request) {
	limit, err := shared.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	groups, err := h.service.FollowUps(r.Context(), limit)
	if err != nil {
		h.logger.Error("follow-up grouping failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

// CustomerScore returns the payment score for one customer.
func (h *Handler) CustomerScore(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	score, err := h.service.CustomerScore(r.Context(), customerID)
	if err != nil {
		h.logger.Error("customer score failed",
			slog.String("customer", customerID),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, score)
}

// CustomerInsights returns the payment trend analysis for one customer.
func (h *Handler) CustomerInsights(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	report, err := h.service.CustomerInsights(r.Context(), customerID)
	if err != nil {
		h.logger.Error("customer insights failed",
			slog.String("customer", customerID),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) logSkipped(skipped []scoring.SkippedCustomer) {
	for _, skip := range skipped {
		h.logger.Warn("customer skipped during batch scoring",
			slog.String("customer", skip.CustomerID),
			slog.String("reason", skip.Reason))
	}
}
