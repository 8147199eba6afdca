package scoring

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/payscore/internal/erpnext"
)

// Source is the ERP collaborator contract consumed by the service.
type Source interface {
	ListCustomers(ctx context.Context, limit int) ([]erpnext.Record, error)
	GetCustomer(ctx context.Context, customerID string) (erpnext.Record, error)
	GetCustomerInvoices(ctx context.Context, customerID string) ([]erpnext.Record, error)
	GetCustomerPayments(ctx context.Context, customerID string) ([]erpnext.Record, error)
}

// InsightWriter produces narrative and trend text for scored customers.
type InsightWriter interface {
	Narrative(score CustomerScore) string
	Trend(invoices []Invoice) string
}

// Options tune the scoring pipeline.
type Options struct {
	// UseAI selects the AI engine for batch and single-customer scoring.
	UseAI bool
	// ScoreWindow filters invoices for ranking and single-customer scores.
	ScoreWindow time.Duration
	// FollowUpWindow filters invoices for follow-up grouping.
	FollowUpWindow time.Duration
	// MaxConcurrency bounds in-flight per-customer work; it is the
	// backpressure control for reasoning-service calls.
	MaxConcurrency int
	// TopK caps how many customers per batch reach the reasoning service
	// (the K riskiest by deterministic pre-score). Zero or negative means
	// no cap.
	TopK int
}

// SkippedCustomer records a customer dropped from a batch and why.
type SkippedCustomer struct {
	CustomerID string `json:"customer_id"`
	Reason     string `json:"reason"`
}

// Batch is the outcome of scoring a customer list: partial success is the
// contract, so failures ride alongside the scores instead of aborting them.
type Batch struct {
	Scores  []CustomerScore   `json:"scores"`
	Skipped []SkippedCustomer `json:"skipped,omitempty"`
}

// FollowUpEntry summarises one customer inside a follow-up bucket.
type FollowUpEntry struct {
	CustomerID       string    `json:"customer_id"`
	CustomerName     string    `json:"customer_name"`
	Score            float64   `json:"score"`
	RiskLevel        RiskLevel `json:"risk_level"`
	Action           Action    `json:"action"`
	OverdueCount     int       `json:"overdue_count"`
	TotalOutstanding float64   `json:"total_outstanding"`
	Insights         string    `json:"insights"`
}

// FollowUpGroups buckets customers by recommended action.
type FollowUpGroups struct {
	ImmediateFollowUp []FollowUpEntry `json:"immediate_followup"`
	FriendlyReminder  []FollowUpEntry `json:"friendly_reminder"`
	NoAction          []FollowUpEntry `json:"no_action"`
}

// TrendReport is the single-customer insights payload.
type TrendReport struct {
	CustomerID    string    `json:"customer_id"`
	CustomerName  string    `json:"customer_name"`
	TrendAnalysis string    `json:"trend_analysis"`
	TotalInvoices int       `json:"total_invoices"`
	Invoices      []Invoice `json:"invoices"`
}

// Service orchestrates per-customer scoring across the customer list.
type Service struct {
	source     Source
	normalizer *Normalizer
	rule       *RuleEngine
	ai         *AIAnalyzer
	insights   InsightWriter
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

// NewService builds the scoring service. ai may be nil when the rule engine
// is selected.
func NewService(source Source, normalizer *Normalizer, rule *RuleEngine, ai *AIAnalyzer, insights InsightWriter, opts Options, logger *slog.Logger) *Service {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	return &Service{
		source:     source,
		normalizer: normalizer,
		rule:       rule,
		ai:         ai,
		insights:   insights,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) *Service {
	if fn != nil {
		s.now = fn
	}
	return s
}

// ScoreAll scores up to limit customers and returns the full ranking,
// ascending by score so the riskiest customers come first.
func (s *Service) ScoreAll(ctx context.Context, limit int) (Batch, error) {
	records, err := s.source.ListCustomers(ctx, limit)
	if err != nil {
		return Batch{}, err
	}
	return s.scoreRecords(ctx, records, s.opts.ScoreWindow), nil
}

// HighRisk returns the subset of the full ranking with score below 50,
// order preserved.
func (s *Service) HighRisk(ctx context.Context, limit int) (Batch, error) {
	batch, err := s.ScoreAll(ctx, limit)
	if err != nil {
		return Batch{}, err
	}
	highRisk := make([]CustomerScore, 0, len(batch.Scores))
	for _, score := range batch.Scores {
		if score.Score < 50 {
			highRisk = append(highRisk, score)
		}
	}
	batch.Scores = highRisk
	return batch, nil
}

// FollowUps groups customers by recommended action using the shorter
// follow-up window.
func (s *Service) FollowUps(ctx context.Context, limit int) (FollowUpGroups, error) {
	records, err := s.source.ListCustomers(ctx, limit)
	if err != nil {
		return FollowUpGroups{}, err
	}
	batch := s.scoreRecords(ctx, records, s.opts.FollowUpWindow)

	groups := FollowUpGroups{
		ImmediateFollowUp: []FollowUpEntry{},
		FriendlyReminder:  []FollowUpEntry{},
		NoAction:          []FollowUpEntry{},
	}
	for _, score := range batch.Scores {
		entry := FollowUpEntry{
			CustomerID:       score.CustomerID,
			CustomerName:     score.CustomerName,
			Score:            score.Score,
			RiskLevel:        score.RiskLevel,
			Action:           score.Action,
			OverdueCount:     score.OverdueCount,
			TotalOutstanding: score.TotalOutstanding,
			Insights:         score.Insights,
		}
		switch score.Action {
		case ActionFollowUp:
			groups.ImmediateFollowUp = append(groups.ImmediateFollowUp, entry)
		case ActionReminder:
			groups.FriendlyReminder = append(groups.FriendlyReminder, entry)
		default:
			groups.NoAction = append(groups.NoAction, entry)
		}
	}
	return groups, nil
}

// CustomerScore scores a single customer on demand.
func (s *Service) CustomerScore(ctx context.Context, customerID string) (CustomerScore, error) {
	customer, invoices, payments, err := s.fetchCustomer(ctx, customerID)
	if err != nil {
		return CustomerScore{}, err
	}
	invoices = FilterRecent(invoices, s.opts.ScoreWindow, s.now())

	score := s.scoreOne(ctx, customer, invoices, payments, s.opts.UseAI)
	return s.enrich(score), nil
}

// CustomerInsights returns the trend analysis for a single customer over
// its full invoice history.
func (s *Service) CustomerInsights(ctx context.Context, customerID string) (TrendReport, error) {
	customer, invoices, _, err := s.fetchCustomer(ctx, customerID)
	if err != nil {
		return TrendReport{}, err
	}
	return TrendReport{
		CustomerID:    customer.ID,
		CustomerName:  customer.Name,
		TrendAnalysis: s.insights.Trend(invoices),
		TotalInvoices: len(invoices),
		Invoices:      invoices,
	}, nil
}

type scoredCustomer struct {
	customer Customer
	invoices []Invoice
	payments []Payment
	score    CustomerScore
}

// scoreRecords runs the per-customer pipeline over raw customer records.
// Single-customer failures are recorded and skipped; the batch never
// aborts for one bad record.
func (s *Service) scoreRecords(ctx context.Context, records []erpnext.Record, window time.Duration) Batch {
	results := make([]*scoredCustomer, len(records))
	skips := make([]*SkippedCustomer, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrency)
	for i, raw := range records {
		i, raw := i, raw
		g.Go(func() error {
			id := rawCustomerID(raw)
			if gctx.Err() != nil {
				skips[i] = &SkippedCustomer{CustomerID: id, Reason: "batch canceled"}
				return nil
			}
			sc, err := s.prepare(gctx, raw, window)
			if err != nil {
				s.logger.Warn("skipping customer in batch",
					slog.String("customer", id),
					slog.Any("error", err))
				skips[i] = &SkippedCustomer{CustomerID: id, Reason: err.Error()}
				return nil
			}
			results[i] = sc
			return nil
		})
	}
	_ = g.Wait()

	scored := make([]*scoredCustomer, 0, len(records))
	batch := Batch{Scores: []CustomerScore{}}
	for i := range records {
		if skips[i] != nil {
			batch.Skipped = append(batch.Skipped, *skips[i])
			continue
		}
		if results[i] != nil {
			scored = append(scored, results[i])
		}
	}

	if s.opts.UseAI && s.ai != nil {
		s.analyzeTopK(ctx, scored)
	}

	for _, sc := range scored {
		batch.Scores = append(batch.Scores, s.enrich(sc.score))
	}
	sort.SliceStable(batch.Scores, func(i, j int) bool {
		return batch.Scores[i].Score < batch.Scores[j].Score
	})
	return batch
}

// prepare fetches and normalizes one customer's records and computes the
// deterministic pre-score.
func (s *Service) prepare(ctx context.Context, raw erpnext.Record, window time.Duration) (*scoredCustomer, error) {
	customer, err := s.normalizer.Customer(raw)
	if err != nil {
		return nil, err
	}
	rawInvoices, err := s.source.GetCustomerInvoices(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	rawPayments, err := s.source.GetCustomerPayments(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	invoices, err := s.normalizer.Invoices(rawInvoices)
	if err != nil {
		return nil, err
	}
	payments, err := s.normalizer.Payments(rawPayments)
	if err != nil {
		return nil, err
	}
	invoices = FilterRecent(invoices, window, s.now())

	return &scoredCustomer{
		customer: customer,
		invoices: invoices,
		payments: payments,
		score:    s.rule.Score(customer, invoices, payments),
	}, nil
}

// analyzeTopK re-scores batch customers through the reasoning service,
// riskiest first by deterministic pre-score, bounded by TopK and the
// configured concurrency.
func (s *Service) analyzeTopK(ctx context.Context, scored []*scoredCustomer) {
	candidates := make([]*scoredCustomer, len(scored))
	copy(candidates, scored)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score.Score < candidates[j].score.Score
	})
	if s.opts.TopK > 0 && len(candidates) > s.opts.TopK {
		candidates = candidates[:s.opts.TopK]
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrency)
	for _, sc := range candidates {
		sc := sc
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			sc.score = s.ai.Analyze(gctx, sc.customer, sc.invoices)
			return nil
		})
	}
	_ = g.Wait()
}

// scoreOne runs the selected engine for a single customer.
func (s *Service) scoreOne(ctx context.Context, customer Customer, invoices []Invoice, payments []Payment, useAI bool) CustomerScore {
	if useAI && s.ai != nil {
		return s.ai.Analyze(ctx, customer, invoices)
	}
	return s.rule.Score(customer, invoices, payments)
}

// enrich attaches the narrative to scores whose engine left insights empty.
// Engine-authored insights (insufficient history, AI narrative, fallback
// marker) are preserved.
func (s *Service) enrich(score CustomerScore) CustomerScore {
	if score.Insights != "" {
		return score
	}
	return score.AttachInsights(s.insights.Narrative(score))
}

func (s *Service) fetchCustomer(ctx context.Context, customerID string) (Customer, []Invoice, []Payment, error) {
	raw, err := s.source.GetCustomer(ctx, customerID)
	if err != nil {
		return Customer{}, nil, nil, err
	}
	customer, err := s.normalizer.Customer(raw)
	if err != nil {
		return Customer{}, nil, nil, err
	}
	rawInvoices, err := s.source.GetCustomerInvoices(ctx, customerID)
	if err != nil {
		return Customer{}, nil, nil, err
	}
	invoices, err := s.normalizer.Invoices(rawInvoices)
	if err != nil {
		return Customer{}, nil, nil, err
	}
	rawPayments, err := s.source.GetCustomerPayments(ctx, customerID)
	if err != nil {
		return Customer{}, nil, nil, err
	}
	payments, err := s.normalizer.Payments(rawPayments)
	if err != nil {
		return Customer{}, nil, nil, err
	}
	return customer, invoices, payments, nil
}

func rawCustomerID(raw erpnext.Record) string {
	if id, ok := raw["name"].(string); ok {
		return id
	}
	return "unknown"
}
