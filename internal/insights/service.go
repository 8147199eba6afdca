// Package insights turns computed scores and invoice histories into
// human-readable narratives.
package insights

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/noah-isme/payscore/internal/scoring"
)

// Fixed trend messages.
const (
	TrendNoData    = "No recent transaction data available."
	TrendImproving = "📈 Trend: Payment behavior is improving over time."
	TrendWorsening = "📉 Trend: Payment delays are increasing. Early intervention recommended."
	TrendStable    = "→ Trend: Payment behavior remains stable."
)

// Service generates narrative insights and trend analysis. Both operations
// are pure functions of their input given a fixed clock.
type Service struct {
	printer *message.Printer
	now     func() time.Time
}

// NewService builds the insight generator.
func NewService() *Service {
	return &Service{
		printer: message.NewPrinter(language.English),
		now:     time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) *Service {
	if fn != nil {
		s.now = fn
	}
	return s
}

// Narrative composes sentence-level insights keyed off the fully formed
// score. Same score in, same text out.
func (s *Service) Narrative(score scoring.CustomerScore) string {
	parts := make([]string, 0, 6)

	switch score.RiskLevel {
	case scoring.RiskLow:
		parts = append(parts, fmt.Sprintf("✓ %s is a low-risk customer with excellent payment behavior.", score.CustomerName))
	case scoring.RiskMedium:
		parts = append(parts, fmt.Sprintf("⚠ %s shows moderate risk. Monitor payment patterns closely.", score.CustomerName))
	default:
		parts = append(parts, fmt.Sprintf("⚠ %s is high-risk. Consider credit limits or payment terms.", score.CustomerName))
	}

	switch {
	case score.PaymentReliability >= 90:
		parts = append(parts, fmt.Sprintf("✓ Highly reliable with %.1f%% on-time payment rate.", score.PaymentReliability))
	case score.PaymentReliability >= 70:
		parts = append(parts, fmt.Sprintf("→ Moderate reliability at %.1f%% on-time payments.", score.PaymentReliability))
	default:
		parts = append(parts, fmt.Sprintf("✗ Low reliability with only %.1f%% payments on time.", score.PaymentReliability))
	}

	switch {
	case score.AvgPaymentDelay == 0:
		parts = append(parts, "✓ Always pays on or before due date.")
	case score.AvgPaymentDelay < 7:
		parts = append(parts, fmt.Sprintf("→ Typically pays within %.1f days of due date.", score.AvgPaymentDelay))
	default:
		parts = append(parts, fmt.Sprintf("⚠ Average delay of %.1f days indicates payment challenges.", score.AvgPaymentDelay))
	}

	if score.TotalOutstanding > 0 {
		parts = append(parts, s.printer.Sprintf("→ Current outstanding balance: $%.2f", score.TotalOutstanding))
	}

	parts = append(parts, fmt.Sprintf("→ Transaction history: %d/%d invoices paid.", score.TotalPaid, score.TotalInvoices))

	// No closing recommendation is emitted for the middle band.
	if score.Score >= 80 {
		parts = append(parts, "✓ Recommended: Consider extended payment terms or credit increase.")
	} else if score.Score <= 40 {
		parts = append(parts, "⚠ Recommended: Require advance payment or reduce credit limits.")
	}

	return strings.Join(parts, " ")
}

// Trend compares the older and the more recent half of the invoice history
// by mean days overdue and classifies the movement.
func (s *Service) Trend(invoices []scoring.Invoice) string {
	if len(invoices) == 0 {
		return TrendNoData
	}

	now := s.now()
	sorted := make([]scoring.Invoice, len(invoices))
	copy(sorted, invoices)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PostingDate.Before(sorted[j].PostingDate)
	})

	// For odd counts the recent half is the larger one.
	mid := len(sorted) / 2
	older := sorted[:mid]
	recent := sorted[mid:]

	recentMean := meanDaysOverdue(recent, now)
	olderMean := recentMean
	if len(older) > 0 {
		olderMean = meanDaysOverdue(older, now)
	}

	switch {
	case recentMean < olderMean*0.8:
		return TrendImproving
	case recentMean > olderMean*1.2:
		return TrendWorsening
	default:
		return TrendStable
	}
}

func meanDaysOverdue(invoices []scoring.Invoice, now time.Time) float64 {
	var total int
	for _, inv := range invoices {
		total += inv.DaysOverdue(now)
	}
	return float64(total) / float64(len(invoices))
}
