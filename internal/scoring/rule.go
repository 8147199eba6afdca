package scoring

import (
	"time"
)

// Insufficient-history marker attached to default scores.
const insufficientHistoryInsight = "Insufficient transaction history"

// RuleEngine computes scores with the fixed arithmetic rule
// score = clamp(100 - 10*overdue_count - avg_delay_days, 0, 100).
type RuleEngine struct {
	minTransactions int
	now             func() time.Time
}

// NewRuleEngine builds a RuleEngine. A customer needs at least
// minTransactions invoices to be scored; below that the neutral default
// score is returned.
func NewRuleEngine(minTransactions int) *RuleEngine {
	return &RuleEngine{
		minTransactions: minTransactions,
		now:             time.Now,
	}
}

// WithNow overrides the engine clock for testing.
func (e *RuleEngine) WithNow(fn func() time.Time) *RuleEngine {
	if fn != nil {
		e.now = fn
	}
	return e
}

// Score derives a CustomerScore from the customer's invoice history. It is
// a total function: any well-formed input yields a score, never an error.
// Payments are accepted for contract completeness; outstanding amounts on
// the invoices already carry the payment effect.
func (e *RuleEngine) Score(customer Customer, invoices []Invoice, payments []Payment) CustomerScore {
	if len(invoices) < e.minTransactions {
		return e.defaultScore(customer, invoices)
	}

	now := e.now()
	totalInvoices := len(invoices)

	var overdueCount, totalPaid, onTime int
	var totalDelay int
	for _, inv := range invoices {
		delay := inv.DaysOverdue(now)
		totalDelay += delay
		if delay > 0 && !inv.IsPaid() {
			overdueCount++
		}
		if inv.IsPaid() {
			totalPaid++
			if delay <= 0 {
				onTime++
			}
		}
	}

	// Average over all invoices, including the ones with zero delay.
	avgDelay := float64(totalDelay) / float64(totalInvoices)
	reliability := float64(onTime) / float64(totalInvoices) * 100

	score := 100 - float64(overdueCount)*10 - avgDelay
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return CustomerScore{
		CustomerID:         customer.ID,
		CustomerName:       customer.Name,
		Score:              round2(score),
		RiskLevel:          riskLevelFor(score),
		Action:             actionFor(score),
		AvgPaymentDelay:    round2(avgDelay),
		PaymentReliability: round2(reliability),
		TotalInvoices:      totalInvoices,
		TotalPaid:          totalPaid,
		TotalOutstanding:   round2(totalOutstanding(invoices)),
		OverdueCount:       overdueCount,
		LastUpdated:        now,
	}
}

// defaultScore is the fixed neutral score for customers with insufficient
// transaction history, including the zero-invoice case.
func (e *RuleEngine) defaultScore(customer Customer, invoices []Invoice) CustomerScore {
	return CustomerScore{
		CustomerID:         customer.ID,
		CustomerName:       customer.Name,
		Score:              50.0,
		RiskLevel:          RiskMedium,
		Action:             ActionReminder,
		AvgPaymentDelay:    0.0,
		PaymentReliability: 0.0,
		TotalInvoices:      len(invoices),
		TotalPaid:          0,
		TotalOutstanding:   round2(totalOutstanding(invoices)),
		OverdueCount:       0,
		Insights:           insufficientHistoryInsight,
		LastUpdated:        e.now(),
	}
}
