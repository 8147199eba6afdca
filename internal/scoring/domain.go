// Package scoring computes payment-risk scores for ERP customers.
package scoring

import (
	"math"
	"time"
)

// RiskLevel classifies a customer score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Action is the recommended follow-up for a customer.
type Action string

const (
	ActionNone     Action = "None"
	ActionReminder Action = "Friendly reminder"
	ActionFollowUp Action = "Immediate follow-up"
)

// InvoiceStatusPaid is the lifecycle status marking a settled invoice.
const InvoiceStatusPaid = "Paid"

// DocStatusCancelled marks cancelled ERPNext documents; such invoices are
// excluded from scoring.
const DocStatusCancelled = 2

// Customer is an ERPNext customer master record.
type Customer struct {
	ID        string  `json:"customer_id" validate:"required"`
	Name      string  `json:"customer_name" validate:"required"`
	Type      *string `json:"customer_type,omitempty"`
	Territory *string `json:"territory,omitempty"`
	Group     *string `json:"customer_group,omitempty"`
}

// Invoice is an ERPNext sales invoice.
type Invoice struct {
	ID          string     `json:"id" validate:"required"`
	CustomerID  string     `json:"customer"`
	PostingDate time.Time  `json:"posting_date"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	GrandTotal  float64    `json:"grand_total" validate:"gte=0"`
	Outstanding float64    `json:"outstanding_amount" validate:"gte=0"`
	Status      string     `json:"status"`
	PaymentDate *time.Time `json:"payment_date,omitempty"`
	DocStatus   *int       `json:"docstatus,omitempty"`
}

// IsPaid reports whether the invoice is fully settled.
func (inv Invoice) IsPaid() bool {
	return inv.Status == InvoiceStatusPaid || inv.Outstanding == 0
}

// DaysOverdue returns elapsed days past the due date, measured to the
// payment date if known, else to now. Zero when there is no due date or the
// invoice is already paid.
func (inv Invoice) DaysOverdue(now time.Time) int {
	if inv.DueDate == nil || inv.Status == InvoiceStatusPaid {
		return 0
	}
	reference := now
	if inv.PaymentDate != nil {
		reference = *inv.PaymentDate
	}
	if !reference.After(*inv.DueDate) {
		return 0
	}
	return int(reference.Sub(*inv.DueDate).Hours() / 24)
}

// IsCancelled reports whether the document was cancelled upstream.
func (inv Invoice) IsCancelled() bool {
	return inv.DocStatus != nil && *inv.DocStatus == DocStatusCancelled
}

// Payment is an ERPNext payment entry. Payments feed the aggregation
// contract; the scoring arithmetic itself works from invoice outstanding
// amounts.
type Payment struct {
	ID            string     `json:"id" validate:"required"`
	Party         *string    `json:"party,omitempty"`
	PostingDate   time.Time  `json:"posting_date"`
	PaidAmount    float64    `json:"paid_amount" validate:"gte=0"`
	Type          string     `json:"payment_type"`
	ReferenceNo   *string    `json:"reference_no,omitempty"`
	Mode          *string    `json:"mode_of_payment,omitempty"`
	ReferenceDate *time.Time `json:"reference_date,omitempty"`
}

// CustomerScore is the scoring pipeline's output for one customer.
type CustomerScore struct {
	CustomerID         string    `json:"customer_id"`
	CustomerName       string    `json:"customer_name"`
	Score              float64   `json:"score"`
	RiskLevel          RiskLevel `json:"risk_level"`
	Action             Action    `json:"action"`
	AvgPaymentDelay    float64   `json:"avg_payment_delay"`
	PaymentReliability float64   `json:"payment_reliability"`
	TotalInvoices      int       `json:"total_invoices"`
	TotalPaid          int       `json:"total_paid"`
	TotalOutstanding   float64   `json:"total_outstanding"`
	OverdueCount       int       `json:"overdue_count"`
	Insights           string    `json:"insights,omitempty"`
	LastUpdated        time.Time `json:"last_updated"`
}

// AttachInsights returns a copy of the score with narrative insights set.
// Scores are built in two phases: numbers first, narrative second, because
// the narrative depends on the fully formed score.
func (s CustomerScore) AttachInsights(text string) CustomerScore {
	s.Insights = text
	return s
}

// riskLevelFor maps a score to its risk tier. Both engines share these
// thresholds so classification boundaries never diverge.
func riskLevelFor(score float64) RiskLevel {
	switch {
	case score >= 80:
		return RiskLow
	case score >= 50:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// actionFor maps a score to the recommended follow-up action.
func actionFor(score float64) Action {
	switch {
	case score >= 80:
		return ActionNone
	case score >= 50:
		return ActionReminder
	default:
		return ActionFollowUp
	}
}

// round2 rounds monetary and percentage outputs to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func totalOutstanding(invoices []Invoice) float64 {
	var total float64
	for _, inv := range invoices {
		total += inv.Outstanding
	}
	return total
}
