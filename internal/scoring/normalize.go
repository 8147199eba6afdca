package scoring

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/payscore/internal/erpnext"
	"github.com/noah-isme/payscore/internal/shared"
)

const dateLayout = "2006-01-02"

// Normalizer converts raw ERP records into validated, typed entities.
type Normalizer struct {
	validate *validator.Validate
}

// NewNormalizer builds a Normalizer instance.
func NewNormalizer() *Normalizer {
	return &Normalizer{validate: validator.New()}
}

// Customer normalizes a raw customer record.
func (n *Normalizer) Customer(raw erpnext.Record) (Customer, error) {
	customer := Customer{
		ID:        stringField(raw, "name"),
		Name:      stringField(raw, "customer_name"),
		Type:      optionalString(raw, "customer_type"),
		Territory: optionalString(raw, "territory"),
		Group:     optionalString(raw, "customer_group"),
	}
	if err := n.validate.Struct(customer); err != nil {
		return Customer{}, fmt.Errorf("%w: customer record: %v", shared.ErrValidation, err)
	}
	return customer, nil
}

// Invoice normalizes a raw sales invoice record.
func (n *Normalizer) Invoice(raw erpnext.Record) (Invoice, error) {
	posting, err := requiredDate(raw, "posting_date")
	if err != nil {
		return Invoice{}, err
	}
	due, err := optionalDate(raw, "due_date")
	if err != nil {
		return Invoice{}, err
	}
	paid, err := optionalDate(raw, "payment_date")
	if err != nil {
		return Invoice{}, err
	}
	invoice := Invoice{
		ID:          stringField(raw, "name"),
		CustomerID:  stringField(raw, "customer"),
		PostingDate: posting,
		DueDate:     due,
		GrandTotal:  floatField(raw, "grand_total"),
		Outstanding: floatField(raw, "outstanding_amount"),
		Status:      stringFieldDefault(raw, "status", "Draft"),
		PaymentDate: paid,
		DocStatus:   optionalInt(raw, "docstatus"),
	}
	if err := n.validate.Struct(invoice); err != nil {
		return Invoice{}, fmt.Errorf("%w: invoice record: %v", shared.ErrValidation, err)
	}
	return invoice, nil
}

// Payment normalizes a raw payment entry record.
func (n *Normalizer) Payment(raw erpnext.Record) (Payment, error) {
	posting, err := requiredDate(raw, "posting_date")
	if err != nil {
		return Payment{}, err
	}
	refDate, err := optionalDate(raw, "reference_date")
	if err != nil {
		return Payment{}, err
	}
	payment := Payment{
		ID:            stringField(raw, "name"),
		Party:         optionalString(raw, "party"),
		PostingDate:   posting,
		PaidAmount:    floatField(raw, "paid_amount"),
		Type:          stringFieldDefault(raw, "payment_type", "Receive"),
		ReferenceNo:   optionalString(raw, "reference_no"),
		Mode:          optionalString(raw, "mode_of_payment"),
		ReferenceDate: refDate,
	}
	if err := n.validate.Struct(payment); err != nil {
		return Payment{}, fmt.Errorf("%w: payment record: %v", shared.ErrValidation, err)
	}
	return payment, nil
}

// Invoices normalizes a batch of invoice records; the first malformed record
// fails the whole customer so the caller can skip it.
func (n *Normalizer) Invoices(raws []erpnext.Record) ([]Invoice, error) {
	invoices := make([]Invoice, 0, len(raws))
	for _, raw := range raws {
		inv, err := n.Invoice(raw)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

// Payments normalizes a batch of payment records.
func (n *Normalizer) Payments(raws []erpnext.Record) ([]Payment, error) {
	payments := make([]Payment, 0, len(raws))
	for _, raw := range raws {
		p, err := n.Payment(raw)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

// FilterRecent keeps invoices posted within the window ending at now and
// drops cancelled documents. Windows differ per endpoint, not globally.
func FilterRecent(invoices []Invoice, window time.Duration, now time.Time) []Invoice {
	cutoff := now.Add(-window)
	recent := make([]Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.IsCancelled() {
			continue
		}
		if inv.PostingDate.Before(cutoff) {
			continue
		}
		recent = append(recent, inv)
	}
	return recent
}

func stringField(raw erpnext.Record, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func stringFieldDefault(raw erpnext.Record, key, fallback string) string {
	if v, ok := raw[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func optionalString(raw erpnext.Record, key string) *string {
	if v, ok := raw[key].(string); ok && v != "" {
		return &v
	}
	return nil
}

func floatField(raw erpnext.Record, key string) float64 {
	switch v := raw[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func optionalInt(raw erpnext.Record, key string) *int {
	switch v := raw[key].(type) {
	case float64:
		i := int(v)
		return &i
	case int:
		i := v
		return &i
	default:
		return nil
	}
}

func requiredDate(raw erpnext.Record, key string) (time.Time, error) {
	v, ok := raw[key].(string)
	if !ok || v == "" {
		return time.Time{}, fmt.Errorf("%w: missing %s", shared.ErrValidation, key)
	}
	parsed, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid %s %q", shared.ErrValidation, key, v)
	}
	return parsed, nil
}

func optionalDate(raw erpnext.Record, key string) (*time.Time, error) {
	v, ok := raw[key].(string)
	if !ok || v == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s %q", shared.ErrValidation, key, v)
	}
	return &parsed, nil
}
