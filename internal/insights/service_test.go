package insights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/payscore/internal/scoring"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func daysAgo(days int) time.Time {
	return testNow.AddDate(0, 0, -days)
}

func overdueInvoice(postedDaysAgo, dueDaysAgo int) scoring.Invoice {
	due := daysAgo(dueDaysAgo)
	return scoring.Invoice{
		ID:          "INV",
		PostingDate: daysAgo(postedDaysAgo),
		DueDate:     &due,
		GrandTotal:  1000,
		Outstanding: 1000,
		Status:      "Overdue",
	}
}

func onTimeInvoice(postedDaysAgo int) scoring.Invoice {
	due := daysAgo(postedDaysAgo - 30)
	return scoring.Invoice{
		ID:          "INV",
		PostingDate: daysAgo(postedDaysAgo),
		DueDate:     &due,
		GrandTotal:  1000,
		Outstanding: 0,
		Status:      "Paid",
	}
}

func TestNarrativeLowRisk(t *testing.T) {
	svc := NewService().WithNow(fixedNow)

	text := svc.Narrative(scoring.CustomerScore{
		CustomerID:         "CUST-00001",
		CustomerName:       "ABC Corporation",
		Score:              92.5,
		RiskLevel:          scoring.RiskLow,
		Action:             scoring.ActionNone,
		PaymentReliability: 95,
		AvgPaymentDelay:    0,
		TotalInvoices:      10,
		TotalPaid:          10,
	})

	require.Contains(t, text, "ABC Corporation is a low-risk customer")
	require.Contains(t, text, "Highly reliable with 95.0% on-time payment rate.")
	require.Contains(t, text, "Always pays on or before due date.")
	require.Contains(t, text, "Transaction history: 10/10 invoices paid.")
	require.Contains(t, text, "Consider extended payment terms or credit increase.")
	require.NotContains(t, text, "outstanding balance")
}

func TestNarrativeHighRiskGroupsCurrency(t *testing.T) {
	svc := NewService().WithNow(fixedNow)

	text := svc.Narrative(scoring.CustomerScore{
		CustomerName:       "Delinquent Ltd",
		Score:              15,
		RiskLevel:          scoring.RiskHigh,
		Action:             scoring.ActionFollowUp,
		PaymentReliability: 40,
		AvgPaymentDelay:    15.5,
		TotalInvoices:      8,
		TotalPaid:          3,
		TotalOutstanding:   1234567.89,
	})

	require.Contains(t, text, "Delinquent Ltd is high-risk.")
	require.Contains(t, text, "Low reliability with only 40.0% payments on time.")
	require.Contains(t, text, "Average delay of 15.5 days indicates payment challenges.")
	require.Contains(t, text, "Current outstanding balance: $1,234,567.89")
	require.Contains(t, text, "Require advance payment or reduce credit limits.")
}

func TestNarrativeMiddleBandHasNoRecommendation(t *testing.T) {
	svc := NewService().WithNow(fixedNow)

	text := svc.Narrative(scoring.CustomerScore{
		CustomerName:       "Mid Corp",
		Score:              60,
		RiskLevel:          scoring.RiskMedium,
		Action:             scoring.ActionReminder,
		PaymentReliability: 75,
		AvgPaymentDelay:    3.5,
		TotalInvoices:      4,
		TotalPaid:          3,
		TotalOutstanding:   500,
	})

	require.Contains(t, text, "Mid Corp shows moderate risk.")
	require.Contains(t, text, "Moderate reliability at 75.0% on-time payments.")
	require.Contains(t, text, "Typically pays within 3.5 days of due date.")
	require.NotContains(t, text, "Recommended:")
}

func TestNarrativeRecommendationBoundaries(t *testing.T) {
	svc := NewService().WithNow(fixedNow)

	base := scoring.CustomerScore{CustomerName: "Edge Corp", RiskLevel: scoring.RiskMedium}

	base.Score = 80
	require.Contains(t, svc.Narrative(base), "extended payment terms")
	base.Score = 79.99
	require.NotContains(t, svc.Narrative(base), "Recommended:")
	base.Score = 40
	require.Contains(t, svc.Narrative(base), "advance payment")
	base.Score = 40.01
	require.NotContains(t, svc.Narrative(base), "Recommended:")
}

func TestTrendNoData(t *testing.T) {
	svc := NewService().WithNow(fixedNow)
	require.Equal(t, TrendNoData, svc.Trend(nil))
}

func TestTrendSingleInvoiceIsStable(t *testing.T) {
	svc := NewService().WithNow(fixedNow)
	require.Equal(t, TrendStable, svc.Trend([]scoring.Invoice{overdueInvoice(40, 10)}))
}

func TestTrendImproving(t *testing.T) {
	svc := NewService().WithNow(fixedNow)

	invoices := []scoring.Invoice{
		overdueInvoice(120, 90),
		overdueInvoice(100, 70),
		onTimeInvoice(60),
		onTimeInvoice(30),
	}

	require.Equal(t, TrendImproving, svc.Trend(invoices))
}

func TestTrendWorsening(t *testing.T) {
	svc := NewService().WithNow(fixedNow)

	invoices := []scoring.Invoice{
		onTimeInvoice(120),
		onTimeInvoice(100),
		overdueInvoice(60, 30),
		overdueInvoice(40, 10),
	}

	require.Equal(t, TrendWorsening, svc.Trend(invoices))
}

func TestTrendStable(t *testing.T) {
	svc := NewService().WithNow(fixedNow)

	invoices := []scoring.Invoice{
		overdueInvoice(120, 90),
		overdueInvoice(100, 70),
		overdueInvoice(75, 85),
		overdueInvoice(60, 75),
	}

	require.Equal(t, TrendStable, svc.Trend(invoices))
}

func TestTrendIgnoresInputOrder(t *testing.T) {
	svc := NewService().WithNow(fixedNow)

	invoices := []scoring.Invoice{
		onTimeInvoice(30),
		overdueInvoice(120, 90),
		onTimeInvoice(60),
		overdueInvoice(100, 70),
	}

	require.Equal(t, TrendImproving, svc.Trend(invoices))
}
