package scoring

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

//go:embed analysis_prompt.txt
var analysisPrompt string

// Marker phrase included in every fallback insight so failures are
// recognizable downstream.
const fallbackInsight = "AI analysis unavailable. Using fallback assessment."

// AIAnalyzer delegates the scoring decision to an external reasoning
// service while keeping the deterministic output contract. Analyze is a
// total function: every failure mode collapses into the fallback score.
type AIAnalyzer struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewAIAnalyzer builds an analyzer around a chat-completion client. Each
// call is bounded by timeout.
func NewAIAnalyzer(client *openai.Client, model string, timeout time.Duration, logger *slog.Logger) *AIAnalyzer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AIAnalyzer{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// WithNow overrides the analyzer clock for testing.
func (a *AIAnalyzer) WithNow(fn func() time.Time) *AIAnalyzer {
	if fn != nil {
		a.now = fn
	}
	return a
}

// customerMetrics is the aggregated (never per-invoice) payload sent to the
// reasoning service.
type customerMetrics struct {
	CustomerName              string  `json:"customer_name"`
	TotalInvoices             int     `json:"total_invoices"`
	InvoicesPaidCount         int     `json:"invoices_paid_count"`
	OverdueInvoices           int     `json:"overdue_invoices"`
	AvgPaymentDelayDays       float64 `json:"avg_payment_delay_days"`
	PaymentReliabilityPercent float64 `json:"payment_reliability_percent"`
	TotalOutstandingAmount    float64 `json:"total_outstanding_amount"`
}

// analysisResult is the strict JSON shape expected from the service.
type analysisResult struct {
	CustomerName      string   `json:"customer_name"`
	PaymentScore      *float64 `json:"payment_score"`
	RiskLevel         string   `json:"risk_level"`
	RecommendedAction string   `json:"recommended_action"`
	Insights          string   `json:"insights"`
}

// Analyze scores one customer through the reasoning service. The service
// supplies only the numeric score and the narrative; risk level and action
// are re-derived locally with the same thresholds the rule engine uses.
func (a *AIAnalyzer) Analyze(ctx context.Context, customer Customer, invoices []Invoice) CustomerScore {
	metrics := a.aggregate(customer, invoices)

	result, err := a.callModel(ctx, metrics)
	if err != nil {
		a.logger.Warn("ai analysis failed, using fallback",
			slog.String("customer", customer.ID),
			slog.Any("error", err))
		return a.fallback(customer, invoices, err)
	}

	score := *result.PaymentScore
	return CustomerScore{
		CustomerID:         customer.ID,
		CustomerName:       customer.Name,
		Score:              round2(score),
		RiskLevel:          riskLevelFor(score),
		Action:             actionFor(score),
		AvgPaymentDelay:    metrics.AvgPaymentDelayDays,
		PaymentReliability: metrics.PaymentReliabilityPercent,
		TotalInvoices:      metrics.TotalInvoices,
		TotalPaid:          metrics.InvoicesPaidCount,
		TotalOutstanding:   metrics.TotalOutstandingAmount,
		OverdueCount:       metrics.OverdueInvoices,
		Insights:           result.Insights,
		LastUpdated:        a.now(),
	}
}

// aggregate computes the signal summary submitted to the model. Reliability
// here counts every paid invoice, on time or not; the rule engine's
// reliability additionally requires on-time payment. The two definitions
// are intentionally distinct metrics.
func (a *AIAnalyzer) aggregate(customer Customer, invoices []Invoice) customerMetrics {
	now := a.now()
	totalInvoices := len(invoices)

	var paid, overdue, totalDelay int
	for _, inv := range invoices {
		delay := inv.DaysOverdue(now)
		totalDelay += delay
		if inv.IsPaid() {
			paid++
		}
		if delay > 0 && !inv.IsPaid() {
			overdue++
		}
	}

	var avgDelay, reliability float64
	if totalInvoices > 0 {
		avgDelay = float64(totalDelay) / float64(totalInvoices)
		reliability = float64(paid) / float64(totalInvoices) * 100
	}

	return customerMetrics{
		CustomerName:              customer.Name,
		TotalInvoices:             totalInvoices,
		InvoicesPaidCount:         paid,
		OverdueInvoices:           overdue,
		AvgPaymentDelayDays:       round2(avgDelay),
		PaymentReliabilityPercent: round2(reliability),
		TotalOutstandingAmount:    round2(totalOutstanding(invoices)),
	}
}

func (a *AIAnalyzer) callModel(ctx context.Context, metrics customerMetrics) (*analysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	data, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`%s

CUSTOMER DATA
%s

OUTPUT FORMAT (JSON ONLY)
{
  "customer_name": "<string>",
  "payment_score": <integer 0-100>,
  "risk_level": "Low | Medium | High",
  "recommended_action": "None | Friendly reminder | Immediate follow-up",
  "insights": "<2-3 sentence business explanation>"
}

Return JSON only. No markdown. No extra text.`, analysisPrompt, data)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0.2,
		MaxTokens:   500,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices")
	}

	return parseAnalysis(resp.Choices[0].Message.Content)
}

// parseAnalysis decodes a model reply defensively, tolerating markdown code
// fences around the JSON object.
func parseAnalysis(raw string) (*analysisResult, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		parts := strings.Split(text, "```")
		if len(parts) < 2 {
			return nil, fmt.Errorf("unterminated code fence in response")
		}
		text = parts[1]
		text = strings.TrimPrefix(text, "json")
		text = strings.TrimSpace(text)
	}

	var result analysisResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("parse analysis response: %w", err)
	}
	if result.PaymentScore == nil {
		return nil, fmt.Errorf("analysis response missing payment_score")
	}
	if *result.PaymentScore < 0 || *result.PaymentScore > 100 {
		return nil, fmt.Errorf("payment_score %v out of range", *result.PaymentScore)
	}
	return &result, nil
}

// fallback is the fixed neutral score returned on any analysis failure.
// Delay and reliability stay at zero here, unlike the rule engine's
// insufficient-history default, so the two paths remain distinguishable.
func (a *AIAnalyzer) fallback(customer Customer, invoices []Invoice, cause error) CustomerScore {
	now := a.now()
	var paid, overdue int
	for _, inv := range invoices {
		if inv.IsPaid() {
			paid++
		}
		if inv.DaysOverdue(now) > 0 && !inv.IsPaid() {
			overdue++
		}
	}
	return CustomerScore{
		CustomerID:         customer.ID,
		CustomerName:       customer.Name,
		Score:              50,
		RiskLevel:          RiskMedium,
		Action:             ActionReminder,
		AvgPaymentDelay:    0.0,
		PaymentReliability: 0.0,
		TotalInvoices:      len(invoices),
		TotalPaid:          paid,
		TotalOutstanding:   round2(totalOutstanding(invoices)),
		OverdueCount:       overdue,
		Insights:           fmt.Sprintf("%s Error: %v", fallbackInsight, cause),
		LastUpdated:        now,
	}
}
