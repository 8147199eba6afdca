package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func newTestAnalyzer(t *testing.T, handler http.HandlerFunc, timeout time.Duration) (*AIAnalyzer, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	client := openai.NewClientWithConfig(cfg)

	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	return NewAIAnalyzer(client, "test-model", timeout, logger).WithNow(fixedNow), srv
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func completionResponse(content string) string {
	payload := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
	encoded, _ := json.Marshal(payload)
	return string(encoded)
}

func aiTestInvoices() []Invoice {
	return []Invoice{
		paidInvoice("INV-001", 90),
		unpaidInvoice("INV-002", 12, 4000),
		unpaidInvoice("INV-003", 3, 1500),
	}
}

func TestAIAnalyzerSuccessRederivesRiskLocally(t *testing.T) {
	reply := `{"customer_name": "ABC Corporation", "payment_score": 62, "risk_level": "Low", "recommended_action": "None", "insights": "Pays most invoices with modest delays."}`
	analyzer, _ := newTestAnalyzer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionResponse(reply))
	}, time.Second)

	score := analyzer.Analyze(context.Background(), testCustomer(), aiTestInvoices())

	require.Equal(t, 62.0, score.Score)
	// The model claimed Low/None; local thresholds win.
	require.Equal(t, RiskMedium, score.RiskLevel)
	require.Equal(t, ActionReminder, score.Action)
	require.Equal(t, "Pays most invoices with modest delays.", score.Insights)
	require.Equal(t, 3, score.TotalInvoices)
	require.Equal(t, 1, score.TotalPaid)
	require.Equal(t, 2, score.OverdueCount)
	require.Equal(t, 5500.0, score.TotalOutstanding)
	// Looser reliability definition: all paid invoices count.
	require.InDelta(t, 33.33, score.PaymentReliability, 0.01)
	require.InDelta(t, 5.0, score.AvgPaymentDelay, 0.01)
}

func TestAIAnalyzerStripsMarkdownFences(t *testing.T) {
	reply := "```json\n{\"customer_name\": \"ABC Corporation\", \"payment_score\": 85, \"risk_level\": \"Low\", \"recommended_action\": \"None\", \"insights\": \"Excellent payer.\"}\n```"
	analyzer, _ := newTestAnalyzer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionResponse(reply))
	}, time.Second)

	score := analyzer.Analyze(context.Background(), testCustomer(), aiTestInvoices())

	require.Equal(t, 85.0, score.Score)
	require.Equal(t, RiskLow, score.RiskLevel)
	require.Equal(t, ActionNone, score.Action)
}

func TestAIAnalyzerFallbackOnMalformedJSON(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionResponse("the customer seems fine to me"))
	}, time.Second)

	score := analyzer.Analyze(context.Background(), testCustomer(), aiTestInvoices())

	requireFallback(t, score)
}

func TestAIAnalyzerFallbackOnTransportError(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}, time.Second)

	score := analyzer.Analyze(context.Background(), testCustomer(), aiTestInvoices())

	requireFallback(t, score)
}

func TestAIAnalyzerFallbackOnTimeout(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionResponse(`{"payment_score": 90}`))
	}, 50*time.Millisecond)

	score := analyzer.Analyze(context.Background(), testCustomer(), aiTestInvoices())

	requireFallback(t, score)
}

func TestAIAnalyzerFallbackOnMissingScore(t *testing.T) {
	reply := `{"customer_name": "ABC Corporation", "risk_level": "Low", "insights": "no score here"}`
	analyzer, _ := newTestAnalyzer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionResponse(reply))
	}, time.Second)

	requireFallback(t, analyzer.Analyze(context.Background(), testCustomer(), aiTestInvoices()))
}

func TestAIAnalyzerFallbackOnOutOfRangeScore(t *testing.T) {
	reply := `{"customer_name": "ABC Corporation", "payment_score": 150, "risk_level": "Low", "recommended_action": "None", "insights": "suspiciously good"}`
	analyzer, _ := newTestAnalyzer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionResponse(reply))
	}, time.Second)

	requireFallback(t, analyzer.Analyze(context.Background(), testCustomer(), aiTestInvoices()))
}

// requireFallback asserts the fixed neutral score of the fallback path:
// counts reflect the real invoices while delay and reliability stay zero.
func requireFallback(t *testing.T, score CustomerScore) {
	t.Helper()
	require.Equal(t, 50.0, score.Score)
	require.Equal(t, RiskMedium, score.RiskLevel)
	require.Equal(t, ActionReminder, score.Action)
	require.Equal(t, 0.0, score.AvgPaymentDelay)
	require.Equal(t, 0.0, score.PaymentReliability)
	require.Equal(t, 3, score.TotalInvoices)
	require.Equal(t, 1, score.TotalPaid)
	require.Equal(t, 2, score.OverdueCount)
	require.Equal(t, 5500.0, score.TotalOutstanding)
	require.Contains(t, score.Insights, "AI analysis unavailable")
	require.Contains(t, score.Insights, "Error:")
}

func TestParseAnalysisFenceWithoutLanguageTag(t *testing.T) {
	result, err := parseAnalysis("```\n{\"payment_score\": 40, \"insights\": \"x\"}\n```")
	require.NoError(t, err)
	require.Equal(t, 40.0, *result.PaymentScore)
}
