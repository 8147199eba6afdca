// Command seed creates demo customers with distinct payment personas in
// ERPNext so the scoring endpoints have data to rank.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/noah-isme/payscore/internal/erpnext"
)

type invoiceSpec struct {
	postedDaysAgo int
	dueDaysAgo    int // negative means not yet due
	amount        float64
	paid          bool
}

type persona struct {
	label    string
	invoices []invoiceSpec
}

var personas = []persona{
	{
		label: "High Risk Customer",
		invoices: []invoiceSpec{
			{postedDaysAgo: 45, dueDaysAgo: 30, amount: 5000},
			{postedDaysAgo: 35, dueDaysAgo: 20, amount: 3000},
			{postedDaysAgo: 30, dueDaysAgo: 15, amount: 7000},
			{postedDaysAgo: 25, dueDaysAgo: 10, amount: 4500},
			{postedDaysAgo: 20, dueDaysAgo: 5, amount: 2000},
			{postedDaysAgo: 15, dueDaysAgo: 0, amount: 6000},
		},
	},
	{
		label: "Medium Risk Customer",
		invoices: []invoiceSpec{
			{postedDaysAgo: 30, dueDaysAgo: 15, amount: 3000},
			{postedDaysAgo: 20, dueDaysAgo: 5, amount: 2000},
			{postedDaysAgo: 10, dueDaysAgo: -5, amount: 1500},
		},
	},
	{
		label: "Reliable Customer",
		invoices: []invoiceSpec{
			{postedDaysAgo: 90, dueDaysAgo: 60, amount: 4000, paid: true},
			{postedDaysAgo: 60, dueDaysAgo: 30, amount: 2500, paid: true},
			{postedDaysAgo: 30, dueDaysAgo: -30, amount: 3500, paid: true},
		},
	},
}

func main() {
	_ = godotenv.Load()

	client := erpnext.NewClient(
		getenv("ERPNEXT_URL", "http://localhost:8080"),
		os.Getenv("ERPNEXT_API_KEY"),
		os.Getenv("ERPNEXT_API_SECRET"),
		30*time.Second,
	)
	ctx := context.Background()

	if err := client.Ping(ctx); err != nil {
		log.Fatalf("erpnext unreachable: %v", err)
	}

	for _, p := range personas {
		fmt.Printf("→ Seeding %s...\n", p.label)
		if err := seedPersona(ctx, client, p); err != nil {
			log.Fatalf("seed %s: %v", p.label, err)
		}
	}
	fmt.Println("Done. Try: curl http://localhost:8000/api/v1/customers/payment-scores")
}

func seedPersona(ctx context.Context, client *erpnext.Client, p persona) error {
	name := fmt.Sprintf("%s %04d", p.label, rand.Intn(10000))
	customer, err := client.CreateDocument(ctx, "Customer", erpnext.Record{
		"customer_name": name,
		"customer_type": "Company",
	})
	if err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	customerID, _ := customer["name"].(string)
	fmt.Printf("   customer %s\n", customerID)

	now := time.Now()
	for i, spec := range p.invoices {
		doc := erpnext.Record{
			"customer":     customerID,
			"posting_date": now.AddDate(0, 0, -spec.postedDaysAgo).Format("2006-01-02"),
			"due_date":     now.AddDate(0, 0, -spec.dueDaysAgo).Format("2006-01-02"),
			"items": []erpnext.Record{
				{"item_code": "Sample Item", "qty": 1, "rate": spec.amount},
			},
		}
		invoice, err := client.CreateDocument(ctx, "Sales Invoice", doc)
		if err != nil {
			return fmt.Errorf("create invoice %d: %w", i+1, err)
		}
		invoiceID, _ := invoice["name"].(string)
		fmt.Printf("   invoice %s ($%.2f)\n", invoiceID, spec.amount)

		if spec.paid {
			_, err := client.CreateDocument(ctx, "Payment Entry", erpnext.Record{
				"payment_type": "Receive",
				"party_type":   "Customer",
				"party":        customerID,
				"posting_date": now.AddDate(0, 0, -spec.dueDaysAgo-1).Format("2006-01-02"),
				"paid_amount":  spec.amount,
				"references": []erpnext.Record{
					{"reference_doctype": "Sales Invoice", "reference_name": invoiceID, "allocated_amount": spec.amount},
				},
			})
			if err != nil {
				return fmt.Errorf("create payment for invoice %d: %w", i+1, err)
			}
		}
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
