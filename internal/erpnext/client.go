// Package erpnext wraps the ERPNext REST API used as the system of record.
package erpnext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/noah-isme/payscore/internal/shared"
)

// Record is a raw ERPNext document keyed by field name. Field sets are
// ERP-defined; optional keys may be absent.
type Record map[string]any

// Client wraps interactions with the ERPNext API.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL, apiKey, apiSecret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ping checks if the remote ERPNext instance is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/method/ping", c.baseURL), nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: erpnext returned status %d", shared.ErrUpstream, resp.StatusCode)
	}
	return nil
}

// ListCustomers returns up to limit customer records.
func (c *Client) ListCustomers(ctx context.Context, limit int) ([]Record, error) {
	params := url.Values{}
	params.Set("limit_page_length", strconv.Itoa(limit))
	params.Set("fields", `["name", "customer_name", "customer_type", "territory", "customer_group"]`)
	return c.list(ctx, "/api/resource/Customer", params)
}

// GetCustomer fetches a single customer document.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (Record, error) {
	endpoint := fmt.Sprintf("%s/api/resource/Customer/%s", c.baseURL, url.PathEscape(customerID))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data Record `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode customer: %v", shared.ErrUpstream, err)
	}
	return payload.Data, nil
}

// GetCustomerInvoices fetches all sales invoices for a customer.
func (c *Client) GetCustomerInvoices(ctx context.Context, customerID string) ([]Record, error) {
	params := url.Values{}
	params.Set("filters", fmt.Sprintf(`[["customer", "=", %q]]`, customerID))
	params.Set("fields", `["name", "customer", "posting_date", "due_date", "grand_total", "outstanding_amount", "status", "docstatus"]`)
	params.Set("limit_page_length", "0")
	return c.list(ctx, "/api/resource/Sales Invoice", params)
}

// GetCustomerPayments fetches all payment entries for a customer.
func (c *Client) GetCustomerPayments(ctx context.Context, customerID string) ([]Record, error) {
	params := url.Values{}
	params.Set("filters", fmt.Sprintf(`[["party", "=", %q]]`, customerID))
	params.Set("fields", `["name", "party", "posting_date", "paid_amount", "payment_type", "reference_no", "mode_of_payment", "reference_date"]`)
	params.Set("limit_page_length", "0")
	return c.list(ctx, "/api/resource/Payment Entry", params)
}

// CreateDocument inserts a new document of the given doctype. Used by the
// seeding utility only; score computation never writes back.
func (c *Client) CreateDocument(ctx context.Context, doctype string, doc Record) (Record, error) {
	endpoint := fmt.Sprintf("%s/api/resource/%s", c.baseURL, url.PathEscape(doctype))
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: create %s returned status %d", shared.ErrUpstream, doctype, resp.StatusCode)
	}
	var created struct {
		Data Record `json:"data"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("%w: decode created %s: %v", shared.ErrUpstream, doctype, err)
	}
	return created.Data, nil
}

func (c *Client) list(ctx context.Context, path string, params url.Values) ([]Record, error) {
	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data []Record `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode listing: %v", shared.ErrUpstream, err)
	}
	return payload.Data, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: erpnext document missing", shared.ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: erpnext returned status %d", shared.ErrUpstream, resp.StatusCode)
	}
	return body, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", c.apiKey, c.apiSecret))
	}
	req.Header.Set("Accept", "application/json")
}
