/**
 * @description
 * Client for the billing service's internal endpoints.
 */
package billingclient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client provides methods to interact with the billing service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new billing service client.
func NewClient(baseURL, apiKey string) *Client {
	normalizedURL := strings.TrimSuffix(baseURL, "/")
	return &Client{
		baseURL:    normalizedURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// RefreshBilling promotes overdue fees and generates the current period.
func (c *Client) RefreshBilling(ctx context.Context) error {
	return c.post(ctx, "/internal/billing/refresh")
}

// GenerateFees generates the current period's fees.
func (c *Client) GenerateFees(ctx context.Context) error {
	return c.post(ctx, "/internal/billing/fees/generate")
}

// RunOverdue promotes fees past their due date.
func (c *Client) RunOverdue(ctx context.Context) error {
	return c.post(ctx, "/internal/billing/overdue/run")
}

func (c *Client) post(ctx context.Context, path string) error {
	if c.baseURL == "" {
		return fmt.Errorf("billing service base URL is not configured")
	}

	url := fmt.Sprintf("%s%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer([]byte("{}")))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Internal-API-Key", c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("billing service returned status %d for %s", resp.StatusCode, path)
	}

	return nil
}
