// Package entitlement verifies subscription state against the store backend.
package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client queries the entitlement backend for an owner's active products.
// It implements domain.EntitlementProvider.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient constructs a Client with a sane request timeout.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

type entitlementResponse struct {
	Products []struct {
		ProductID string `json:"product_id"`
		Active    bool   `json:"active"`
	} `json:"products"`
}

// ActiveProducts returns the product IDs with a verified active subscription.
func (c *Client) ActiveProducts(ctx context.Context, ownerID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/v1/subscribers/%s/entitlements", strings.TrimRight(c.BaseURL, "/"), url.PathEscape(ownerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create entitlement request: %w", err)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute entitlement request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read entitlement response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("entitlement request failed with status %d", resp.StatusCode)
	}

	var parsed entitlementResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode entitlement response: %w", err)
	}

	products := make([]string, 0, len(parsed.Products))
	for _, p := range parsed.Products {
		if p.Active {
			products = append(products, p.ProductID)
		}
	}
	return products, nil
}
