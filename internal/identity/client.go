// Package identity talks to the auth provider for account lifecycle calls.
package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"example.com/tri/internal/domain"
)

// Client deletes owner identities at the auth provider. It implements
// domain.AccountProvider.
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

// DeleteAccount removes the owner's identity. The provider demands a recent
// credential for this operation; a 401 maps to ErrReauthenticationRequired so
// the caller can prompt for a fresh sign-in and retry.
func (c *Client) DeleteAccount(ctx context.Context, ownerID string) error {
	endpoint := fmt.Sprintf("%s/v1/users/%s", strings.TrimRight(c.BaseURL, "/"), url.PathEscape(ownerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create account delete request: %w", err)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("execute account delete request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		// Already gone; deletion is idempotent.
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: provider returned status %d", domain.ErrReauthenticationRequired, resp.StatusCode)
	default:
		return fmt.Errorf("account delete failed with status %d", resp.StatusCode)
	}
}
