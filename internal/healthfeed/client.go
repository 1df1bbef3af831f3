package healthfeed

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"example.com/tri/internal/domain"
)

// Client is an HTTP implementation of Feed against the wellness gateway.
type Client struct {
	BaseURL    string
	AuthToken  string
	HTTPClient *http.Client
}

// NewClient constructs a Client with a sane request timeout.
func NewClient(baseURL, authToken string) *Client {
	return &Client{
		BaseURL:    baseURL,
		AuthToken:  authToken,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// RequestAuthorization implements Feed.
func (c *Client) RequestAuthorization(ctx context.Context, ownerID string) error {
	endpoint := fmt.Sprintf("%s/v1/owners/%s/authorize", strings.TrimRight(c.BaseURL, "/"), url.PathEscape(ownerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte(`{"scope":"workouts:read"}`)))
	if err != nil {
		return fmt.Errorf("create authorization request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("execute authorization request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: gateway returned status %d", domain.ErrAuthorizationDenied, resp.StatusCode)
	default:
		return fmt.Errorf("authorization request failed with status %d", resp.StatusCode)
	}
}

type deltaResponse struct {
	Added            []Item   `json:"added"`
	DeletedSourceIDs []string `json:"deleted_source_ids"`
	NewAnchor        string   `json:"new_anchor"`
}

// FetchDelta implements Feed. The anchor travels base64-encoded in a query
// parameter and comes back the same way; its contents stay opaque end to end.
func (c *Client) FetchDelta(ctx context.Context, ownerID string, anchor []byte, startDate time.Time) (Delta, error) {
	endpoint := fmt.Sprintf("%s/v1/owners/%s/delta", strings.TrimRight(c.BaseURL, "/"), url.PathEscape(ownerID))

	params := url.Values{}
	if len(anchor) > 0 {
		params.Set("anchor", base64.StdEncoding.EncodeToString(anchor))
	} else if !startDate.IsZero() {
		params.Set("start", startDate.UTC().Format(time.RFC3339))
	}
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Delta{}, fmt.Errorf("create delta request: %w", err)
	}
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return Delta{}, fmt.Errorf("execute delta request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Delta{}, fmt.Errorf("read delta response: %w", err)
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return Delta{}, fmt.Errorf("%w: gateway returned status %d", domain.ErrAuthorizationDenied, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Delta{}, fmt.Errorf("delta request failed with status %d", resp.StatusCode)
	}

	var parsed deltaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Delta{}, fmt.Errorf("decode delta response: %w", err)
	}

	newAnchor, err := base64.StdEncoding.DecodeString(parsed.NewAnchor)
	if err != nil {
		return Delta{}, fmt.Errorf("decode delta anchor: %w", err)
	}

	return Delta{
		Added:            parsed.Added,
		DeletedSourceIDs: parsed.DeletedSourceIDs,
		NewAnchor:        newAnchor,
	}, nil
}
