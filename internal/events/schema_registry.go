package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SchemaRegistry is a minimal Confluent Schema Registry client covering the
// register and lookup operations the dispatcher needs.
type SchemaRegistry struct {
	baseURL string
	client  *http.Client
}

// NewSchemaRegistry constructs a client for the registry at baseURL.
func NewSchemaRegistry(baseURL string) *SchemaRegistry {
	return &SchemaRegistry{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// EnsureSchema returns the registry ID for the subject's schema, registering
// it when the subject has no versions yet.
func (r *SchemaRegistry) EnsureSchema(ctx context.Context, subject, schema string) (int, error) {
	id, err := r.latestID(ctx, subject)
	if err == nil {
		return id, nil
	}

	return r.register(ctx, subject, schema)
}

func (r *SchemaRegistry) latestID(ctx context.Context, subject string) (int, error) {
	url := fmt.Sprintf("%s/subjects/%s/versions/latest", r.baseURL, subject)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/vnd.schemaregistry.v1+json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("schema registry: latest version for %s: status %d", subject, resp.StatusCode)
	}

	var body struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	return body.ID, nil
}

func (r *SchemaRegistry) register(ctx context.Context, subject, schema string) (int, error) {
	payload, err := json.Marshal(map[string]string{
		"schema":     schema,
		"schemaType": "JSON",
	})
	if err != nil {
		return 0, err
	}

	url := fmt.Sprintf("%s/subjects/%s/versions", r.baseURL, subject)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/vnd.schemaregistry.v1+json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("schema registry: register %s: status %d", subject, resp.StatusCode)
	}

	var body struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	return body.ID, nil
}
