package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/grupomeraki/leadchat/domain"
)

// LeadStore persists captured contacts.
type LeadStore interface {
	CreateLead(ctx context.Context, rec *domain.CaptureRecord) error
}

// CRMClient posts lead records to the agency CRM.
type CRMClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewCRMClient creates a new CRM client.
func NewCRMClient(baseURL, apiKey string, timeout time.Duration) *CRMClient {
	return &CRMClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateLead persists one lead record. It is called exactly once per capture
// and never retried here.
func (c *CRMClient) CreateLead(ctx context.Context, rec *domain.CaptureRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal lead: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/leads", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send lead: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("CRM error [%d]: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
