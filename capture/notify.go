package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Conversion is the payload of a best-effort ad-conversion ping.
type Conversion struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	SourceURL string `json:"source_url"`
	EventName string `json:"event_name"`
}

// Notifier fires a conversion ping. Outcomes never gate a capture.
type Notifier interface {
	Name() string
	NotifyConversion(ctx context.Context, conv Conversion) error
}

// HTTPNotifier posts conversion events to a fixed endpoint. An empty
// endpoint disables it.
type HTTPNotifier struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

// NewHTTPNotifier creates a notifier for one ad platform endpoint.
func NewHTTPNotifier(name, endpoint string, timeout time.Duration) *HTTPNotifier {
	return &HTTPNotifier{
		name:     name,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the platform name used in logs.
func (n *HTTPNotifier) Name() string {
	return n.name
}

// NotifyConversion posts the conversion event.
func (n *HTTPNotifier) NotifyConversion(ctx context.Context, conv Conversion) error {
	if n.endpoint == "" {
		return nil
	}

	body, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversion: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send conversion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s returned status %d", n.name, resp.StatusCode)
	}
	return nil
}
