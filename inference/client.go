// Package inference provides the streaming client for the managed inference
// endpoint and the decoder for its line-oriented event protocol.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the inference endpoint client.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates a new inference client.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// EventHandler is called for each decoded event. Returning an error stops
// the stream.
type EventHandler func(Event) error

// StreamCompletion opens a streaming completion request carrying the full
// message history and feeds decoded events to fn in delivery order.
//
// A non-OK response short-circuits without entering line parsing. A stream
// that ends without the explicit sentinel still produces a single end event.
func (c *Client) StreamCompletion(ctx context.Context, messages []ChatMessage, fn EventHandler) error {
	req := &ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
			return fmt.Errorf("inference API error [%d]: %s (type: %s)", resp.StatusCode, errResp.Error.Message, errResp.Error.Type)
		}
		return fmt.Errorf("inference API error [%d]: %s", resp.StatusCode, string(respBody))
	}

	dec := NewDecoder()
	buf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range dec.Feed(buf[:n]) {
				if err := fn(ev); err != nil {
					return err
				}
			}
			if dec.Done() {
				return nil
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				// Trailing bytes that never formed a complete line are
				// dropped; the server terminates the last data line.
				return fn(Event{Kind: KindEnd})
			}
			return fmt.Errorf("failed to read stream: %w", readErr)
		}
	}
}

// setHeaders sets common request headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
