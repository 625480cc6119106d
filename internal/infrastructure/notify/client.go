// Package notify implements the SMS, chat bot and user directory clients
// used to tell requesters and customers about load outcomes.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loadengine/backend/internal/infrastructure/telemetry"
)

// maxResponseSize caps response bodies read from the notification services
const maxResponseSize = 1 << 20

// Errors returned by the notification clients
var (
	ErrNotConfigured  = errors.New("notify: endpoint not configured")
	ErrRequestFailed  = errors.New("notify: request failed")
	ErrInvalidPayload = errors.New("notify: invalid response")
)

// Config holds the notification service endpoints
type Config struct {
	SMSURL         string
	MessengerURL   string
	TelegramURL    string
	ViberURL       string
	UserURL        string
	APIKey         string
	TimeoutSeconds int
}

// client is a JSON client for one internal service
type client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func newClient(baseURL, apiKey string, timeoutSeconds int) *client {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 10
	}
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}
}

func (c *client) do(ctx context.Context, method, path string, in, out any) (err error) {
	if c.baseURL == "" {
		return ErrNotConfigured
	}

	ctx, span := telemetry.StartClientSpan(ctx, "notify", strings.ToLower(method))
	telemetry.SetAttribute(span, "http.target", path)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("notify: failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("notify: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("notify: failed to read response: %w", err)
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrHTTPStatus, resp.StatusCode)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s %s: HTTP %d", ErrRequestFailed, method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	return nil
}
