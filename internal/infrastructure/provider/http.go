package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/loadengine/backend/internal/infrastructure/telemetry"
)

// maxResponseSize is the maximum provider response body read (1MB)
const maxResponseSize = 1 << 20

// postJSON sends body to url and returns the response status and body.
// A non-2xx status is not an error here; callers decide from the body.
func postJSON(ctx context.Context, client *http.Client, peer, url string, body []byte, decorate func(*http.Request)) (status int, respBody []byte, err error) {
	ctx, span := telemetry.StartClientSpan(ctx, peer, "post")
	defer func() {
		if status != 0 {
			telemetry.SetAttribute(span, telemetry.SpanAttrHTTPStatus, status)
		}
		telemetry.RecordError(span, err)
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if decorate != nil {
		decorate(req)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
