package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"barecourier/internal/types"
)

// postJSON marshals payload, sends it through the retry client with a bearer
// key and returns the final response. Non-2xx responses are returned as-is.
func postJSON(ctx context.Context, c *RetryClient, url string, apiKey types.SecretString, payload any, cfg RetryConfig) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal request payload", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if !apiKey.IsZero() {
		req.Header.Set("Authorization", "Bearer "+apiKey.Unmask())
	}

	res, err := c.FetchWithRetry(ctx, req, cfg)
	if err != nil {
		return nil, err
	}
	return res.Response, nil
}

// upstreamError reads a failed response and names the status and message.
func upstreamError(code types.ErrorCode, who string, resp *http.Response) *types.AppError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	msg := string(raw)
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		code = types.ErrCodeUpstreamRateLimited
	}
	return types.NewAppError(code, fmt.Sprintf("%s returned %d: %s", who, resp.StatusCode, msg), nil).
		WithDetails(map[string]any{"status": resp.StatusCode})
}
