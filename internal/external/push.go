package external

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"barecourier/internal/types"
)

// PushClientConfig configures PushClient.
type PushClientConfig struct {
	EndpointURL string
	APIKey      types.SecretString
	Retry       RetryConfig
	Logger      *slog.Logger
}

// PushClient posts push requests to the web-push sender service, which fans
// the message out to the user's stored subscriptions.
type PushClient struct {
	base     *RetryClient
	endpoint string
	apiKey   types.SecretString
	retry    RetryConfig
	logger   *slog.Logger
}

// NewPushClient creates a PushClient on top of base.
func NewPushClient(base *RetryClient, cfg PushClientConfig) *PushClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PushClient{
		base:     base,
		endpoint: strings.TrimSuffix(cfg.EndpointURL, "/"),
		apiKey:   cfg.APIKey,
		retry:    cfg.Retry,
		logger:   logger,
	}
}

type pushResponse struct {
	Success       bool     `json:"success"`
	Sent          int      `json:"sent"`
	Error         string   `json:"error"`
	GoneEndpoints []string `json:"gone_endpoints"`
}

// Send delivers msg. A 410 from the sender means the user has no live
// subscription left; that is returned as an error with Gone set so the caller
// can clean up. Any other non-2xx, 404 included, is a plain push failure and
// never touches stored subscriptions. Gone endpoints reported alongside a
// success are returned with Gone set and no error.
func (p *PushClient) Send(ctx context.Context, msg PushMessage) (PushResult, error) {
	resp, err := postJSON(ctx, p.base, p.endpoint, p.apiKey, msg, p.retry)
	if err != nil {
		return PushResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		return PushResult{Gone: true}, upstreamError(types.ErrCodeUpstreamPush, "push sender", resp)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PushResult{}, upstreamError(types.ErrCodeUpstreamPush, "push sender", resp)
	}

	var body pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return PushResult{}, types.NewAppError(types.ErrCodeUpstreamPush, "push sender returned an unreadable body", err)
	}

	result := PushResult{
		Sent:          body.Sent,
		Gone:          len(body.GoneEndpoints) > 0,
		GoneEndpoints: body.GoneEndpoints,
	}
	if !body.Success {
		if body.Error == "" {
			body.Error = "push sender reported failure"
		}
		return result, types.NewAppError(types.ErrCodeUpstreamPush, body.Error, nil)
	}

	p.logger.DebugContext(ctx, "push delivered", "recipient_id", msg.RecipientID, "sent", body.Sent)
	return result, nil
}

var _ PushSender = (*PushClient)(nil)
