package external

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"barecourier/internal/types"
)

// EmailClientConfig configures EmailClient.
type EmailClientConfig struct {
	EndpointURL string
	APIKey      types.SecretString
	Retry       RetryConfig
	Logger      *slog.Logger
}

// EmailClient posts templated emails to the transactional email sender.
type EmailClient struct {
	base     *RetryClient
	endpoint string
	apiKey   types.SecretString
	retry    RetryConfig
	logger   *slog.Logger
}

// NewEmailClient creates an EmailClient on top of base.
func NewEmailClient(base *RetryClient, cfg EmailClientConfig) *EmailClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailClient{
		base:     base,
		endpoint: strings.TrimSuffix(cfg.EndpointURL, "/"),
		apiKey:   cfg.APIKey,
		retry:    cfg.Retry,
		logger:   logger,
	}
}

type emailResponse struct {
	Success bool   `json:"success"`
	EmailID string `json:"email_id"`
	Error   string `json:"error"`
}

// Send delivers msg and returns the provider message id.
func (e *EmailClient) Send(ctx context.Context, msg EmailMessage) (EmailResult, error) {
	resp, err := postJSON(ctx, e.base, e.endpoint, e.apiKey, msg, e.retry)
	if err != nil {
		return EmailResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return EmailResult{}, upstreamError(types.ErrCodeUpstreamEmailProvider, "email sender", resp)
	}

	var body emailResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return EmailResult{}, types.NewAppError(types.ErrCodeUpstreamEmailProvider, "email sender returned an unreadable body", err)
	}
	if !body.Success {
		if body.Error == "" {
			body.Error = "email sender reported failure"
		}
		return EmailResult{}, types.NewAppError(types.ErrCodeUpstreamEmailProvider, body.Error, nil)
	}

	e.logger.DebugContext(ctx, "email delivered", "recipient_id", msg.RecipientID, "template", msg.TemplateID, "email_id", body.EmailID)
	return EmailResult{EmailID: body.EmailID}, nil
}

var _ EmailSender = (*EmailClient)(nil)
