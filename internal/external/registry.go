package external

import (
	"log/slog"
	"net/http"

	"barecourier/internal/config"
)

// ClientRegistry holds the outbound senders. In local or test mode it holds
// logging stubs; otherwise real clients sharing the configured retry policy.
type ClientRegistry struct {
	Push  PushSender
	Email EmailSender
}

// NewClientRegistry builds the senders from configuration. A disabled feature
// flag or a missing endpoint leaves that sender nil, which the dispatcher
// treats as "channel unavailable".
func NewClientRegistry(cfg *config.Config, logger *slog.Logger, opts ...ClientOption) *ClientRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	reg := &ClientRegistry{}
	if cfg.UseStubTransports() {
		logger.Info("initializing outbound senders in STUB mode",
			"is_test_mode", cfg.IsTestMode,
			"environment", cfg.Environment,
		)
		stubLogger := logger.With("mode", "stub")
		if cfg.Feature.EnablePush {
			reg.Push = NewStubPushSender(stubLogger)
		}
		if cfg.Feature.EnableEmail {
			reg.Email = NewStubEmailSender(stubLogger)
		}
		return reg
	}

	userAgent := cfg.Build.UserAgent()
	shared := RetryConfig{
		BaseDelay:       cfg.Retry.BaseDelay,
		MaxJitter:       cfg.Retry.MaxJitter,
		MaxRetryDelay:   cfg.Retry.MaxRetryDelay,
		FunctionTimeout: cfg.Retry.FunctionTimeout,
	}

	if cfg.Feature.EnablePush && cfg.Push.EndpointURL != "" {
		retry := shared
		retry.MaxRetries = cfg.Push.MaxRetries
		retry.Timeout = cfg.Push.Timeout
		reg.Push = NewPushClient(
			NewRetryClient(&http.Client{}, "push", userAgent, opts...),
			PushClientConfig{
				EndpointURL: cfg.Push.EndpointURL,
				APIKey:      cfg.Push.APIKey,
				Retry:       retry,
				Logger:      logger.With("client", "push"),
			},
		)
	} else {
		logger.Warn("push sender disabled", "feature_enabled", cfg.Feature.EnablePush)
	}

	if cfg.Feature.EnableEmail && cfg.Email.EndpointURL != "" {
		retry := shared
		retry.MaxRetries = cfg.Email.MaxRetries
		retry.Timeout = cfg.Email.Timeout
		reg.Email = NewEmailClient(
			NewRetryClient(&http.Client{}, "email", userAgent, opts...),
			EmailClientConfig{
				EndpointURL: cfg.Email.EndpointURL,
				APIKey:      cfg.Email.APIKey,
				Retry:       retry,
				Logger:      logger.With("client", "email"),
			},
		)
	} else {
		logger.Warn("email sender disabled", "feature_enabled", cfg.Feature.EnableEmail)
	}

	return reg
}
