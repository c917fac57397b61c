package external

import "context"

// PushMessage is a web-push notification addressed to every subscription of
// one user.
type PushMessage struct {
	RecipientID string `json:"user_id"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	URL         string `json:"url,omitempty"`
	ServiceRef  string `json:"service_id,omitempty"`
	Category    string `json:"type,omitempty"`
}

// PushResult reports how many subscriptions accepted the message and which
// ones the push service reported as gone. Gone with no endpoints means every
// subscription of the user is gone.
type PushResult struct {
	Sent          int
	Gone          bool
	GoneEndpoints []string
}

// PushSender delivers web-push notifications.
type PushSender interface {
	Send(ctx context.Context, msg PushMessage) (PushResult, error)
}

// EmailMessage is a templated transactional email.
type EmailMessage struct {
	RecipientID  string         `json:"user_id"`
	TemplateID   string         `json:"template"`
	TemplateData map[string]any `json:"data,omitempty"`
	Locale       string         `json:"locale,omitempty"`
	Subject      string         `json:"subject,omitempty"`
	Body         string         `json:"body,omitempty"`
}

// EmailResult carries the provider's message id.
type EmailResult struct {
	EmailID string
}

// EmailSender delivers transactional email.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) (EmailResult, error)
}
