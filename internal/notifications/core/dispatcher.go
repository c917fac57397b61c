package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"barecourier/internal/external"
	"barecourier/internal/notifications/templates"
	"barecourier/internal/types"
)

// DefaultAsyncTimeout bounds a fire-and-forget dispatch.
const DefaultAsyncTimeout = 60 * time.Second

// DispatcherConfig wires a Dispatcher. Push, Email and Templates may be nil:
// a nil sender disables that channel and a nil renderer leaves rendering to
// the email provider.
type DispatcherConfig struct {
	Resolver      *PreferenceResolver
	Notifications NotificationStore
	Subscriptions PushSubscriptionStore
	Push          external.PushSender
	Email         external.EmailSender
	Templates     TemplateRenderer
	Metrics       NotificationMetrics
	Clock         types.Clock
	Logger        types.Logger
	AsyncTimeout  time.Duration
}

// Dispatcher delivers one event to one recipient across in-app, push and
// email. Channels fail independently; partial success is a normal result.
type Dispatcher struct {
	resolver      *PreferenceResolver
	notifications NotificationStore
	subscriptions PushSubscriptionStore
	push          external.PushSender
	email         external.EmailSender
	templates     TemplateRenderer
	metrics       NotificationMetrics
	clock         types.Clock
	logger        types.Logger
	asyncTimeout  time.Duration
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		resolver:      cfg.Resolver,
		notifications: cfg.Notifications,
		subscriptions: cfg.Subscriptions,
		push:          cfg.Push,
		email:         cfg.Email,
		templates:     cfg.Templates,
		metrics:       cfg.Metrics,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		asyncTimeout:  cfg.AsyncTimeout,
	}
	if d.metrics == nil {
		d.metrics = NoopMetrics{}
	}
	if d.clock == nil {
		d.clock = types.RealClock{}
	}
	if d.logger == nil {
		d.logger = types.NewSlogLogger(nil)
	}
	if d.asyncTimeout <= 0 {
		d.asyncTimeout = DefaultAsyncTimeout
	}
	return d
}

// Dispatch delivers req. Only invalid requests return an error; every channel
// failure is reported in the result. Calling Dispatch twice for the same event
// creates two records.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	if err := d.validate(req); err != nil {
		return nil, err
	}

	log := d.logger.With("recipient_id", req.RecipientID, "category", string(req.Category))
	if reqID := types.GetRequestID(ctx); reqID != "" {
		log = log.With("request_id", reqID)
	}

	rc, err := d.resolver.Resolve(ctx, req.RecipientID)
	if err != nil {
		log.Warn("failed to load recipient profile, external channels disabled", "error", err.Error())
	}

	prefs := rc.Preferences.Categories[req.Category]
	gate := EvaluateGate(d.clock.Now(), rc.Preferences, rc.Timezone, rc.WorkingDays)
	if !gate.Allowed {
		log.Info("external channels held back", "reason", gate.Reason)
	}

	sendPush := prefs.Push && rc.PushEnabled && gate.Allowed && d.push != nil
	willSendEmail := prefs.Email && rc.EmailEnabled && gate.Allowed && req.EmailTemplate != "" && d.email != nil

	result := &DispatchResult{}

	var rendered templates.Rendered
	if willSendEmail && d.templates != nil {
		rendered, err = d.templates.Render(req.EmailTemplate, rc.Locale, req.EmailData)
		if err != nil {
			log.Error("failed to render email template", "template", req.EmailTemplate, "error", err.Error())
			result.Email = &ChannelResult{Error: err.Error()}
			d.metrics.RecordDelivery(ctx, types.ChannelEmail, MetricFailed)
			willSendEmail = false
		}
	}

	record := &types.NotificationRecord{
		RecipientID: req.RecipientID,
		Category:    req.Category,
		Title:       req.Title,
		Message:     req.Message,
		ServiceRef:  req.ServiceRef,
	}
	if willSendEmail {
		pending := types.EmailStatusPending
		record.EmailStatus = &pending
	}
	if err := d.notifications.Create(ctx, record); err != nil {
		log.Error("failed to write in-app notification", "error", err.Error())
		result.InApp = ChannelResult{Error: err.Error()}
		d.metrics.RecordDelivery(ctx, types.ChannelInApp, MetricFailed)
		record.ID = ""
	} else {
		result.InApp = ChannelResult{Success: true, NotificationID: record.ID}
		d.metrics.RecordDelivery(ctx, types.ChannelInApp, MetricSuccess)
	}

	var g errgroup.Group
	if sendPush {
		g.Go(func() error {
			result.Push = d.sendPush(ctx, log, req)
			return nil
		})
	}
	if willSendEmail {
		g.Go(func() error {
			result.Email = d.sendEmail(ctx, log, req, rc, rendered, record.ID)
			return nil
		})
	}
	_ = g.Wait()

	log.Info("notification dispatched",
		"in_app", result.InApp.Success,
		"push", channelOutcome(result.Push),
		"email", channelOutcome(result.Email),
	)
	return result, nil
}

// DispatchAsync runs Dispatch on its own goroutine, detached from the
// caller's cancellation and bounded by the async timeout. Outcomes are only
// logged.
func (d *Dispatcher) DispatchAsync(ctx context.Context, req DispatchRequest) {
	detached := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(detached, d.asyncTimeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("async dispatch panicked", "recipient_id", req.RecipientID, "panic", r)
			}
		}()

		if _, err := d.Dispatch(ctx, req); err != nil {
			d.logger.Error("async dispatch rejected",
				"recipient_id", req.RecipientID,
				"category", string(req.Category),
				"error", err.Error(),
			)
		}
	}()
}

func (d *Dispatcher) validate(req DispatchRequest) error {
	switch {
	case req.RecipientID == "":
		return types.NewAppError(types.ErrCodeValidationMissingField, "recipientId is required", nil)
	case uuid.Validate(req.RecipientID) != nil:
		return types.NewAppError(types.ErrCodeValidationInvalidID, "recipientId must be a UUID: "+req.RecipientID, nil)
	case req.ServiceRef != nil && uuid.Validate(*req.ServiceRef) != nil:
		return types.NewAppError(types.ErrCodeValidationInvalidID, "serviceId must be a UUID: "+*req.ServiceRef, nil)
	case !req.Category.Valid():
		return types.NewAppError(types.ErrCodeValidationInvalidCategory, "unknown category: "+string(req.Category), nil).
			WithDetails(map[string]any{"allowed": types.AllCategories})
	case req.Title == "":
		return types.NewAppError(types.ErrCodeValidationMissingField, "title is required", nil)
	case req.Message == "":
		return types.NewAppError(types.ErrCodeValidationMissingField, "message is required", nil)
	case req.EmailTemplate != "" && d.templates != nil && !d.templates.Known(req.EmailTemplate):
		return types.NewAppError(types.ErrCodeValidationUnknownTemplate, "unknown email template: "+req.EmailTemplate, nil)
	}
	return nil
}

func (d *Dispatcher) sendPush(ctx context.Context, log types.Logger, req DispatchRequest) *ChannelResult {
	msg := external.PushMessage{
		RecipientID: req.RecipientID,
		Title:       req.Title,
		Message:     req.Message,
		URL:         req.URL,
		Category:    string(req.Category),
	}
	if req.ServiceRef != nil {
		msg.ServiceRef = *req.ServiceRef
	}

	start := d.clock.Now()
	res, err := d.push.Send(ctx, msg)
	d.metrics.RecordLatency(ctx, types.ChannelPush, d.clock.Now().Sub(start))

	if res.Gone {
		d.removeGoneSubscriptions(ctx, log, req.RecipientID, res.GoneEndpoints)
	}
	if err != nil {
		log.Warn("push delivery failed", "error", err.Error())
		d.metrics.RecordDelivery(ctx, types.ChannelPush, MetricFailed)
		return &ChannelResult{Error: err.Error()}
	}
	d.metrics.RecordDelivery(ctx, types.ChannelPush, MetricSuccess)
	return &ChannelResult{Success: true}
}

func (d *Dispatcher) removeGoneSubscriptions(ctx context.Context, log types.Logger, recipientID string, endpoints []string) {
	if d.subscriptions == nil {
		return
	}
	removed, err := d.subscriptions.DeleteForUser(ctx, recipientID, endpoints)
	if err != nil {
		log.Warn("failed to remove gone push subscriptions", "error", err.Error())
		return
	}
	log.Info("removed gone push subscriptions", "count", removed)
}

func (d *Dispatcher) sendEmail(ctx context.Context, log types.Logger, req DispatchRequest, rc RecipientContext, rendered templates.Rendered, recordID string) *ChannelResult {
	msg := external.EmailMessage{
		RecipientID:  req.RecipientID,
		TemplateID:   req.EmailTemplate,
		TemplateData: req.EmailData,
		Locale:       rc.Locale,
		Subject:      rendered.Subject,
		Body:         rendered.Body,
	}

	start := d.clock.Now()
	res, err := d.email.Send(ctx, msg)
	d.metrics.RecordLatency(ctx, types.ChannelEmail, d.clock.Now().Sub(start))

	if err != nil {
		log.Warn("email delivery failed", "template", req.EmailTemplate, "error", err.Error())
		d.metrics.RecordDelivery(ctx, types.ChannelEmail, MetricFailed)
		if recordID != "" {
			if markErr := d.notifications.MarkEmailFailed(ctx, recordID); markErr != nil {
				log.Error("failed to mark email failed", "notification_id", recordID, "error", markErr.Error())
			}
		}
		return &ChannelResult{Error: err.Error()}
	}

	d.metrics.RecordDelivery(ctx, types.ChannelEmail, MetricSuccess)
	if recordID != "" {
		if markErr := d.notifications.MarkEmailSent(ctx, recordID, res.EmailID, d.clock.Now()); markErr != nil {
			log.Error("failed to mark email sent", "notification_id", recordID, "error", markErr.Error())
		}
	}
	return &ChannelResult{Success: true, EmailID: res.EmailID}
}

func channelOutcome(r *ChannelResult) string {
	switch {
	case r == nil:
		return "skipped"
	case r.Success:
		return "success"
	default:
		return "failed"
	}
}
