// Package handlers contains the HTTP handlers of the barecourier API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"barecourier/internal/core"
	notify "barecourier/internal/notifications/core"
	"barecourier/internal/types"
)

// Dispatcher delivers a notification across channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, req notify.DispatchRequest) (*notify.DispatchResult, error)
	DispatchAsync(ctx context.Context, req notify.DispatchRequest)
}

// DispatchPublisher enqueues a notification for the dispatch worker.
type DispatchPublisher interface {
	Publish(ctx context.Context, req notify.DispatchRequest) error
}

// AcceptedResponse is returned for async dispatches.
type AcceptedResponse struct {
	Status    string `json:"status"`
	Queued    bool   `json:"queued"`
	RequestID string `json:"requestId,omitempty"`
}

// NotificationHandler serves POST /v1/notifications.
type NotificationHandler struct {
	dispatcher Dispatcher
	publisher  DispatchPublisher
	validator  *core.Validator
	logger     *slog.Logger
}

// NewNotificationHandler creates a NotificationHandler. A nil publisher makes
// async requests run on an in-process goroutine instead of the queue.
func NewNotificationHandler(d Dispatcher, p DispatchPublisher, v *core.Validator, logger *slog.Logger) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{dispatcher: d, publisher: p, validator: v, logger: logger}
}

// RegisterRoutes mounts the notification routes on r.
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/notifications", h.Create)
}

// Create dispatches one notification. Synchronous calls return 200 with the
// per-channel result; ?async=true returns 202 once the request is queued or
// handed to a background goroutine.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req notify.DispatchRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	async, err := parseBoolQuery(r, "async")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if !async {
		result, err := h.dispatcher.Dispatch(r.Context(), req)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
		return
	}

	resp := AcceptedResponse{Status: "accepted", RequestID: types.GetRequestID(r.Context())}
	if h.publisher != nil {
		if err := h.publisher.Publish(r.Context(), req); err != nil {
			h.logger.ErrorContext(r.Context(), "failed to enqueue notification",
				"recipient_id", req.RecipientID,
				"category", string(req.Category),
				"error", err,
			)
			core.Error(w, r, err)
			return
		}
		resp.Queued = true
	} else {
		h.dispatcher.DispatchAsync(r.Context(), req)
	}
	core.JSON(w, r, http.StatusAccepted, core.APIResponse{Data: resp})
}

func parseBoolQuery(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeValidationInvalidBody, name+" must be a boolean", err)
	}
	return v, nil
}
