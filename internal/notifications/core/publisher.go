package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"barecourier/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// DispatchMessage is the queue envelope of an async dispatch.
type DispatchMessage struct {
	Request    DispatchRequest `json:"request"`
	RequestID  string          `json:"requestId,omitempty"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// DispatchPublisher hands dispatch requests to the notification queue, where
// the dispatch worker picks them up.
type DispatchPublisher struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   types.Logger
}

// NewDispatchPublisher creates a DispatchPublisher targeting queueURL.
func NewDispatchPublisher(client SQSSender, queueURL string, clock types.Clock, logger types.Logger) *DispatchPublisher {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &DispatchPublisher{
		client:   client,
		queueURL: queueURL,
		clock:    clock,
		logger:   logger,
	}
}

// Publish serializes req and sends it to the queue. The request id of ctx
// travels with the message so worker logs can be correlated.
func (p *DispatchPublisher) Publish(ctx context.Context, req DispatchRequest) error {
	msg := DispatchMessage{
		Request:    req,
		RequestID:  types.GetRequestID(ctx),
		EnqueuedAt: p.clock.Now(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("dispatch publisher: failed to marshal message: %w", err)
	}

	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("failed to send dispatch message to %s", p.queueURL), err)
	}

	p.logger.Info("dispatch message published",
		"recipient_id", req.RecipientID,
		"category", string(req.Category),
		"message_id", aws.ToString(out.MessageId),
		"request_id", msg.RequestID,
	)
	return nil
}

// DecodeDispatchMessage parses a queue body. A body that does not parse is a
// permanent failure and is reported as a validation error.
func DecodeDispatchMessage(body string) (DispatchMessage, error) {
	var msg DispatchMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return DispatchMessage{}, types.NewAppError(types.ErrCodeValidationInvalidBody, "malformed dispatch message", err)
	}
	return msg, nil
}
