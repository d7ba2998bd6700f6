package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// NotificationPublisher publishes invoice workflow events to NATS JetStream
// for consumption by downstream notification services.
//
// Subject convention: notifications.invoices.<event_type>
// Event types: invoice_assigned, invoice_submitted, invoice_approved,
//              invoice_returned, invoice_returned_to_invoicing, invoice_closed
//
// All publish operations are non-fatal. Errors are logged but never propagated
// to the caller, so notification failures never interrupt workflow operations.
type NotificationPublisher struct {
	js  jetstream.JetStream
	log zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType    string                 `json:"event_type"`
	ActorID      string                 `json:"actor_id"`
	Recipients   []string               `json:"recipients"`
	ResourceType string                 `json:"resource_type,omitempty"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	Severity     string                 `json:"severity,omitempty"`
	Category     string                 `json:"category,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	OccurredAt   time.Time              `json:"occurred_at"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// connection. A nil connection yields a no-op publisher, so the service
// can run without a broker in local development.
func NewNotificationPublisher(nc *nats.Conn, log zerolog.Logger) (*NotificationPublisher, error) {
	if nc == nil {
		return &NotificationPublisher{log: log}, nil
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}
	return &NotificationPublisher{js: js, log: log}, nil
}

// PublishInvoiceEvent publishes an invoice workflow event.
// Subject: notifications.invoices.<eventType>
func (p *NotificationPublisher) PublishInvoiceEvent(ctx context.Context, eventType, invoiceID, actorID string, recipients []string, payload map[string]interface{}) {
	if p.js == nil {
		return
	}
	if len(recipients) == 0 {
		return
	}

	event := &NotificationEvent{
		EventType:    eventType,
		ActorID:      actorID,
		Recipients:   recipients,
		ResourceType: "invoice",
		ResourceID:   invoiceID,
		Severity:     "info",
		Category:     "invoice_workflow",
		Payload:      payload,
		OccurredAt:   time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.invoices.%s", eventType)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("invoice_id", invoiceID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("invoice_id", invoiceID).
		Int("recipients", len(recipients)).
		Msg("notification: event published")
}
