package model

import "time"

// Carrier event types delivered over the webhook channel.
const (
	EventTypeSent           = "sent"
	EventTypeDelivered      = "delivered"
	EventTypeDeliveryFailed = "delivery_failed"
	EventTypeReceived       = "received"
)

// WebhookEvent is a carrier notification kept for audit whether or not it
// was ultimately applied. EventID is the provider-assigned id and is the
// idempotency key for processing.
type WebhookEvent struct {
	ID                string     `json:"id"`
	EventID           string     `json:"event_id"`
	EventType         string     `json:"event_type"`
	ResourceID        string     `json:"resource_id"`
	Payload           string     `json:"payload"`
	OccurredAt        time.Time  `json:"occurred_at"`
	ReceivedAt        time.Time  `json:"received_at"`
	Processed         bool       `json:"processed"`
	ProcessingError   string     `json:"processing_error,omitempty"`
	RetryCount        int        `json:"retry_count"`
	NextAttemptAt     *time.Time `json:"next_attempt_at,omitempty"`
	PermanentlyFailed bool       `json:"permanently_failed"`
}

// MessageStateForEvent maps a carrier event type onto the tracker's target
// state. Inbound "received" events carry no state transition.
func MessageStateForEvent(eventType string) (MessageState, bool) {
	switch eventType {
	case EventTypeSent:
		return MessageStateSent, true
	case EventTypeDelivered:
		return MessageStateDelivered, true
	case EventTypeDeliveryFailed:
		return MessageStateFailed, true
	default:
		return "", false
	}
}
