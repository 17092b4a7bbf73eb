package processor

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/queue"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/webhook"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/logger"
)

// EventReconciler is the reconciliation entry point for one queued
// webhook event payload.
type EventReconciler interface {
	Process(ctx context.Context, payload []byte) error
}

// EventEscalator parks an event that will never be retried again.
type EventEscalator interface {
	MarkPermanentlyFailed(ctx context.Context, eventID, processingError string) error
}

// WebhookEventProcessor drains the webhook event queue into the
// reconciler, guarded by the redis idempotency locks so a crashed or
// slow consumer cannot double-apply an event with a second one.
type WebhookEventProcessor struct {
	reconciler  EventReconciler
	idempotency *IdempotencyService
	events      EventEscalator
}

func NewWebhookEventProcessor(reconciler EventReconciler, idempotency *IdempotencyService, events EventEscalator) *WebhookEventProcessor {
	return &WebhookEventProcessor{
		reconciler:  reconciler,
		idempotency: idempotency,
		events:      events,
	}
}

func (p *WebhookEventProcessor) GetType() string {
	return "webhook_event"
}

// Process handles one queue delivery. A nil return acks, an error leaves
// the delivery pending for redelivery after the visibility timeout.
func (p *WebhookEventProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	eventID := eventIDFrom(queueMessage)
	if eventID == "" {
		// Poison entry; the ingest audit row is the recovery path.
		logger.Error("queued webhook event without event id", "queue_id", queueMessage.ID)
		return nil
	}

	pc, err := p.idempotency.AcquireProcessingLock(ctx, eventID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyProcessed):
			return nil
		case errors.Is(err, ErrMaxRetriesExceeded):
			// The reconciler's own failure ledger escalated (or will
			// escalate) this event; keep it off the queue.
			logger.Error("webhook event exhausted consumer retries", "event_id", eventID)
			return nil
		case errors.Is(err, ErrLockAcquireFailed):
			return err
		default:
			return err
		}
	}
	defer p.idempotency.ReleaseLock(ctx, pc)

	if err := p.reconciler.Process(ctx, queueMessage.Data); err != nil {
		if errors.Is(err, webhook.ErrNotYetDue) {
			// Deferred, not failed: the backoff window has not opened.
			// Leave the retry counter alone and let redelivery recheck.
			return err
		}
		_ = p.idempotency.MarkFailure(ctx, pc, err)
		return err
	}

	return p.idempotency.MarkSuccess(ctx, pc)
}

// DeadLetter runs when the queue drops a delivery that exhausted its
// attempts, including attempts burnt by backoff deferrals. The event row
// is parked as permanently failed so it surfaces in the operator queue
// instead of vanishing with the ack.
func (p *WebhookEventProcessor) DeadLetter(ctx context.Context, queueMessage *queue.Message) {
	eventID := eventIDFrom(queueMessage)
	if eventID == "" {
		return
	}
	if err := p.events.MarkPermanentlyFailed(ctx, eventID, "queue delivery attempts exhausted"); err != nil {
		logger.Error("failed to park dead-lettered webhook event",
			"event_id", eventID, "error", err)
	}
}

func eventIDFrom(queueMessage *queue.Message) string {
	if id := queueMessage.Metadata["event_id"]; id != "" {
		return id
	}
	var envelope struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(queueMessage.Data, &envelope); err != nil {
		return ""
	}
	return envelope.EventID
}
