package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/repository"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/state"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/logger"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/prom"
)

// ErrNotYetDue is returned when a retried event's backoff window has not
// elapsed; the queue redelivers it later.
var ErrNotYetDue = errors.New("webhook event retry not yet due")

// ErrBadPayload marks a verified delivery whose body cannot be used.
var ErrBadPayload = errors.New("webhook payload malformed")

// EventPayload is the wire shape of a gateway webhook notification.
type EventPayload struct {
	EventID    string      `json:"event_id"`
	EventType  string      `json:"event_type"`
	ResourceID string      `json:"resource_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Body       PayloadBody `json:"body"`
}

// PayloadBody carries event-type-specific detail: inbound text for
// "received", final cost for "delivered", failure info for
// "delivery_failed".
type PayloadBody struct {
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Text        string `json:"text,omitempty"`
	CostMicro   *int64 `json:"cost_micro,omitempty"`
	FailureCode string `json:"failure_code,omitempty"`
	FailureMsg  string `json:"failure_message,omitempty"`
}

// EventStore persists webhook events and their processing outcome.
type EventStore interface {
	GetOrCreate(ctx context.Context, ev *model.WebhookEvent) (*model.WebhookEvent, bool, error)
	GetByEventID(ctx context.Context, eventID string) (*model.WebhookEvent, error)
	MarkProcessed(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID, processingError string, retryCount int, nextAttemptAt time.Time) error
	MarkPermanentlyFailed(ctx context.Context, eventID, processingError string) error
}

// MessageLookup resolves gateway ids to tracked messages.
type MessageLookup interface {
	GetByExternalID(ctx context.Context, externalID string) (*model.Message, error)
}

// StateTracker applies guarded lifecycle transitions.
type StateTracker interface {
	Apply(ctx context.Context, tr state.Transition) (bool, model.MessageState, error)
}

// InboundProcessor handles carrier-delivered inbound messages (replies).
type InboundProcessor interface {
	HandleInbound(ctx context.Context, from, to, body string, receivedAt time.Time) error
}

// EventQueue is the ingress-to-worker handoff.
type EventQueue interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type Config struct {
	MaxRetries int
	RetryBase  time.Duration
}

// Reconciler verifies, deduplicates, and applies carrier webhook events.
// Ingest runs on the HTTP ingress path and must stay fast: verify, store,
// enqueue, ack. Process runs on queue workers and owns the transition,
// the retry schedule, and the permanent-failure escalation.
type Reconciler struct {
	verifier *Verifier
	events   EventStore
	messages MessageLookup
	tracker  StateTracker
	inbound  InboundProcessor
	queue    EventQueue
	config   Config
	now      func() time.Time
}

func NewReconciler(verifier *Verifier, events EventStore, messages MessageLookup, tracker StateTracker, inbound InboundProcessor, queue EventQueue, config Config) *Reconciler {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}
	if config.RetryBase <= 0 {
		config.RetryBase = time.Second
	}
	return &Reconciler{
		verifier: verifier,
		events:   events,
		messages: messages,
		tracker:  tracker,
		inbound:  inbound,
		queue:    queue,
		config:   config,
		now:      time.Now,
	}
}

// Ingest handles one raw webhook delivery. Verification failures are
// rejected and never stored; everything else is persisted for audit and
// acknowledged promptly so the gateway does not build a retry storm.
// Replayed event ids that were already processed return nil without
// reapplying.
func (r *Reconciler) Ingest(ctx context.Context, payload []byte, signature, timestamp string) error {
	if err := r.verifier.Verify(payload, signature, timestamp); err != nil {
		prom.IncWebhookEvent("unknown", "verification_failed")
		logger.Warn("webhook verification failed", "error", err)
		return err
	}

	var p EventPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		prom.IncWebhookEvent("unknown", "malformed")
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if p.EventID == "" || p.EventType == "" {
		prom.IncWebhookEvent(p.EventType, "malformed")
		return fmt.Errorf("%w: missing event_id or event_type", ErrBadPayload)
	}

	ev, created, err := r.events.GetOrCreate(ctx, &model.WebhookEvent{
		EventID:    p.EventID,
		EventType:  p.EventType,
		ResourceID: p.ResourceID,
		Payload:    string(payload),
		OccurredAt: p.OccurredAt,
		ReceivedAt: r.now(),
	})
	if err != nil {
		return fmt.Errorf("store webhook event: %w", err)
	}
	if !created && (ev.Processed || ev.PermanentlyFailed) {
		prom.IncWebhookEvent(p.EventType, "duplicate")
		return nil
	}

	if _, err := r.queue.PublishJSON(ctx, p, map[string]string{"event_id": p.EventID}); err != nil {
		return fmt.Errorf("enqueue webhook event: %w", err)
	}

	prom.IncWebhookEvent(p.EventType, "accepted")
	return nil
}

// Process applies one queued event. A nil return acknowledges the queue
// message; an error nacks it for redelivery after the visibility timeout,
// which is how the backoff schedule in next_attempt_at takes effect.
func (r *Reconciler) Process(ctx context.Context, payload []byte) error {
	var p EventPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		// Queue corruption; the audit record still holds the original.
		logger.Error("unparseable queued webhook event", "error", err)
		return nil
	}

	ev, err := r.events.GetByEventID(ctx, p.EventID)
	if err != nil {
		return fmt.Errorf("load webhook event %s: %w", p.EventID, err)
	}
	if ev.Processed || ev.PermanentlyFailed {
		return nil
	}
	if ev.NextAttemptAt != nil && r.now().Before(*ev.NextAttemptAt) {
		return ErrNotYetDue
	}

	if err := r.apply(ctx, &p); err != nil {
		return r.recordFailure(ctx, ev, err)
	}

	if err := r.events.MarkProcessed(ctx, p.EventID); err != nil {
		return fmt.Errorf("mark processed %s: %w", p.EventID, err)
	}
	prom.IncWebhookEvent(p.EventType, "processed")
	return nil
}

func (r *Reconciler) apply(ctx context.Context, p *EventPayload) error {
	if p.EventType == model.EventTypeReceived {
		return r.inbound.HandleInbound(ctx, p.Body.From, p.Body.To, p.Body.Text, p.OccurredAt)
	}

	target, ok := model.MessageStateForEvent(p.EventType)
	if !ok {
		// Unknown event types are retained for audit but carry no
		// transition; retrying will not help.
		logger.Warn("webhook event type without transition", "event_type", p.EventType, "event_id", p.EventID)
		return nil
	}

	msg, err := r.messages.GetByExternalID(ctx, p.ResourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The message row may not be visible yet if the gateway
			// outran our own dispatch commit; retry.
			return fmt.Errorf("message for external id %s: %w", p.ResourceID, err)
		}
		return err
	}

	applied, current, err := r.tracker.Apply(ctx, state.Transition{
		MessageID:     msg.ID,
		Target:        target,
		FailureCode:   p.Body.FailureCode,
		FailureDetail: p.Body.FailureMsg,
	})
	if err != nil {
		return err
	}
	if !applied {
		// Out-of-order or duplicate event: acknowledged, audited, not
		// an error.
		logger.Info("webhook transition discarded",
			"event_id", p.EventID, "target", target, "kept", current)
	}
	return nil
}

func (r *Reconciler) recordFailure(ctx context.Context, ev *model.WebhookEvent, cause error) error {
	retryCount := ev.RetryCount + 1
	if retryCount >= r.config.MaxRetries {
		if err := r.events.MarkPermanentlyFailed(ctx, ev.EventID, cause.Error()); err != nil {
			return err
		}
		prom.IncWebhookEvent(ev.EventType, "permanently_failed")
		logger.Error("webhook event permanently failed, operator attention required",
			"event_id", ev.EventID, "event_type", ev.EventType, "retries", retryCount, "error", cause)
		// Acked: the alert above is the escalation path, not the queue.
		return nil
	}

	next := r.now().Add(backoffDelay(r.config.RetryBase, retryCount))
	if err := r.events.MarkFailed(ctx, ev.EventID, cause.Error(), retryCount, next); err != nil {
		return err
	}
	prom.IncWebhookEvent(ev.EventType, "retry_scheduled")
	logger.Warn("webhook event processing failed, retry scheduled",
		"event_id", ev.EventID, "retry", retryCount, "next_attempt_at", next, "error", cause)
	return cause
}

// backoffDelay doubles a base delay per attempt with up to 20% jitter to
// avoid thundering-herd redelivery.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base << uint(attempt-1)
	jitter := time.Duration(rand.Int63n(int64(d)/5 + 1))
	return d + jitter
}
