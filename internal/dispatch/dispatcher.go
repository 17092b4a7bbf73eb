package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gateway "github.com/gyantigventure/telnyx-did-buy-sub000/internal/gateways"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/state"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/logger"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/prom"
	"github.com/sethvargo/go-retry"
)

var (
	// ErrDispatchFailed wraps the last upstream error after the retry
	// budget for transient failures is exhausted.
	ErrDispatchFailed = errors.New("dispatch_failed")
	// ErrDispatchRejected marks a permanent upstream rejection (4xx);
	// the message is failed immediately and never retried.
	ErrDispatchRejected = errors.New("dispatch_rejected")
	// ErrAlreadyInFlight guards against a second concurrent dispatch of
	// the same logical message.
	ErrAlreadyInFlight = errors.New("dispatch already in flight for message")
)

// Carrier is the upstream gateway surface.
type Carrier interface {
	SendMessage(ctx context.Context, r *gateway.SendMessageRequest) (*gateway.SendMessageResponse, error)
}

// MessageStore persists messages and their gateway correlation id.
type MessageStore interface {
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)
	SetExternalID(ctx context.Context, id, externalID string) error
}

// StateTracker applies guarded lifecycle transitions.
type StateTracker interface {
	Apply(ctx context.Context, tr state.Transition) (bool, model.MessageState, error)
}

// Config bounds the gateway call loop. MaxRetries counts retries after
// the initial attempt, so MaxRetries of 3 allows four calls in total.
type Config struct {
	MaxRetries int
	RetryBase  time.Duration
}

// Dispatcher hands compliance-approved messages to the carrier gateway.
// Exactly one external call is in flight per logical message: concurrent
// Send calls for the same id are rejected, and retries run sequentially
// inside the single call.
type Dispatcher struct {
	carrier  Carrier
	messages MessageStore
	tracker  StateTracker
	config   Config

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewDispatcher(carrier Carrier, messages MessageStore, tracker StateTracker, config Config) *Dispatcher {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryBase <= 0 {
		config.RetryBase = 200 * time.Millisecond
	}
	return &Dispatcher{
		carrier:  carrier,
		messages: messages,
		tracker:  tracker,
		config:   config,
		inFlight: make(map[string]struct{}),
	}
}

// Send persists the message in queued state, calls the gateway with
// bounded exponential backoff, and transitions to dispatched on success.
// Precondition: the message already passed the compliance gate.
func (d *Dispatcher) Send(ctx context.Context, msg *model.Message) (string, error) {
	if msg.ID == "" {
		created, err := d.messages.Create(ctx, msg)
		if err != nil {
			return "", fmt.Errorf("persist message: %w", err)
		}
		*msg = *created
	}

	if !d.claim(msg.ID) {
		return "", ErrAlreadyInFlight
	}
	defer d.release(msg.ID)

	req := &gateway.SendMessageRequest{
		From:      msg.From,
		To:        msg.To,
		Text:      msg.Body,
		MediaURLs: msg.MediaURLs,
	}

	var resp *gateway.SendMessageResponse
	var permanent *gateway.Error

	backoff := retry.WithMaxRetries(uint64(d.config.MaxRetries),
		retry.WithJitterPercent(20, retry.NewExponential(d.config.RetryBase)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		prom.IncDispatchAttempt()
		r, err := d.carrier.SendMessage(ctx, req)
		if err != nil {
			var gerr *gateway.Error
			if errors.As(err, &gerr) && gerr.Permanent() {
				permanent = gerr
				return err
			}
			logger.Warn("transient dispatch failure, will retry",
				"message_id", msg.ID, "error", err)
			return retry.RetryableError(err)
		}
		resp = r
		return nil
	})

	if permanent != nil {
		d.fail(ctx, msg.ID, permanent.Code, permanent.Message)
		prom.IncDispatchOutcome("rejected")
		return "", fmt.Errorf("%w: %v", ErrDispatchRejected, permanent)
	}
	if err != nil {
		d.fail(ctx, msg.ID, "upstream_unavailable", err.Error())
		prom.IncDispatchOutcome("failed")
		return "", fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	if err := d.messages.SetExternalID(ctx, msg.ID, resp.ID); err != nil {
		return "", fmt.Errorf("persist external id: %w", err)
	}
	msg.ExternalID = &resp.ID

	if _, _, err := d.tracker.Apply(ctx, state.Transition{
		MessageID: msg.ID,
		Target:    model.MessageStateDispatched,
	}); err != nil {
		return "", fmt.Errorf("transition to dispatched: %w", err)
	}

	prom.IncDispatchOutcome("dispatched")
	logger.Info("message dispatched", "message_id", msg.ID, "external_id", resp.ID)
	return resp.ID, nil
}

func (d *Dispatcher) claim(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.inFlight[id]; exists {
		return false
	}
	d.inFlight[id] = struct{}{}
	return true
}

func (d *Dispatcher) release(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, id)
}

// fail records a terminal failure; the message never obtained an external
// id so queued->failed is the expected path, but the tracker still guards
// the order.
func (d *Dispatcher) fail(ctx context.Context, id, code, detail string) {
	if _, _, err := d.tracker.Apply(ctx, state.Transition{
		MessageID:     id,
		Target:        model.MessageStateFailed,
		FailureCode:   code,
		FailureDetail: detail,
	}); err != nil {
		logger.Error("failed to record dispatch failure", "message_id", id, "error", err)
	}
}
