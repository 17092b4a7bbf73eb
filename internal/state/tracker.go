package state

import (
	"context"
	"errors"
	"sync"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/repository"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/logger"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/prom"
)

// MessageStore is the persistence surface the tracker mutates.
type MessageStore interface {
	GetByID(ctx context.Context, id string) (*model.Message, error)
	UpdateState(ctx context.Context, id string, fromState, toState model.MessageState, fields map[string]interface{}) error
}

// Transition is one requested state change for a message.
type Transition struct {
	MessageID     string
	Target        model.MessageState
	FailureCode   string
	FailureDetail string
}

// Tracker owns every message state mutation after creation. Transitions
// are guarded by the fixed total order queued < dispatched < sent <
// delivered, with failed terminal: an attempt into an earlier state, or
// out of a terminal state, is discarded and recorded as an anomaly rather
// than applied. Duplicate concurrent events for the same message are
// serialized by a per-message lock held only around the in-memory check
// and the row update, never across I/O to the carrier.
type Tracker struct {
	store MessageStore
	locks *keyedMutex
}

func NewTracker(store MessageStore) *Tracker {
	return &Tracker{
		store: store,
		locks: newKeyedMutex(),
	}
}

// Apply attempts the transition. It returns whether the target state was
// stored and the state the message holds afterwards. A discarded
// transition is not an error: the webhook that carried it still gets
// acknowledged.
func (t *Tracker) Apply(ctx context.Context, tr Transition) (bool, model.MessageState, error) {
	unlock := t.locks.lock(tr.MessageID)
	defer unlock()

	msg, err := t.store.GetByID(ctx, tr.MessageID)
	if err != nil {
		return false, "", err
	}

	if !model.CanTransition(msg.State, tr.Target) {
		prom.IncTransitionAnomaly(string(msg.State), string(tr.Target))
		logger.Warn("discarded state transition",
			"message_id", tr.MessageID,
			"current", msg.State,
			"target", tr.Target)
		return false, msg.State, nil
	}

	fields := map[string]interface{}{}
	if tr.Target == model.MessageStateFailed {
		fields["failure_code"] = tr.FailureCode
		fields["failure_detail"] = tr.FailureDetail
	}

	err = t.store.UpdateState(ctx, tr.MessageID, msg.State, tr.Target, fields)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			// Another writer advanced the row between our read and
			// update; re-read and report the state that won.
			current, rerr := t.store.GetByID(ctx, tr.MessageID)
			if rerr != nil {
				return false, "", rerr
			}
			prom.IncTransitionAnomaly(string(current.State), string(tr.Target))
			return false, current.State, nil
		}
		return false, "", err
	}

	return true, tr.Target, nil
}

// keyedMutex hands out one mutex per in-use key and reclaims it when the
// last holder releases, so the lock table does not grow with message
// volume.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*lockEntry)}
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
