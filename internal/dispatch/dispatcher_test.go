package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gateway "github.com/gyantigventure/telnyx-did-buy-sub000/internal/gateways"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/state"
)

// scriptedCarrier returns one queued response or error per call, in order.
type scriptedCarrier struct {
	mu      sync.Mutex
	script  []func() (*gateway.SendMessageResponse, error)
	calls   int
	started chan struct{}
	block   chan struct{}
}

func (c *scriptedCarrier) SendMessage(ctx context.Context, r *gateway.SendMessageRequest) (*gateway.SendMessageResponse, error) {
	c.mu.Lock()
	idx := c.calls
	c.calls++
	c.mu.Unlock()

	if c.started != nil {
		c.started <- struct{}{}
	}
	if c.block != nil {
		<-c.block
	}

	if idx >= len(c.script) {
		return nil, errors.New("unexpected extra call")
	}
	return c.script[idx]()
}

func (c *scriptedCarrier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func ok(id string) func() (*gateway.SendMessageResponse, error) {
	return func() (*gateway.SendMessageResponse, error) {
		return &gateway.SendMessageResponse{ID: id, Status: "accepted"}, nil
	}
}

func transient() func() (*gateway.SendMessageResponse, error) {
	return func() (*gateway.SendMessageResponse, error) {
		return nil, &gateway.Error{StatusCode: 503, Code: "unavailable", Message: "try later"}
	}
}

func permanent(code string) func() (*gateway.SendMessageResponse, error) {
	return func() (*gateway.SendMessageResponse, error) {
		return nil, &gateway.Error{StatusCode: 422, Code: code, Message: "rejected"}
	}
}

type fakeStore struct {
	mu          sync.Mutex
	created     []*model.Message
	externalIDs map[string]string
	nextID      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{externalIDs: make(map[string]string)}
}

func (s *fakeStore) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	copied := *msg
	copied.ID = "msg-created"
	s.created = append(s.created, &copied)
	return &copied, nil
}

func (s *fakeStore) SetExternalID(ctx context.Context, id, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.externalIDs[id] = externalID
	return nil
}

type fakeTracker struct {
	mu          sync.Mutex
	transitions []state.Transition
}

func (f *fakeTracker) Apply(ctx context.Context, tr state.Transition) (bool, model.MessageState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, tr)
	return true, tr.Target, nil
}

func (f *fakeTracker) last() (state.Transition, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.transitions) == 0 {
		return state.Transition{}, false
	}
	return f.transitions[len(f.transitions)-1], true
}

func fastConfig() Config {
	return Config{MaxRetries: 3, RetryBase: time.Millisecond}
}

func queuedMessage() *model.Message {
	return &model.Message{
		ID:    "msg-1",
		From:  "+14155550100",
		To:    "+16175550123",
		Body:  "hello",
		State: model.MessageStateQueued,
	}
}

func TestDispatcher_Send_Success(t *testing.T) {
	carrier := &scriptedCarrier{script: []func() (*gateway.SendMessageResponse, error){ok("ext-1")}}
	store := newFakeStore()
	tracker := &fakeTracker{}
	d := NewDispatcher(carrier, store, tracker, fastConfig())

	msg := queuedMessage()
	externalID, err := d.Send(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "ext-1", externalID)
	require.NotNil(t, msg.ExternalID)
	assert.Equal(t, "ext-1", *msg.ExternalID)
	assert.Equal(t, "ext-1", store.externalIDs["msg-1"])

	tr, ok := tracker.last()
	require.True(t, ok)
	assert.Equal(t, model.MessageStateDispatched, tr.Target)
}

func TestDispatcher_Send_TransientFailureRetries(t *testing.T) {
	carrier := &scriptedCarrier{script: []func() (*gateway.SendMessageResponse, error){
		transient(),
		transient(),
		ok("ext-2"),
	}}
	d := NewDispatcher(carrier, newFakeStore(), &fakeTracker{}, fastConfig())

	externalID, err := d.Send(context.Background(), queuedMessage())
	require.NoError(t, err)
	assert.Equal(t, "ext-2", externalID)
	assert.Equal(t, 3, carrier.callCount())
}

// Three transient failures still leave one retry, so the fourth call
// succeeds and the message is dispatched.
func TestDispatcher_Send_SucceedsOnFinalRetry(t *testing.T) {
	carrier := &scriptedCarrier{script: []func() (*gateway.SendMessageResponse, error){
		transient(),
		transient(),
		transient(),
		ok("ext-6"),
	}}
	store := newFakeStore()
	tracker := &fakeTracker{}
	d := NewDispatcher(carrier, store, tracker, fastConfig())

	msg := queuedMessage()
	externalID, err := d.Send(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "ext-6", externalID)
	assert.Equal(t, 4, carrier.callCount())
	assert.Equal(t, "ext-6", store.externalIDs["msg-1"])

	tr, ok := tracker.last()
	require.True(t, ok)
	assert.Equal(t, model.MessageStateDispatched, tr.Target)
}

func TestDispatcher_Send_RetryBudgetExhausted(t *testing.T) {
	carrier := &scriptedCarrier{script: []func() (*gateway.SendMessageResponse, error){
		transient(),
		transient(),
		transient(),
		transient(),
	}}
	tracker := &fakeTracker{}
	d := NewDispatcher(carrier, newFakeStore(), tracker, fastConfig())

	_, err := d.Send(context.Background(), queuedMessage())
	assert.ErrorIs(t, err, ErrDispatchFailed)
	assert.Equal(t, 4, carrier.callCount())

	tr, ok := tracker.last()
	require.True(t, ok)
	assert.Equal(t, model.MessageStateFailed, tr.Target)
	assert.Equal(t, "upstream_unavailable", tr.FailureCode)
}

func TestDispatcher_Send_PermanentRejectionDoesNotRetry(t *testing.T) {
	carrier := &scriptedCarrier{script: []func() (*gateway.SendMessageResponse, error){
		permanent("INVALID_NUMBER"),
	}}
	tracker := &fakeTracker{}
	d := NewDispatcher(carrier, newFakeStore(), tracker, fastConfig())

	_, err := d.Send(context.Background(), queuedMessage())
	assert.ErrorIs(t, err, ErrDispatchRejected)
	assert.Equal(t, 1, carrier.callCount())

	tr, ok := tracker.last()
	require.True(t, ok)
	assert.Equal(t, model.MessageStateFailed, tr.Target)
	assert.Equal(t, "INVALID_NUMBER", tr.FailureCode)
}

func TestDispatcher_Send_PersistsUnsavedMessage(t *testing.T) {
	carrier := &scriptedCarrier{script: []func() (*gateway.SendMessageResponse, error){ok("ext-3")}}
	store := newFakeStore()
	d := NewDispatcher(carrier, store, &fakeTracker{}, fastConfig())

	msg := queuedMessage()
	msg.ID = ""
	_, err := d.Send(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "msg-created", msg.ID)
	require.Len(t, store.created, 1)
}

func TestDispatcher_Send_SingleFlightPerMessage(t *testing.T) {
	carrier := &scriptedCarrier{
		script:  []func() (*gateway.SendMessageResponse, error){ok("ext-4")},
		started: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	d := NewDispatcher(carrier, newFakeStore(), &fakeTracker{}, fastConfig())

	errCh := make(chan error, 1)
	go func() {
		_, err := d.Send(context.Background(), queuedMessage())
		errCh <- err
	}()

	// Wait until the first dispatch is inside the carrier call, then
	// race a second one for the same message id.
	<-carrier.started
	_, err := d.Send(context.Background(), queuedMessage())
	assert.ErrorIs(t, err, ErrAlreadyInFlight)

	close(carrier.block)
	require.NoError(t, <-errCh)

	// The claim is released after completion.
	carrier.mu.Lock()
	carrier.script = append(carrier.script, ok("ext-5"))
	carrier.mu.Unlock()
	carrier.block = nil
	carrier.started = nil
	_, err = d.Send(context.Background(), queuedMessage())
	require.NoError(t, err)
}
