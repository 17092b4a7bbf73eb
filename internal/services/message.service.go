package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/compliance"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/repository"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/logger"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/worker"
)

var ErrNotFound = errors.New("message not found")

// ComplianceGate decides whether an outbound message may leave the system.
type ComplianceGate interface {
	Evaluate(ctx context.Context, c compliance.Candidate) (model.Decision, error)
}

// MessageDispatcher hands an accepted message to the upstream gateway.
type MessageDispatcher interface {
	Send(ctx context.Context, msg *model.Message) (string, error)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)
	GetByID(ctx context.Context, id string) (*model.Message, error)
	List(ctx context.Context, f repository.MessageFilter) ([]*model.Message, int64, error)
}

// MessageService orchestrates the outbound path: validate, run the
// compliance gate, persist, then dispatch asynchronously through an
// in-process worker pool so the API answers as soon as the message is
// durably queued.
type MessageService struct {
	messages   MessageRepository
	gate       ComplianceGate
	dispatcher MessageDispatcher

	worker          *worker.WorkerManager
	dispatchTimeout time.Duration
}

func NewMessageService(messages MessageRepository, gate ComplianceGate, dispatcher MessageDispatcher) *MessageService {
	s := &MessageService{
		messages:        messages,
		gate:            gate,
		dispatcher:      dispatcher,
		worker:          worker.NewWorkerManager(4096, 32, nil),
		dispatchTimeout: 30 * time.Second,
	}
	s.worker.SetWorker(s.dispatchWorker)
	return s
}

// StartDispatchPool launches the background dispatch workers.
func (s *MessageService) StartDispatchPool() {
	go func() {
		if err := s.worker.Start(); err != nil {
			logger.Info("dispatch pool stopped", "reason", err)
		}
	}()
}

func (s *MessageService) StopDispatchPool() {
	s.worker.Exit()
}

// Send runs the full outbound path for a caller-submitted message.
func (s *MessageService) Send(ctx context.Context, req model.SendRequest) (*model.Message, model.Decision, error) {
	return s.send(ctx, req, false, false)
}

// SendReply is the path for system-generated replies to inbound
// keywords. bypassOptOut exempts only the opt-out check; it exists for
// the confirmation to the opt-out interaction itself. Reply bodies are
// operator-configured, so the gate also relaxes the per-use-case
// content rules for them.
func (s *MessageService) SendReply(ctx context.Context, req model.SendRequest, bypassOptOut bool) (*model.Message, model.Decision, error) {
	return s.send(ctx, req, bypassOptOut, true)
}

func (s *MessageService) send(ctx context.Context, req model.SendRequest, bypassOptOut, systemGenerated bool) (*model.Message, model.Decision, error) {
	if err := req.Validate(); err != nil {
		return nil, model.Decision{}, err
	}

	decision, err := s.gate.Evaluate(ctx, compliance.Candidate{
		From:            req.From,
		To:              req.To,
		Body:            req.Body,
		CampaignID:      req.CampaignID,
		At:              req.ScheduledAt,
		BypassOptOut:    bypassOptOut,
		SystemGenerated: systemGenerated,
	})
	if err != nil {
		return nil, decision, err
	}

	msg := &model.Message{
		Direction: model.DirectionOutbound,
		From:      req.From,
		To:        req.To,
		Body:      req.Body,
		MediaURLs: req.MediaURLs,
	}
	if req.CampaignID != "" {
		campaignID := req.CampaignID
		msg.CampaignID = &campaignID
	}

	if !decision.Allowed {
		// Denied sends are persisted too: the record is the audit
		// trail for why nothing left the gate.
		msg.State = model.MessageStateFailed
		msg.FailureCode = "compliance_denied"
		msg.FailureDetail = strings.Join(decision.FailureReasons(), ",")
		created, err := s.messages.Create(ctx, msg)
		if err != nil {
			return nil, decision, err
		}
		return created, decision, nil
	}

	msg.State = model.MessageStateQueued
	created, err := s.messages.Create(ctx, msg)
	if err != nil {
		return nil, decision, err
	}

	// The caller may still be serializing the returned message while the
	// pool dispatches, so the worker gets its own copy to mutate.
	job := *created
	s.worker.Enqueue(&job)
	return created, decision, nil
}

// dispatchWorker pushes one queued message through the dispatcher. The
// dispatcher owns retries and terminal failure recording; errors here
// are already persisted on the message row.
func (s *MessageService) dispatchWorker(workerIndex int, job interface{}) {
	msg, ok := job.(*model.Message)
	if !ok {
		logger.Error("invalid job type in dispatch pool", "worker", workerIndex)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.dispatchTimeout)
	defer cancel()

	if _, err := s.dispatcher.Send(ctx, msg); err != nil {
		logger.Warn("dispatch did not complete", "message_id", msg.ID, "error", err)
	}
}

func (s *MessageService) Get(ctx context.Context, id string) (*model.Message, error) {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

func (s *MessageService) List(ctx context.Context, f repository.MessageFilter) ([]*model.Message, int64, error) {
	return s.messages.List(ctx, f)
}
