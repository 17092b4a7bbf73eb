package inbound

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/logger"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/prom"
)

var (
	stopKeywords  = map[string]struct{}{"STOP": {}, "UNSUBSCRIBE": {}, "CANCEL": {}, "END": {}, "QUIT": {}}
	helpKeywords  = map[string]struct{}{"HELP": {}, "INFO": {}}
	startKeywords = map[string]struct{}{"START": {}, "SUBSCRIBE": {}, "YES": {}}
)

// Classify normalizes an inbound body (trim, uppercase) and matches it
// against the fixed keyword families. Exact match only: "please stop
// calling" is conversation, not an opt-out.
func Classify(body string) model.KeywordAction {
	normalized := strings.ToUpper(strings.TrimSpace(body))
	if _, ok := stopKeywords[normalized]; ok {
		return model.KeywordActionStop
	}
	if _, ok := helpKeywords[normalized]; ok {
		return model.KeywordActionHelp
	}
	if _, ok := startKeywords[normalized]; ok {
		return model.KeywordActionStart
	}
	return model.KeywordActionNone
}

// MessageStore persists inbound messages and resolves which campaign last
// messaged a recipient from a given number.
type MessageStore interface {
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)
	LatestOutboundCampaign(ctx context.Context, from, to string) (*string, error)
}

// OptOutLedger is the write surface of the opt-out ledger.
type OptOutLedger interface {
	Create(ctx context.Context, rec *model.OptOutRecord) (bool, error)
	Revoke(ctx context.Context, phoneNumber string, at time.Time) (int64, error)
}

// ReplySender enqueues automated replies through the normal send path.
// bypassOptOut skips only the opt-out check; content and time-window
// checks still apply.
type ReplySender interface {
	SendReply(ctx context.Context, req model.SendRequest, bypassOptOut bool) (*model.Message, model.Decision, error)
}

type Replies struct {
	OptOutConfirmation string
	OptInConfirmation  string
	Help               string
}

// Processor classifies inbound messages and feeds the opt-out ledger.
// Every inbound message is stored; only keyword matches trigger actions.
type Processor struct {
	messages MessageStore
	ledger   OptOutLedger
	sender   ReplySender
	replies  Replies
}

func NewProcessor(messages MessageStore, ledger OptOutLedger, sender ReplySender, replies Replies) *Processor {
	return &Processor{
		messages: messages,
		ledger:   ledger,
		sender:   sender,
		replies:  replies,
	}
}

// HandleInbound stores the message, classifies it, and performs the
// keyword action. from is the replying recipient, to is our sending
// number.
func (p *Processor) HandleInbound(ctx context.Context, from, to, body string, receivedAt time.Time) error {
	msg, err := p.messages.Create(ctx, &model.Message{
		Direction: model.DirectionInbound,
		From:      from,
		To:        to,
		Body:      body,
		State:     model.MessageStateDelivered,
		CreatedAt: receivedAt,
	})
	if err != nil {
		return fmt.Errorf("store inbound message: %w", err)
	}

	action := Classify(body)
	prom.IncInboundKeyword(string(action))

	switch action {
	case model.KeywordActionStop:
		return p.handleStop(ctx, msg)
	case model.KeywordActionHelp:
		return p.handleHelp(ctx, msg)
	case model.KeywordActionStart:
		return p.handleStart(ctx, msg)
	default:
		return nil
	}
}

func (p *Processor) handleStop(ctx context.Context, msg *model.Message) error {
	scope := model.OptOutScopeGlobal
	scopeRef := ""
	campaignID := ""
	// Scope the opt-out to the campaign that owns the number the
	// recipient replied to; a number we cannot attribute gets a global
	// opt-out, the safer reading.
	if id, err := p.messages.LatestOutboundCampaign(ctx, msg.To, msg.From); err == nil && id != nil {
		scope = model.OptOutScopeCampaign
		scopeRef = *id
		campaignID = *id
	}

	created, err := p.ledger.Create(ctx, &model.OptOutRecord{
		PhoneNumber:     msg.From,
		Scope:           scope,
		ScopeRef:        scopeRef,
		Method:          model.OptOutMethodReplyKeyword,
		OriginMessageID: &msg.ID,
		CreatedAt:       time.Now(),
	})
	if err != nil {
		return fmt.Errorf("write opt-out: %w", err)
	}
	if created {
		prom.IncOptOut(string(model.OptOutMethodReplyKeyword))
		logger.Info("opt-out recorded", "number", msg.From, "scope", scope, "scope_ref", scopeRef)
	}

	// This exact interaction is the opt-out event, so the confirmation
	// bypasses the opt-out check; content and time checks still apply.
	p.reply(ctx, msg, campaignID, p.replies.OptOutConfirmation, true)
	return nil
}

func (p *Processor) handleHelp(ctx context.Context, msg *model.Message) error {
	// Carrier rules require HELP responses even for opted-out numbers.
	p.reply(ctx, msg, "", p.replies.Help, true)
	return nil
}

func (p *Processor) handleStart(ctx context.Context, msg *model.Message) error {
	revoked, err := p.ledger.Revoke(ctx, msg.From, time.Now())
	if err != nil {
		return fmt.Errorf("revoke opt-outs: %w", err)
	}
	if revoked > 0 {
		logger.Info("opt-outs revoked by START", "number", msg.From, "records", revoked)
	}
	p.reply(ctx, msg, "", p.replies.OptInConfirmation, false)
	return nil
}

// reply enqueues an automated response. A compliance deny (e.g. a STOP
// at 05:00 local keeps the confirmation inside quiet hours) or a
// dispatch failure is logged, never propagated: the ledger write is the
// part that must not be lost.
func (p *Processor) reply(ctx context.Context, inbound *model.Message, campaignID, body string, bypassOptOut bool) {
	if body == "" || p.sender == nil {
		return
	}
	if campaignID == "" {
		// The reply goes out under the campaign that owns the number
		// the recipient texted; without one there is nothing to send
		// under.
		id, err := p.messages.LatestOutboundCampaign(ctx, inbound.To, inbound.From)
		if err != nil || id == nil {
			logger.Warn("keyword reply skipped, no attributable campaign", "to", inbound.From)
			return
		}
		campaignID = *id
	}
	req := model.SendRequest{
		From:       inbound.To,
		To:         inbound.From,
		Body:       body,
		CampaignID: campaignID,
	}
	_, decision, err := p.sender.SendReply(ctx, req, bypassOptOut)
	if err != nil {
		logger.Error("keyword reply failed", "to", req.To, "error", err)
		return
	}
	if !decision.Allowed {
		logger.Warn("keyword reply denied by compliance",
			"to", req.To, "reasons", strings.Join(decision.FailureReasons(), ","))
	}
}
