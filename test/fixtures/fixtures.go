package fixtures

import (
	"time"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
)

var (
	CampaignApproved = model.Campaign{
		ID:      "cmp-approved",
		BrandID: "brd-1",
		Status:  model.CampaignStatusApproved,
		UseCase: "customer_care",
	}

	CampaignPromotional = model.Campaign{
		ID:      "cmp-promo",
		BrandID: "brd-1",
		Status:  model.CampaignStatusApproved,
		UseCase: model.UseCasePromotional,
	}

	CampaignSuspended = model.Campaign{
		ID:      "cmp-suspended",
		BrandID: "brd-2",
		Status:  "suspended",
		UseCase: "customer_care",
	}

	CampaignQuietHoursExempt = model.Campaign{
		ID:               "cmp-exempt",
		BrandID:          "brd-1",
		Status:           model.CampaignStatusApproved,
		UseCase:          "customer_care",
		QuietHoursExempt: true,
	}
)

func NewSendRequest(campaignID, from, to, body string) model.SendRequest {
	return model.SendRequest{
		From:       from,
		To:         to,
		Body:       body,
		CampaignID: campaignID,
	}
}

func NewInboundMessage(from, to, body string) *model.Message {
	return &model.Message{
		Direction: model.DirectionInbound,
		From:      from,
		To:        to,
		Body:      body,
		CreatedAt: time.Now(),
	}
}

func NewOptOutRecord(phoneNumber string, scope model.OptOutScope, scopeRef string) *model.OptOutRecord {
	return &model.OptOutRecord{
		PhoneNumber: phoneNumber,
		Scope:       scope,
		ScopeRef:    scopeRef,
		Method:      model.OptOutMethodProgrammatic,
		CreatedAt:   time.Now(),
	}
}

var (
	// Eastern-time recipients; the area code resolver maps these to
	// America/New_York.
	ValidRecipients = []string{
		"+12125550100",
		"+16465550101",
		"+13055550102",
		"+14045550103",
	}

	InvalidRecipients = []string{
		"",
		"123",
		"invalid",
		"+",
		"abc123",
	}

	CleanBodies = []string{
		"Your order has shipped.",
		"Appointment reminder for tomorrow at 3pm.",
		"Your verification code is 402913.",
	}

	RestrictedBodies = []string{
		"Happy hour beer specials all week",
		"Premium cigars, new arrivals",
		"Win big at our casino night",
	}
)

func SendRequestClean() model.SendRequest {
	return NewSendRequest(CampaignApproved.ID, "+18005550000", ValidRecipients[0], CleanBodies[0])
}

func SendRequestRestrictedContent() model.SendRequest {
	return NewSendRequest(CampaignApproved.ID, "+18005550000", ValidRecipients[0], RestrictedBodies[0])
}

func SendRequestAt(base model.SendRequest, at time.Time) model.SendRequest {
	base.ScheduledAt = at
	return base
}

func EventPayloadDelivered(eventID, externalID string) map[string]interface{} {
	return map[string]interface{}{
		"event_id":    eventID,
		"event_type":  model.EventTypeDelivered,
		"resource_id": externalID,
		"occurred_at": time.Now().UTC().Format(time.RFC3339),
	}
}

func EventPayloadReceived(eventID, from, to, text string) map[string]interface{} {
	return map[string]interface{}{
		"event_id":    eventID,
		"event_type":  model.EventTypeReceived,
		"resource_id": eventID,
		"occurred_at": time.Now().UTC().Format(time.RFC3339),
		"body": map[string]interface{}{
			"from": from,
			"to":   to,
			"text": text,
		},
	}
}
