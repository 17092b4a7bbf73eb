package compliance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/logger"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/prom"
)

// CampaignRegistry is the read-only surface of the external Campaign/Brand
// Registry consumed by the gate.
type CampaignRegistry interface {
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
}

// OptOutLedger is the lookup surface of the opt-out ledger.
type OptOutLedger interface {
	FindActive(ctx context.Context, phoneNumber, campaignID, brandID string) ([]*model.OptOutRecord, error)
}

// RateAcquirer reserves throughput. The acquire IS the reservation: a
// granted token is consumed by the check itself, there is no second trip.
type RateAcquirer interface {
	TryAcquire(ctx context.Context, scopeID string) (granted bool, retryAfter time.Duration, err error)
}

// Candidate is an outbound message awaiting a compliance decision.
type Candidate struct {
	From       string
	To         string
	Body       string
	CampaignID string
	// At is the scheduled or current send time.
	At time.Time
	// BypassOptOut skips only the opt-out check. Used for the
	// confirmation reply to the opt-out interaction itself.
	BypassOptOut bool
	// SystemGenerated marks operator-configured keyword replies. The
	// content check drops the per-use-case rules for these bodies so
	// a promotional campaign's opt-out confirmation is not denied for
	// lacking an opt-out instruction.
	SystemGenerated bool
}

// Gate combines the opt-out, content, time-window and throughput checks
// into one decision. A deny enumerates every failing check.
type Gate struct {
	registry CampaignRegistry
	ledger   OptOutLedger
	content  *ContentFilter
	window   *TimeWindow
	rates    RateAcquirer
}

func NewGate(registry CampaignRegistry, ledger OptOutLedger, content *ContentFilter, window *TimeWindow, rates RateAcquirer) *Gate {
	return &Gate{
		registry: registry,
		ledger:   ledger,
		content:  content,
		window:   window,
		rates:    rates,
	}
}

// Evaluate runs the full check pipeline. A campaign that is not approved
// denies immediately and bypasses the other checks; otherwise all four
// checks run and every failure is reported. Evaluate has no side effects
// on deny beyond the throughput token consumed by its own check.
func (g *Gate) Evaluate(ctx context.Context, c Candidate) (model.Decision, error) {
	decision := model.Decision{EvaluatedAt: time.Now()}
	if c.At.IsZero() {
		c.At = decision.EvaluatedAt
	}

	campaign, err := g.registry.GetCampaign(ctx, c.CampaignID)
	if err != nil {
		return decision, fmt.Errorf("campaign lookup %s: %w", c.CampaignID, err)
	}

	if campaign.Status != model.CampaignStatusApproved {
		decision.Checks = append(decision.Checks, model.CheckResult{
			Name:   model.CheckCampaignStatus,
			Passed: false,
			Reason: model.ReasonCampaignNotApproved,
			Detail: fmt.Sprintf("campaign %s has status %q", campaign.ID, campaign.Status),
		})
		g.record(decision)
		return decision, nil
	}

	decision.Checks = append(decision.Checks,
		g.checkOptOut(ctx, c, campaign),
		g.checkContent(c, campaign),
		g.checkTimeWindow(c, campaign),
		g.checkThroughput(ctx, campaign),
	)

	decision.Allowed = true
	for _, check := range decision.Checks {
		if !check.Passed {
			decision.Allowed = false
		}
	}

	g.record(decision)
	return decision, nil
}

func (g *Gate) checkOptOut(ctx context.Context, c Candidate, campaign *model.Campaign) model.CheckResult {
	result := model.CheckResult{Name: model.CheckOptOut, Passed: true}
	if c.BypassOptOut {
		result.Detail = "bypassed for opt-out confirmation"
		return result
	}

	records, err := g.ledger.FindActive(ctx, c.To, campaign.ID, campaign.BrandID)
	if err != nil {
		// Ledger unavailable means consent is unknown; deny rather
		// than risk messaging an opted-out recipient.
		result.Passed = false
		result.Reason = model.ReasonOptedOut
		result.Detail = fmt.Sprintf("opt-out lookup failed: %v", err)
		return result
	}
	if len(records) > 0 {
		result.Passed = false
		result.Reason = model.ReasonOptedOut
		result.Detail = fmt.Sprintf("recipient opted out at %s scope", records[0].Scope)
	}
	return result
}

func (g *Gate) checkContent(c Candidate, campaign *model.Campaign) model.CheckResult {
	result := model.CheckResult{Name: model.CheckContent, Passed: true}
	var violations []string
	if c.SystemGenerated {
		violations = g.content.ReplyViolations(c.Body)
	} else {
		violations = g.content.Violations(c.Body, campaign.UseCase)
	}
	if len(violations) > 0 {
		result.Passed = false
		result.Reason = model.ReasonContentViolation
		result.Detail = strings.Join(violations, ",")
	}
	return result
}

func (g *Gate) checkTimeWindow(c Candidate, campaign *model.Campaign) model.CheckResult {
	result := model.CheckResult{Name: model.CheckTimeWindow, Passed: true}
	if campaign.QuietHoursExempt {
		result.Detail = "campaign exempt from quiet hours"
		return result
	}
	allowed, detail := g.window.Allowed(c.To, c.At)
	if !allowed {
		result.Passed = false
		result.Reason = model.ReasonTimeWindow
		result.Detail = detail
	}
	return result
}

func (g *Gate) checkThroughput(ctx context.Context, campaign *model.Campaign) model.CheckResult {
	result := model.CheckResult{Name: model.CheckThroughput, Passed: true}
	granted, retryAfter, err := g.rates.TryAcquire(ctx, campaign.ID)
	if err != nil {
		result.Passed = false
		result.Reason = model.ReasonThroughput
		result.Detail = fmt.Sprintf("rate acquisition failed: %v", err)
		return result
	}
	if !granted {
		result.Passed = false
		result.Reason = model.ReasonThroughput
		result.Detail = fmt.Sprintf("retry after %s", retryAfter)
	}
	return result
}

func (g *Gate) record(d model.Decision) {
	for _, check := range d.Checks {
		outcome := "pass"
		if !check.Passed {
			outcome = "fail"
		}
		prom.IncComplianceCheck(check.Name, outcome)
	}
	if !d.Allowed {
		logger.Info("compliance deny", "reasons", strings.Join(d.FailureReasons(), ","))
	}
}
