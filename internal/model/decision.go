package model

import "time"

// Check names reported inside a compliance decision.
const (
	CheckCampaignStatus = "campaign_status"
	CheckOptOut         = "opt_out"
	CheckContent        = "content"
	CheckTimeWindow     = "time_window"
	CheckThroughput     = "throughput"
)

// Deny reasons surfaced to callers and logs.
const (
	ReasonCampaignNotApproved = "campaign_not_approved"
	ReasonOptedOut            = "opted_out"
	ReasonContentViolation    = "content_violation"
	ReasonTimeWindow          = "time_window"
	ReasonThroughput          = "throughput"
)

type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Decision is the outcome of a compliance evaluation. It is ephemeral:
// logged but never persisted as a first-class entity. A deny always lists
// every failing check, not just the first.
type Decision struct {
	Allowed     bool          `json:"allowed"`
	Checks      []CheckResult `json:"checks"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
}

// FailureReasons returns the reasons of all failed checks in check order.
func (d Decision) FailureReasons() []string {
	var reasons []string
	for _, c := range d.Checks {
		if !c.Passed {
			reasons = append(reasons, c.Reason)
		}
	}
	return reasons
}

// Denied reports whether a specific reason contributed to a deny.
func (d Decision) Denied(reason string) bool {
	for _, c := range d.Checks {
		if !c.Passed && c.Reason == reason {
			return true
		}
	}
	return false
}
