package model

import "time"

// OptOutScope bounds how far a recipient's opt-out reaches.
type OptOutScope string

const (
	OptOutScopeCampaign OptOutScope = "campaign"
	OptOutScopeBrand    OptOutScope = "brand"
	OptOutScopeGlobal   OptOutScope = "global"
)

// OptOutMethod records how the opt-out was captured.
type OptOutMethod string

const (
	OptOutMethodReplyKeyword OptOutMethod = "reply_keyword"
	OptOutMethodManual       OptOutMethod = "manual"
	OptOutMethodProgrammatic OptOutMethod = "programmatic"
)

// OptOutRecord is one entry in the opt-out ledger, unique per
// (phone number, scope, scope ref). Rows are never deleted: a START
// keyword revokes logically via RevokedAt, and a repeat STOP re-arms the
// same row.
type OptOutRecord struct {
	ID          string      `json:"id"`
	PhoneNumber string      `json:"phone_number"`
	Scope       OptOutScope `json:"scope"`
	// ScopeRef holds the campaign or brand id; empty for global scope.
	ScopeRef        string       `json:"scope_ref,omitempty"`
	Method          OptOutMethod `json:"method"`
	OriginMessageID *string      `json:"origin_message_id,omitempty"`
	RevokedAt       *time.Time   `json:"revoked_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Active reports whether the record still suppresses sends.
func (r OptOutRecord) Active() bool {
	return r.RevokedAt == nil
}
