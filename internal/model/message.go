package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"
)

// Direction tells whether a message left the platform or arrived at it.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// MessageState is the lifecycle state of a message. States form a fixed
// total order; webhook events may arrive out of order and the stored state
// is always the most advanced point reached, never the latest arrival.
type MessageState string

const (
	MessageStateQueued     MessageState = "queued"
	MessageStateDispatched MessageState = "dispatched"
	MessageStateSent       MessageState = "sent"
	MessageStateDelivered  MessageState = "delivered"
	MessageStateFailed     MessageState = "failed"
)

var stateRank = map[MessageState]int{
	MessageStateQueued:     0,
	MessageStateDispatched: 1,
	MessageStateSent:       2,
	MessageStateDelivered:  3,
	MessageStateFailed:     4,
}

// Rank returns the position of the state in the total order. Unknown
// states rank below queued so they can never win a transition.
func (s MessageState) Rank() int {
	if r, ok := stateRank[s]; ok {
		return r
	}
	return -1
}

func (s MessageState) Valid() bool {
	_, ok := stateRank[s]
	return ok
}

// Terminal reports whether the state admits no further transitions.
func (s MessageState) Terminal() bool {
	return s == MessageStateDelivered || s == MessageStateFailed
}

// CanTransition reports whether moving from one state to another is a
// forward move in the total order. Transitions out of a terminal state and
// transitions into an earlier-or-equal state are rejected.
func CanTransition(from, to MessageState) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from.Terminal() {
		return false
	}
	return to.Rank() > from.Rank()
}

type Message struct {
	ID            string       `json:"id"`
	ExternalID    *string      `json:"external_id,omitempty"`
	Direction     Direction    `json:"direction"`
	From          string       `json:"from"`
	To            string       `json:"to"`
	Body          string       `json:"body"`
	MediaURLs     []string     `json:"media_urls,omitempty"`
	CampaignID    *string      `json:"campaign_id,omitempty"`
	Segments      int          `json:"segments"`
	CostMicro     *int64       `json:"cost_micro,omitempty"`
	State         MessageState `json:"state"`
	FailureCode   string       `json:"failure_code,omitempty"`
	FailureDetail string       `json:"failure_detail,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// SendRequest is the input for an outbound send.
type SendRequest struct {
	From       string
	To         string
	Body       string
	MediaURLs  []string
	CampaignID string
	// ScheduledAt defaults to now; the time-window check evaluates it in
	// the recipient's local timezone.
	ScheduledAt time.Time
}

func (r SendRequest) Validate() error {
	if strings.TrimSpace(r.From) == "" {
		return errors.New("from is required")
	}
	if strings.TrimSpace(r.To) == "" {
		return errors.New("to is required")
	}
	if strings.TrimSpace(r.Body) == "" && len(r.MediaURLs) == 0 {
		return errors.New("body or media is required")
	}
	if r.CampaignID == "" {
		return errors.New("campaign_id is required")
	}
	return nil
}

const (
	gsmSingleSegment = 160
	gsmMultiSegment  = 153
	ucsSingleSegment = 70
	ucsMultiSegment  = 67
)

// CountSegments computes the SMS segment count for a body. GSM-7 bodies
// pack 160 chars into one segment (153 per segment concatenated); anything
// needing UCS-2 drops to 70/67.
func CountSegments(body string) int {
	if body == "" {
		return 1
	}
	single, multi := gsmSingleSegment, gsmMultiSegment
	n := utf8.RuneCountInString(body)
	if !isGSM7(body) {
		single, multi = ucsSingleSegment, ucsMultiSegment
		// UCS-2 capacity is counted in UTF-16 code units, so astral
		// characters occupy two.
		n = len(utf16.Encode([]rune(body)))
	}
	if n <= single {
		return 1
	}
	return (n + multi - 1) / multi
}

const gsm7Chars = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà^{}\\[~]|€"

var gsm7Set = func() map[rune]struct{} {
	set := make(map[rune]struct{}, len(gsm7Chars))
	for _, r := range gsm7Chars {
		set[r] = struct{}{}
	}
	return set
}()

func isGSM7(s string) bool {
	for _, r := range s {
		if _, ok := gsm7Set[r]; !ok {
			return false
		}
	}
	return true
}
