package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name    string
		from    MessageState
		to      MessageState
		allowed bool
	}{
		{"queued to dispatched", MessageStateQueued, MessageStateDispatched, true},
		{"queued to failed", MessageStateQueued, MessageStateFailed, true},
		{"dispatched to sent", MessageStateDispatched, MessageStateSent, true},
		{"sent to delivered", MessageStateSent, MessageStateDelivered, true},
		{"skipping sent is a forward move", MessageStateDispatched, MessageStateDelivered, true},
		{"same state", MessageStateSent, MessageStateSent, false},
		{"backwards", MessageStateSent, MessageStateDispatched, false},
		{"out of delivered", MessageStateDelivered, MessageStateFailed, false},
		{"out of failed", MessageStateFailed, MessageStateDelivered, false},
		{"unknown source", MessageState("limbo"), MessageStateSent, false},
		{"unknown target", MessageStateQueued, MessageState("limbo"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to))
		})
	}
}

func TestMessageState_Terminal(t *testing.T) {
	assert.True(t, MessageStateDelivered.Terminal())
	assert.True(t, MessageStateFailed.Terminal())
	assert.False(t, MessageStateQueued.Terminal())
	assert.False(t, MessageStateDispatched.Terminal())
	assert.False(t, MessageStateSent.Terminal())
}

func TestCountSegments(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		expected int
	}{
		{"empty body", "", 1},
		{"short GSM-7", "Your code is 482913", 1},
		{"exactly one GSM-7 segment", strings.Repeat("a", 160), 1},
		{"just over one GSM-7 segment", strings.Repeat("a", 161), 2},
		{"two full concatenated segments", strings.Repeat("a", 306), 2},
		{"three concatenated segments", strings.Repeat("a", 307), 3},
		{"short UCS-2", "Договор подписан", 1},
		{"exactly one UCS-2 segment", strings.Repeat("б", 70), 1},
		{"just over one UCS-2 segment", strings.Repeat("б", 71), 2},
		{"emoji forces UCS-2", strings.Repeat("a", 69) + "🎉", 2},
		{"astral runes fill two units each", strings.Repeat("🎉", 35), 1},
		{"astral runes overflow the segment", strings.Repeat("🎉", 36), 2},
		{"GSM-7 extension chars still GSM-7", "50% off {today} ~maybe", 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CountSegments(tc.body))
		})
	}
}

func TestSendRequest_Validate(t *testing.T) {
	valid := SendRequest{
		From:       "+14155550100",
		To:         "+16175550123",
		Body:       "hi",
		CampaignID: "cmp-1",
	}
	assert.NoError(t, valid.Validate())

	t.Run("media-only body is valid", func(t *testing.T) {
		r := valid
		r.Body = ""
		r.MediaURLs = []string{"https://cdn.example.com/a.png"}
		assert.NoError(t, r.Validate())
	})

	t.Run("missing fields", func(t *testing.T) {
		for _, mutate := range []func(*SendRequest){
			func(r *SendRequest) { r.From = " " },
			func(r *SendRequest) { r.To = "" },
			func(r *SendRequest) { r.Body = "  " },
			func(r *SendRequest) { r.CampaignID = "" },
		} {
			r := valid
			mutate(&r)
			assert.Error(t, r.Validate())
		}
	})
}

func TestMessageStateForEvent(t *testing.T) {
	cases := []struct {
		eventType string
		state     MessageState
		ok        bool
	}{
		{EventTypeSent, MessageStateSent, true},
		{EventTypeDelivered, MessageStateDelivered, true},
		{EventTypeDeliveryFailed, MessageStateFailed, true},
		{EventTypeReceived, "", false},
		{"carrier_heartbeat", "", false},
	}

	for _, tc := range cases {
		state, ok := MessageStateForEvent(tc.eventType)
		assert.Equal(t, tc.ok, ok, tc.eventType)
		assert.Equal(t, tc.state, state, tc.eventType)
	}
}

func TestDecision_FailureReasons(t *testing.T) {
	d := Decision{
		Checks: []CheckResult{
			{Name: CheckCampaignStatus, Passed: true},
			{Name: CheckOptOut, Passed: false, Reason: ReasonOptedOut},
			{Name: CheckContent, Passed: true},
			{Name: CheckTimeWindow, Passed: false, Reason: ReasonTimeWindow},
		},
	}

	assert.Equal(t, []string{ReasonOptedOut, ReasonTimeWindow}, d.FailureReasons())
	assert.True(t, d.Denied(ReasonOptedOut))
	assert.False(t, d.Denied(ReasonContentViolation))
}
