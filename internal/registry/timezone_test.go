package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAreaCodeResolver_Resolve(t *testing.T) {
	resolver := NewAreaCodeResolver()

	cases := []struct {
		number   string
		expected string
	}{
		{"+16175550123", "America/New_York"},
		{"16175550123", "America/New_York"},
		{"6175550123", "America/New_York"},
		{"+13125550100", "America/Chicago"},
		{"+13035550100", "America/Denver"},
		{"+16025550100", "America/Phoenix"},
		{"+14155550100", "America/Los_Angeles"},
		{"+19075550100", "America/Anchorage"},
		{"+18085550100", "Pacific/Honolulu"},
		{"+19025550100", "America/Halifax"},
	}

	for _, tc := range cases {
		t.Run(tc.number, func(t *testing.T) {
			tz, err := resolver.Resolve(tc.number)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, tz)
		})
	}
}

func TestAreaCodeResolver_Resolve_Errors(t *testing.T) {
	resolver := NewAreaCodeResolver()

	cases := []struct {
		name   string
		number string
	}{
		{"too short", "+1617555"},
		{"too long", "+161755501234"},
		{"non-NANP country code", "+442071838750"},
		{"unknown area code", "+19995550100"},
		{"empty", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolver.Resolve(tc.number)
			assert.Error(t, err)
		})
	}
}
