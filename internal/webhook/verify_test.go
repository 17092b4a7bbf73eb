package webhook

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-webhook-secret"

func signedAt(t *testing.T, payload []byte, at time.Time) (signature, timestamp string) {
	t.Helper()
	timestamp = fmt.Sprintf("%d", at.Unix())
	return Sign([]byte(testSecret), payload, timestamp), timestamp
}

func frozenVerifier(at time.Time, maxSkew time.Duration) *Verifier {
	v := NewVerifier(testSecret, maxSkew)
	v.now = func() time.Time { return at }
	return v
}

func TestVerifier_Verify(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"event_id":"evt-1"}`)

	t.Run("valid signature", func(t *testing.T) {
		v := frozenVerifier(now, 5*time.Minute)
		sig, ts := signedAt(t, payload, now)
		require.NoError(t, v.Verify(payload, sig, ts))
	})

	t.Run("wrong secret", func(t *testing.T) {
		v := frozenVerifier(now, 5*time.Minute)
		_, ts := signedAt(t, payload, now)
		sig := Sign([]byte("other-secret"), payload, ts)
		assert.ErrorIs(t, v.Verify(payload, sig, ts), ErrBadSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		v := frozenVerifier(now, 5*time.Minute)
		sig, ts := signedAt(t, payload, now)
		tampered := []byte(`{"event_id":"evt-2"}`)
		assert.ErrorIs(t, v.Verify(tampered, sig, ts), ErrBadSignature)
	})

	t.Run("tampered timestamp invalidates signature", func(t *testing.T) {
		v := frozenVerifier(now, 5*time.Minute)
		sig, _ := signedAt(t, payload, now)
		forged := fmt.Sprintf("%d", now.Add(-time.Minute).Unix())
		assert.ErrorIs(t, v.Verify(payload, sig, forged), ErrBadSignature)
	})

	t.Run("timestamp too old", func(t *testing.T) {
		v := frozenVerifier(now, 5*time.Minute)
		sig, ts := signedAt(t, payload, now.Add(-6*time.Minute))
		assert.ErrorIs(t, v.Verify(payload, sig, ts), ErrStaleTimestamp)
	})

	t.Run("timestamp in the future", func(t *testing.T) {
		v := frozenVerifier(now, 5*time.Minute)
		sig, ts := signedAt(t, payload, now.Add(6*time.Minute))
		assert.ErrorIs(t, v.Verify(payload, sig, ts), ErrStaleTimestamp)
	})

	t.Run("skew boundary inclusive", func(t *testing.T) {
		v := frozenVerifier(now, 5*time.Minute)
		sig, ts := signedAt(t, payload, now.Add(-5*time.Minute))
		require.NoError(t, v.Verify(payload, sig, ts))
	})

	t.Run("malformed timestamp", func(t *testing.T) {
		v := frozenVerifier(now, 5*time.Minute)
		assert.ErrorIs(t, v.Verify(payload, "sig", "not-a-number"), ErrBadTimestamp)
	})
}

func TestSign_Deterministic(t *testing.T) {
	payload := []byte("payload")
	a := Sign([]byte(testSecret), payload, "1700000000")
	b := Sign([]byte(testSecret), payload, "1700000000")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}
