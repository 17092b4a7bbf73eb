package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

var (
	// ErrBadSignature means the payload was not signed with our secret.
	ErrBadSignature = errors.New("webhook signature mismatch")
	// ErrStaleTimestamp means the signed timestamp falls outside the
	// replay window.
	ErrStaleTimestamp = errors.New("webhook timestamp outside replay window")
	// ErrBadTimestamp means the timestamp header is not a unix epoch.
	ErrBadTimestamp = errors.New("webhook timestamp malformed")
)

// Verifier checks gateway webhook authenticity: an HMAC-SHA256 signature
// over "<timestamp>.<payload>" with a shared secret, bounded by a replay
// window on the signed timestamp.
type Verifier struct {
	secret  []byte
	maxSkew time.Duration
	now     func() time.Time
}

func NewVerifier(secret string, maxSkew time.Duration) *Verifier {
	if maxSkew <= 0 {
		maxSkew = 5 * time.Minute
	}
	return &Verifier{
		secret:  []byte(secret),
		maxSkew: maxSkew,
		now:     time.Now,
	}
}

// Verify validates the signature and the replay window. The timestamp is
// the out-of-band header value, unix seconds.
func (v *Verifier) Verify(payload []byte, signature, timestamp string) error {
	epoch, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrBadTimestamp
	}

	skew := v.now().Sub(time.Unix(epoch, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.maxSkew {
		return ErrStaleTimestamp
	}

	expected := Sign(v.secret, payload, timestamp)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// Sign computes the hex signature for a payload and timestamp. Shared
// with the carrier simulator and tests.
func Sign(secret, payload []byte, timestamp string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
