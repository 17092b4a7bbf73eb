package compliance

import (
	"fmt"
	"time"
)

// TimezoneResolver maps a phone number to an IANA timezone id. Backed by
// an external number→region data source.
type TimezoneResolver interface {
	Resolve(phoneNumber string) (string, error)
}

// TimeWindow evaluates whether a send lands inside the allowed local-time
// window for the recipient. Allowed iff local hour is in [StartHour,
// EndHour). No weekend or holiday exceptions unless the campaign declares
// a quiet-hours exemption (handled by the gate, not here).
type TimeWindow struct {
	resolver  TimezoneResolver
	StartHour int
	EndHour   int
}

func NewTimeWindow(resolver TimezoneResolver, startHour, endHour int) *TimeWindow {
	return &TimeWindow{
		resolver:  resolver,
		StartHour: startHour,
		EndHour:   endHour,
	}
}

// Allowed evaluates the window for a recipient at a given instant. When
// the timezone cannot be resolved the send is blocked: a wrong-hour send
// is a compliance violation, a delayed one is not.
func (w *TimeWindow) Allowed(phoneNumber string, at time.Time) (bool, string) {
	tzID, err := w.resolver.Resolve(phoneNumber)
	if err != nil {
		return false, fmt.Sprintf("timezone unresolved for %s: %v", phoneNumber, err)
	}
	loc, err := time.LoadLocation(tzID)
	if err != nil {
		return false, fmt.Sprintf("unknown timezone %q: %v", tzID, err)
	}

	localHour := at.In(loc).Hour()
	if localHour >= w.StartHour && localHour < w.EndHour {
		return true, ""
	}
	return false, fmt.Sprintf("local hour %02d outside [%02d:00, %02d:00) in %s", localHour, w.StartHour, w.EndHour, tzID)
}
