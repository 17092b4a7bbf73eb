package registry

import (
	"fmt"
	"strings"
)

// areaCodeZones maps NANP area codes to IANA timezone ids. Trimmed to
// the codes the fleet actually sends to; unknown codes resolve to an
// error and the caller blocks the send.
var areaCodeZones = map[string]string{
	// Eastern
	"201": "America/New_York", "203": "America/New_York", "212": "America/New_York",
	"215": "America/New_York", "216": "America/New_York", "240": "America/New_York",
	"267": "America/New_York", "301": "America/New_York", "305": "America/New_York",
	"315": "America/New_York", "321": "America/New_York", "347": "America/New_York",
	"404": "America/New_York", "407": "America/New_York", "410": "America/New_York",
	"412": "America/New_York", "434": "America/New_York", "443": "America/New_York",
	"516": "America/New_York", "561": "America/New_York", "571": "America/New_York",
	"585": "America/New_York", "607": "America/New_York", "617": "America/New_York",
	"646": "America/New_York", "703": "America/New_York", "704": "America/New_York",
	"718": "America/New_York", "727": "America/New_York", "732": "America/New_York",
	"754": "America/New_York", "786": "America/New_York", "813": "America/New_York",
	"843": "America/New_York", "848": "America/New_York", "856": "America/New_York",
	"902": "America/Halifax", "904": "America/New_York", "914": "America/New_York",
	"917": "America/New_York", "919": "America/New_York", "954": "America/New_York",
	"973": "America/New_York", "980": "America/New_York",

	// Central
	"205": "America/Chicago", "210": "America/Chicago", "214": "America/Chicago",
	"224": "America/Chicago", "225": "America/Chicago", "254": "America/Chicago",
	"281": "America/Chicago", "312": "America/Chicago", "314": "America/Chicago",
	"316": "America/Chicago", "318": "America/Chicago", "331": "America/Chicago",
	"405": "America/Chicago", "409": "America/Chicago", "414": "America/Chicago",
	"469": "America/Chicago", "501": "America/Chicago", "504": "America/Chicago",
	"512": "America/Chicago", "515": "America/Chicago", "563": "America/Chicago",
	"601": "America/Chicago", "612": "America/Chicago", "615": "America/Chicago",
	"630": "America/Chicago", "651": "America/Chicago", "682": "America/Chicago",
	"708": "America/Chicago", "713": "America/Chicago", "731": "America/Chicago",
	"773": "America/Chicago", "815": "America/Chicago", "817": "America/Chicago",
	"832": "America/Chicago", "847": "America/Chicago", "901": "America/Chicago",
	"913": "America/Chicago", "920": "America/Chicago", "936": "America/Chicago",
	"972": "America/Chicago", "985": "America/Chicago",

	// Mountain
	"303": "America/Denver", "307": "America/Denver", "385": "America/Denver",
	"406": "America/Denver", "505": "America/Denver", "575": "America/Denver",
	"719": "America/Denver", "720": "America/Denver", "801": "America/Denver",
	"915": "America/Denver", "970": "America/Denver",

	// Arizona observes no DST.
	"480": "America/Phoenix", "520": "America/Phoenix", "602": "America/Phoenix",
	"623": "America/Phoenix", "928": "America/Phoenix",

	// Pacific
	"206": "America/Los_Angeles", "209": "America/Los_Angeles", "213": "America/Los_Angeles",
	"253": "America/Los_Angeles", "310": "America/Los_Angeles", "323": "America/Los_Angeles",
	"408": "America/Los_Angeles", "415": "America/Los_Angeles", "424": "America/Los_Angeles",
	"425": "America/Los_Angeles", "442": "America/Los_Angeles", "503": "America/Los_Angeles",
	"509": "America/Los_Angeles", "510": "America/Los_Angeles", "530": "America/Los_Angeles",
	"541": "America/Los_Angeles", "559": "America/Los_Angeles", "562": "America/Los_Angeles",
	"619": "America/Los_Angeles", "626": "America/Los_Angeles", "650": "America/Los_Angeles",
	"657": "America/Los_Angeles", "661": "America/Los_Angeles", "669": "America/Los_Angeles",
	"702": "America/Los_Angeles", "707": "America/Los_Angeles", "714": "America/Los_Angeles",
	"725": "America/Los_Angeles", "747": "America/Los_Angeles", "760": "America/Los_Angeles",
	"775": "America/Los_Angeles", "805": "America/Los_Angeles", "818": "America/Los_Angeles",
	"831": "America/Los_Angeles", "858": "America/Los_Angeles", "909": "America/Los_Angeles",
	"916": "America/Los_Angeles", "925": "America/Los_Angeles", "949": "America/Los_Angeles",
	"951": "America/Los_Angeles", "971": "America/Los_Angeles",

	// Alaska / Hawaii
	"907": "America/Anchorage", "808": "Pacific/Honolulu",
}

// AreaCodeResolver maps NANP numbers to a timezone by area code. It only
// understands +1 numbers; anything else is unresolved and the caller
// decides what unresolved means (the gate blocks).
type AreaCodeResolver struct{}

func NewAreaCodeResolver() *AreaCodeResolver {
	return &AreaCodeResolver{}
}

func (r *AreaCodeResolver) Resolve(phoneNumber string) (string, error) {
	digits := strings.TrimPrefix(phoneNumber, "+")
	digits = strings.TrimPrefix(digits, "1")
	if len(digits) != 10 {
		return "", fmt.Errorf("not a NANP number: %s", phoneNumber)
	}
	tz, ok := areaCodeZones[digits[:3]]
	if !ok {
		return "", fmt.Errorf("unknown area code %s", digits[:3])
	}
	return tz, nil
}
