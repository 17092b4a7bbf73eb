package model

// CampaignStatusApproved is the only registry status that permits sending.
const CampaignStatusApproved = "approved"

// Campaign use cases with content rules attached.
const (
	UseCaseAuthentication = "authentication"
	UseCasePromotional    = "promotional"
)

// Campaign is the read-only view of a registered campaign served by the
// external Campaign/Brand Registry.
type Campaign struct {
	ID               string `json:"id"`
	BrandID          string `json:"brand_id"`
	Status           string `json:"status"`
	UseCase          string `json:"use_case"`
	QuietHoursExempt bool   `json:"quiet_hours_exempt"`
}

// BrandTier carries the throughput allowance assigned to a brand based on
// its trust/verification level.
type BrandTier struct {
	BrandID      string  `json:"brand_id"`
	Capacity     int     `json:"capacity"`
	RefillPerSec float64 `json:"refill_per_sec"`
}
