package registry

import (
	"context"
	"fmt"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/ratelimit"
)

// TierLimits resolves a campaign's throughput limits from its brand tier
// in the registry. Scope ids are campaign ids; the governor falls back
// to its defaults when resolution fails.
type TierLimits struct {
	client *Client
}

func NewTierLimits(client *Client) *TierLimits {
	return &TierLimits{client: client}
}

func (t *TierLimits) ResolveLimits(ctx context.Context, scopeID string) (ratelimit.Limits, error) {
	campaign, err := t.client.GetCampaign(ctx, scopeID)
	if err != nil {
		return ratelimit.Limits{}, fmt.Errorf("resolve campaign %s: %w", scopeID, err)
	}
	tier, err := t.client.GetBrandTier(ctx, campaign.BrandID)
	if err != nil {
		return ratelimit.Limits{}, fmt.Errorf("resolve tier for brand %s: %w", campaign.BrandID, err)
	}
	return ratelimit.Limits{
		Capacity:     tier.Capacity,
		RefillPerSec: tier.RefillPerSec,
	}, nil
}
