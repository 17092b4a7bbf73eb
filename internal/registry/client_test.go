package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
)

func registryServer(t *testing.T, hits *int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/campaigns/cmp-1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		json.NewEncoder(w).Encode(model.Campaign{
			ID:      "cmp-1",
			BrandID: "brd-1",
			Status:  model.CampaignStatusApproved,
			UseCase: "customer_care",
		})
	})
	mux.HandleFunc("/v1/brands/brd-1/tier", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		json.NewEncoder(w).Encode(model.BrandTier{
			BrandID:      "brd-1",
			Capacity:     60,
			RefillPerSec: 1,
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClient_GetCampaign(t *testing.T) {
	var hits int64
	server := registryServer(t, &hits)

	client, err := NewClient(&Config{URL: server.URL, CacheTTL: time.Minute})
	require.NoError(t, err)

	ctx := context.Background()
	campaign, err := client.GetCampaign(ctx, "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, "cmp-1", campaign.ID)
	assert.Equal(t, model.CampaignStatusApproved, campaign.Status)

	// Second lookup is served from cache.
	_, err = client.GetCampaign(ctx, "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestClient_GetCampaign_NotFound(t *testing.T) {
	var hits int64
	server := registryServer(t, &hits)

	client, err := NewClient(&Config{URL: server.URL})
	require.NoError(t, err)

	_, err = client.GetCampaign(context.Background(), "cmp-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_GetCampaign_ServesStaleOnOutage(t *testing.T) {
	var hits int64
	server := registryServer(t, &hits)

	// TTL short enough that the second lookup misses the cache.
	client, err := NewClient(&Config{URL: server.URL, CacheTTL: time.Nanosecond, Timeout: 500 * time.Millisecond})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = client.GetCampaign(ctx, "cmp-1")
	require.NoError(t, err)

	server.Close()

	campaign, err := client.GetCampaign(ctx, "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, "cmp-1", campaign.ID)
}

func TestClient_GetBrandTier(t *testing.T) {
	var hits int64
	server := registryServer(t, &hits)

	client, err := NewClient(&Config{URL: server.URL, CacheTTL: time.Minute})
	require.NoError(t, err)

	tier, err := client.GetBrandTier(context.Background(), "brd-1")
	require.NoError(t, err)
	assert.Equal(t, 60, tier.Capacity)
	assert.Equal(t, float64(1), tier.RefillPerSec)
}

func TestTierLimits_ResolveLimits(t *testing.T) {
	var hits int64
	server := registryServer(t, &hits)

	client, err := NewClient(&Config{URL: server.URL, CacheTTL: time.Minute})
	require.NoError(t, err)

	limits, err := NewTierLimits(client).ResolveLimits(context.Background(), "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, 60, limits.Capacity)
	assert.Equal(t, float64(1), limits.RefillPerSec)
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	_, err = NewClient(&Config{})
	assert.Error(t, err)
}
