package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/logger"
	"github.com/valyala/fasthttp"
)

// ErrNotFound means the registry has no record for the requested id.
var ErrNotFound = fmt.Errorf("registry: not found")

type Config struct {
	URL      string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type cacheEntry struct {
	campaign  *model.Campaign
	tier      *model.BrandTier
	fetchedAt time.Time
}

// Client reads campaign and brand records from the external
// Campaign/Brand Registry. Responses are cached briefly so the gate does
// not hit the registry once per message; registry writes propagate within
// CacheTTL.
type Client struct {
	config *Config
	http   *fasthttp.Client

	mu        sync.RWMutex
	campaigns map[string]cacheEntry
	tiers     map[string]cacheEntry
}

func NewClient(config *Config) (*Client, error) {
	if config == nil || config.URL == "" {
		return nil, fmt.Errorf("registry url is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Second
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 30 * time.Second
	}

	httpClient := &fasthttp.Client{
		ReadTimeout:         config.Timeout,
		WriteTimeout:        config.Timeout,
		MaxIdleConnDuration: 60 * time.Second,
	}

	logger.Info("registry client initialized", "url", config.URL, "cache_ttl", config.CacheTTL)

	return &Client{
		config:    config,
		http:      httpClient,
		campaigns: make(map[string]cacheEntry),
		tiers:     make(map[string]cacheEntry),
	}, nil
}

// GetCampaign returns the registry's view of a campaign.
func (c *Client) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	c.mu.RLock()
	entry, ok := c.campaigns[id]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < c.config.CacheTTL {
		return entry.campaign, nil
	}

	body, err := c.doGet(ctx, "/v1/campaigns/"+id)
	if err != nil {
		// A stale cached record beats a hard failure while the
		// registry is unreachable.
		if ok {
			logger.Warn("registry unreachable, serving stale campaign", "campaign_id", id, "error", err)
			return entry.campaign, nil
		}
		return nil, err
	}

	var campaign model.Campaign
	if err := json.Unmarshal(body, &campaign); err != nil {
		return nil, fmt.Errorf("registry: failed to unmarshal campaign: %w", err)
	}

	c.mu.Lock()
	c.campaigns[id] = cacheEntry{campaign: &campaign, fetchedAt: time.Now()}
	c.mu.Unlock()

	return &campaign, nil
}

// GetBrandTier returns the throughput tier assigned to a brand.
func (c *Client) GetBrandTier(ctx context.Context, brandID string) (*model.BrandTier, error) {
	c.mu.RLock()
	entry, ok := c.tiers[brandID]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < c.config.CacheTTL {
		return entry.tier, nil
	}

	body, err := c.doGet(ctx, "/v1/brands/"+brandID+"/tier")
	if err != nil {
		if ok {
			logger.Warn("registry unreachable, serving stale tier", "brand_id", brandID, "error", err)
			return entry.tier, nil
		}
		return nil, err
	}

	var tier model.BrandTier
	if err := json.Unmarshal(body, &tier); err != nil {
		return nil, fmt.Errorf("registry: failed to unmarshal tier: %w", err)
	}

	c.mu.Lock()
	c.tiers[brandID] = cacheEntry{tier: &tier, fetchedAt: time.Now()}
	c.mu.Unlock()

	return &tier, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.URL + path)
	req.Header.SetMethod("GET")

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("registry: request failed: %w", err)
	}

	switch status := resp.StatusCode(); {
	case status == fasthttp.StatusNotFound:
		return nil, ErrNotFound
	case status != fasthttp.StatusOK:
		return nil, fmt.Errorf("registry: unexpected status %d", status)
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, nil
}
