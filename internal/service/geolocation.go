package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Location is the coarse city/region/country resolution of a network address.
type Location struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// GeoResolver resolves coarse locations through an external lookup service
// (ip-api.com by default). Results are cached; lookups are rate limited to
// stay inside the provider quota. Every failure path returns nil: enrichment
// is optional and must never affect the attempt being logged.
type GeoResolver struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
	cacheTTL   time.Duration
	limiter    *rate.Limiter
}

func NewGeoResolver(baseURL string, timeout time.Duration, cache Cache, cacheTTL time.Duration, ratePerMin int) *GeoResolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	var limiter *rate.Limiter
	if ratePerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(ratePerMin)/60.0), ratePerMin)
	}
	return &GeoResolver{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		cacheTTL:   cacheTTL,
		limiter:    limiter,
	}
}

type geoAPIResponse struct {
	Status     string `json:"status"`
	Country    string `json:"country"`
	RegionName string `json:"regionName"`
	City       string `json:"city"`
}

// Resolve returns the coarse location for ip, or nil when the address is
// private, the provider is unreachable, or the quota is exhausted.
func (g *GeoResolver) Resolve(ctx context.Context, ip string) *Location {
	if g == nil || g.baseURL == "" || !isPublicIP(ip) {
		return nil
	}

	cacheKey := "geo:" + ip
	if g.cache != nil {
		if b, ok, _ := g.cache.Get(ctx, cacheKey); ok {
			var loc Location
			if err := json.Unmarshal(b, &loc); err == nil {
				return &loc
			}
		}
	}

	if g.limiter != nil && !g.limiter.Allow() {
		return nil
	}

	loc, err := g.lookup(ctx, ip)
	if err != nil {
		zap.L().Warn("geolocation lookup failed", zap.String("ip", ip), zap.Error(err))
		return nil
	}
	if loc == nil {
		return nil
	}

	if g.cache != nil {
		if b, err := json.Marshal(loc); err == nil {
			_ = g.cache.Set(ctx, cacheKey, b, g.cacheTTL)
		}
	}
	return loc
}

func (g *GeoResolver) lookup(ctx context.Context, ip string) (*Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+ip, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("geo provider status %d", resp.StatusCode)
	}
	var body geoAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Status != "success" {
		// Provider resolved the request but not the address.
		return nil, nil
	}
	return &Location{City: body.City, Region: body.RegionName, Country: body.Country}, nil
}

// isPublicIP filters loopback, private, and unparseable addresses before any
// external lookup is attempted.
func isPublicIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() || parsed.IsLinkLocalUnicast() {
		return false
	}
	return true
}
