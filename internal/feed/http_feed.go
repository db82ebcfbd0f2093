// Package feed collects market prices from upstream HTTP and WebSocket
// sources and fans them into the in-memory history store and the shared
// price cache.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// HTTPFeed implements domain.PriceFeed against per-network price APIs. Each
// network maps to a base URL; the price for a token is fetched from
// {base}/price?token={token} and decoded from a {"price": ...} response.
type HTTPFeed struct {
	endpoints map[string]string
	apiKey    string
	client    *http.Client
}

// NewHTTPFeed creates an HTTPFeed. endpoints maps network name to a base
// URL; networks without an entry report domain.ErrPriceUnavailable.
func NewHTTPFeed(endpoints map[string]string, apiKey string, timeout time.Duration) *HTTPFeed {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	eps := make(map[string]string, len(endpoints))
	for network, base := range endpoints {
		eps[network] = strings.TrimRight(base, "/")
	}
	return &HTTPFeed{
		endpoints: eps,
		apiKey:    strings.TrimSpace(apiKey),
		client:    &http.Client{Timeout: timeout},
	}
}

// GetPrice fetches the latest price for a token on a network. Unknown
// networks and upstream failures surface as wrapped errors so the caller can
// skip the pair.
func (f *HTTPFeed) GetPrice(ctx context.Context, network, token string) (float64, error) {
	base, ok := f.endpoints[network]
	if !ok {
		return 0, fmt.Errorf("feed: network %s: %w", network, domain.ErrPriceUnavailable)
	}

	reqURL := fmt.Sprintf("%s/price?token=%s", base, url.QueryEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("feed: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("feed: fetch %s/%s: %w", network, token, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("feed: %s/%s: unexpected status %d: %s", network, token, resp.StatusCode, string(respBody))
	}

	var out struct {
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("feed: decode %s/%s: %w", network, token, err)
	}
	if out.Price <= 0 {
		return 0, fmt.Errorf("feed: %s/%s: %w", network, token, domain.ErrPriceUnavailable)
	}

	return out.Price, nil
}

// Networks returns the configured network names.
func (f *HTTPFeed) Networks() []string {
	out := make([]string, 0, len(f.endpoints))
	for network := range f.endpoints {
		out = append(out, network)
	}
	return out
}

// Compile-time interface check.
var _ domain.PriceFeed = (*HTTPFeed)(nil)
