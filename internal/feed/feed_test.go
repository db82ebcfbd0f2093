package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainarb/internal/domain"
	"github.com/alanyoungcy/chainarb/internal/market"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPFeed_GetPrice(t *testing.T) {
	var gotAuth, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotToken = r.URL.Query().Get("token")
		fmt.Fprint(w, `{"price": 3050.25}`)
	}))
	defer srv.Close()

	f := NewHTTPFeed(map[string]string{"ethereum": srv.URL + "/"}, "key-1", time.Second)

	price, err := f.GetPrice(context.Background(), "ethereum", "ETH")
	require.NoError(t, err)
	assert.Equal(t, 3050.25, price)
	assert.Equal(t, "Bearer key-1", gotAuth)
	assert.Equal(t, "ETH", gotToken)
}

func TestHTTPFeed_UnknownNetwork(t *testing.T) {
	f := NewHTTPFeed(map[string]string{}, "", time.Second)

	_, err := f.GetPrice(context.Background(), "ethereum", "ETH")
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
}

func TestHTTPFeed_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewHTTPFeed(map[string]string{"base": srv.URL}, "", time.Second)

	_, err := f.GetPrice(context.Background(), "base", "ETH")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPFeed_NonPositivePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"price": 0}`)
	}))
	defer srv.Close()

	f := NewHTTPFeed(map[string]string{"base": srv.URL}, "", time.Second)

	_, err := f.GetPrice(context.Background(), "base", "ETH")
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
}

func TestHTTPFeed_Networks(t *testing.T) {
	f := NewHTTPFeed(map[string]string{"a": "http://a", "b": "http://b"}, "", time.Second)
	assert.ElementsMatch(t, []string{"a", "b"}, f.Networks())
}

type seededFeed struct {
	prices map[string]float64
}

func (s *seededFeed) GetPrice(_ context.Context, network, _ string) (float64, error) {
	p, ok := s.prices[network]
	if !ok {
		return 0, domain.ErrPriceUnavailable
	}
	return p, nil
}

type memoryCache struct {
	mu     sync.Mutex
	writes map[string]float64
}

func (c *memoryCache) SetPrice(_ context.Context, network, token string, price float64, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writes == nil {
		c.writes = make(map[string]float64)
	}
	c.writes[network+"/"+token] = price
	return nil
}

func (c *memoryCache) GetPrice(_ context.Context, network, token string) (float64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.writes[network+"/"+token]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p, time.Now(), nil
}

type denyLimiter struct {
	denied []string
}

func (l *denyLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.denied = append(l.denied, key)
	return false, nil
}

func TestFeeder_SweepRecordsPairs(t *testing.T) {
	history := market.NewHistoryStore(10)
	cache := &memoryCache{}

	f := NewFeeder(FeederConfig{
		Networks: []string{"ethereum", "arbitrum", "unlisted"},
		Tokens:   []string{"ETH"},
	}, &seededFeed{prices: map[string]float64{
		"ethereum": 3100,
		"arbitrum": 3000,
	}}, history, cache, nil, discardLogger())

	f.sweep(context.Background())

	require.Len(t, history.Series("ethereum", "ETH", 0), 1)
	require.Len(t, history.Series("arbitrum", "ETH", 0), 1)
	assert.Empty(t, history.Series("unlisted", "ETH", 0), "failed fetches are skipped")

	assert.Equal(t, 3100.0, cache.writes["ethereum/ETH"])
	assert.Equal(t, 3000.0, cache.writes["arbitrum/ETH"])
}

func TestFeeder_RateLimiterSkipsNetwork(t *testing.T) {
	history := market.NewHistoryStore(10)
	limiter := &denyLimiter{}

	f := NewFeeder(FeederConfig{
		Networks: []string{"ethereum"},
		Tokens:   []string{"ETH"},
	}, &seededFeed{prices: map[string]float64{"ethereum": 3100}}, history, nil, limiter, discardLogger())

	f.sweep(context.Background())

	assert.Empty(t, history.Series("ethereum", "ETH", 0))
	assert.Equal(t, []string{"feed:ethereum"}, limiter.denied)
}

func TestFeeder_RunStopsOnCancel(t *testing.T) {
	history := market.NewHistoryStore(10)
	f := NewFeeder(FeederConfig{
		Networks:     []string{"ethereum"},
		Tokens:       []string{"ETH"},
		PollInterval: 10 * time.Millisecond,
	}, &seededFeed{prices: map[string]float64{"ethereum": 3100}}, history, nil, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("feeder did not stop after cancel")
	}

	assert.GreaterOrEqual(t, history.Len("ethereum", "ETH"), 2, "initial sweep plus at least one tick")
}
