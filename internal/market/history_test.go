package market

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordN(h *HistoryStore, network, token string, n int, start float64) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		h.Record(network, token, start+float64(i), base.Add(time.Duration(i)*time.Second))
	}
}

func TestHistoryStore_RecordAndSeries(t *testing.T) {
	h := NewHistoryStore(10)
	recordN(h, "ethereum", "ETH", 5, 3000)

	got := h.Series("ethereum", "ETH", 0)
	require.Len(t, got, 5)
	assert.Equal(t, 3000.0, got[0].Price)
	assert.Equal(t, 3004.0, got[4].Price)
	assert.Equal(t, "ethereum", got[0].Network)
	assert.Equal(t, "ETH", got[0].Token)
}

func TestHistoryStore_RingEviction(t *testing.T) {
	h := NewHistoryStore(5)
	recordN(h, "arbitrum", "ETH", 8, 100)

	got := h.Series("arbitrum", "ETH", 0)
	require.Len(t, got, 5)
	// Oldest three evicted; order stays chronological across the wrap.
	assert.Equal(t, 103.0, got[0].Price)
	assert.Equal(t, 107.0, got[4].Price)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].Timestamp.After(got[i-1].Timestamp))
	}
}

func TestHistoryStore_SeriesWindow(t *testing.T) {
	h := NewHistoryStore(50)
	recordN(h, "base", "USDC", 20, 1)

	got := h.Series("base", "USDC", 4)
	require.Len(t, got, 4)
	assert.Equal(t, 17.0, got[0].Price)
	assert.Equal(t, 20.0, got[3].Price)

	// Window larger than the series returns everything.
	assert.Len(t, h.Series("base", "USDC", 100), 20)
}

func TestHistoryStore_SeriesCopyIsSafe(t *testing.T) {
	h := NewHistoryStore(10)
	recordN(h, "ethereum", "ETH", 3, 10)

	got := h.Series("ethereum", "ETH", 0)
	got[0].Price = -1

	again := h.Series("ethereum", "ETH", 0)
	assert.Equal(t, 10.0, again[0].Price)
}

func TestHistoryStore_UnknownPair(t *testing.T) {
	h := NewHistoryStore(10)
	assert.Nil(t, h.Series("ethereum", "NOPE", 0))
	assert.Equal(t, 0, h.Len("ethereum", "NOPE"))
}

func TestHistoryStore_Networks(t *testing.T) {
	h := NewHistoryStore(10)
	h.Record("ethereum", "ETH", 3000, time.Now())
	h.Record("arbitrum", "ETH", 2999, time.Now())
	h.Record("ethereum", "USDC", 1, time.Now())

	nets := h.Networks("ETH")
	assert.ElementsMatch(t, []string{"ethereum", "arbitrum"}, nets)
	assert.ElementsMatch(t, []string{"ethereum"}, h.Networks("USDC"))
	assert.Empty(t, h.Networks("BTC"))
}

func TestHistoryStore_ConcurrentAccess(t *testing.T) {
	h := NewHistoryStore(100)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				h.Record("ethereum", "ETH", float64(i), time.Now())
				_ = h.Series("ethereum", "ETH", 10)
				_ = h.Len("ethereum", "ETH")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, h.Len("ethereum", "ETH"))
}
