// Package market provides the in-memory price history store and the pure
// numeric market model built on top of it: indicators, volatility measures,
// and regime classification.
package market

import (
	"sync"
	"time"
)

// PricePoint records a single observed price for a (network, token) pair.
type PricePoint struct {
	Network   string
	Token     string
	Price     float64
	Timestamp time.Time
}

// DefaultCapacity is the per-series ring buffer capacity used when the
// configured capacity is zero or negative.
const DefaultCapacity = 500

// HistoryStore keeps a bounded, append-only ring buffer of price points per
// (network, token) pair. It tolerates concurrent writers from the feed loop
// and concurrent readers from the analysis loop; reads return copies.
type HistoryStore struct {
	capacity int
	series   map[string]*ring
	mu       sync.RWMutex
}

type ring struct {
	points []PricePoint // fixed-size backing array once full
	head   int          // index of the oldest point when full
	full   bool
}

// NewHistoryStore creates a HistoryStore whose per-pair series hold at most
// capacity points; the oldest point is evicted on overflow.
func NewHistoryStore(capacity int) *HistoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &HistoryStore{
		capacity: capacity,
		series:   make(map[string]*ring),
	}
}

func seriesKey(network, token string) string {
	return network + ":" + token
}

// Record appends a price observation. It never fails; overflow silently
// evicts the oldest point.
func (h *HistoryStore) Record(network, token string, price float64, ts time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := seriesKey(network, token)
	r, ok := h.series[key]
	if !ok {
		r = &ring{points: make([]PricePoint, 0, h.capacity)}
		h.series[key] = r
	}

	p := PricePoint{Network: network, Token: token, Price: price, Timestamp: ts}
	if !r.full {
		r.points = append(r.points, p)
		if len(r.points) == h.capacity {
			r.full = true
		}
		return
	}
	r.points[r.head] = p
	r.head = (r.head + 1) % h.capacity
}

// Series returns up to the last window points for the pair in chronological
// order. Short series are returned as-is; callers decide whether they are
// long enough. The returned slice is a copy and safe to mutate.
func (h *HistoryStore) Series(network, token string, window int) []PricePoint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.series[seriesKey(network, token)]
	if !ok || len(r.points) == 0 {
		return nil
	}

	n := len(r.points)
	ordered := make([]PricePoint, 0, n)
	if r.full {
		ordered = append(ordered, r.points[r.head:]...)
		ordered = append(ordered, r.points[:r.head]...)
	} else {
		ordered = append(ordered, r.points...)
	}

	if window > 0 && window < len(ordered) {
		ordered = ordered[len(ordered)-window:]
	}
	return ordered
}

// Len reports the number of stored points for the pair.
func (h *HistoryStore) Len(network, token string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.series[seriesKey(network, token)]
	if !ok {
		return 0
	}
	return len(r.points)
}

// Networks returns every network that has recorded history for the token.
func (h *HistoryStore) Networks(token string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []string
	suffix := ":" + token
	for key, r := range h.series {
		if len(r.points) == 0 {
			continue
		}
		if len(key) > len(suffix) && key[len(key)-len(suffix):] == suffix {
			out = append(out, key[:len(key)-len(suffix)])
		}
	}
	return out
}
