package executor

import (
	"sync"
	"time"
)

// routeKey identifies a trade route for deduplication.
func routeKey(token, buyNetwork, sellNetwork string) string {
	return token + "|" + buyNetwork + "|" + sellNetwork
}

// dedupGuard remembers recently submitted routes so the same route is not
// executed twice within the suppression window. Expired entries are swept
// lazily on each check.
type dedupGuard struct {
	window time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
	// now is swapped in tests.
	now func() time.Time
}

func newDedupGuard(window time.Duration) *dedupGuard {
	if window <= 0 {
		window = 60 * time.Second
	}
	return &dedupGuard{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// claim marks the route as submitted and reports whether it was free. A
// false return means the route was already claimed inside the window.
func (d *dedupGuard) claim(key string) bool {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	for k, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, k)
		}
	}

	if at, ok := d.seen[key]; ok && now.Sub(at) < d.window {
		return false
	}
	d.seen[key] = now
	return true
}

// release frees a claimed route early, used when submission fails before
// reaching the execution service.
func (d *dedupGuard) release(key string) {
	d.mu.Lock()
	delete(d.seen, key)
	d.mu.Unlock()
}
