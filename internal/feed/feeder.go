package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/chainarb/internal/domain"
	"github.com/alanyoungcy/chainarb/internal/market"
)

// FeederConfig holds polling parameters for the Feeder.
type FeederConfig struct {
	Networks     []string
	Tokens       []string
	PollInterval time.Duration
	RateLimit    int
	RateWindow   time.Duration
}

func (c FeederConfig) withDefaults() FeederConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 30
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Minute
	}
	return c
}

// Feeder polls the HTTP price feed for every (network, token) pair and
// records observations into the history store and the shared price cache.
// A streaming client can be attached as a second, push-based source; its
// ticks land in the same sinks.
type Feeder struct {
	cfg     FeederConfig
	source  domain.PriceFeed
	history *market.HistoryStore
	cache   domain.PriceCache
	limiter domain.RateLimiter
	logger  *slog.Logger
}

// NewFeeder creates a Feeder. cache and limiter are optional; a nil cache
// skips the shared-cache write, a nil limiter polls without rate limiting.
func NewFeeder(
	cfg FeederConfig,
	source domain.PriceFeed,
	history *market.HistoryStore,
	cache domain.PriceCache,
	limiter domain.RateLimiter,
	logger *slog.Logger,
) *Feeder {
	return &Feeder{
		cfg:     cfg.withDefaults(),
		source:  source,
		history: history,
		cache:   cache,
		limiter: limiter,
		logger:  logger.With(slog.String("component", "feeder")),
	}
}

// AttachStream registers the feeder's sinks on a stream client, so pushed
// ticks are recorded the same way polled prices are.
func (f *Feeder) AttachStream(s *StreamClient) {
	s.OnTick(func(tick PriceTick) {
		ts := time.Unix(0, tick.Timestamp)
		if tick.Timestamp == 0 {
			ts = time.Now().UTC()
		}
		f.record(context.Background(), tick.Network, tick.Token, tick.Price, ts)
	})
}

// Run polls all pairs on the configured interval until the context is
// cancelled. The first sweep runs immediately.
func (f *Feeder) Run(ctx context.Context) error {
	f.logger.Info("feeder starting",
		slog.Any("networks", f.cfg.Networks),
		slog.Any("tokens", f.cfg.Tokens),
		slog.Duration("poll_interval", f.cfg.PollInterval),
	)

	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	f.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.sweep(ctx)
		}
	}
}

// sweep polls every configured pair once. Individual pair failures are
// logged and skipped so one flaky upstream cannot stall the rest.
func (f *Feeder) sweep(ctx context.Context) {
	now := time.Now().UTC()

	for _, network := range f.cfg.Networks {
		if !f.allow(ctx, network) {
			continue
		}
		for _, token := range f.cfg.Tokens {
			price, err := f.source.GetPrice(ctx, network, token)
			if err != nil {
				f.logger.Debug("price fetch skipped",
					slog.String("network", network),
					slog.String("token", token),
					slog.String("error", err.Error()),
				)
				continue
			}
			f.record(ctx, network, token, price, now)
		}
	}
}

func (f *Feeder) allow(ctx context.Context, network string) bool {
	if f.limiter == nil {
		return true
	}
	allowed, err := f.limiter.Allow(ctx, "feed:"+network, f.cfg.RateLimit, f.cfg.RateWindow)
	if err != nil {
		// Rate limiter trouble should not stop price collection.
		f.logger.Warn("rate limiter unavailable", slog.String("error", err.Error()))
		return true
	}
	if !allowed {
		f.logger.Debug("poll skipped, rate limited", slog.String("network", network))
	}
	return allowed
}

func (f *Feeder) record(ctx context.Context, network, token string, price float64, ts time.Time) {
	f.history.Record(network, token, price, ts)

	if f.cache == nil {
		return
	}
	if err := f.cache.SetPrice(ctx, network, token, price, ts); err != nil {
		f.logger.Debug("cache write failed",
			slog.String("network", network),
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
	}
}
