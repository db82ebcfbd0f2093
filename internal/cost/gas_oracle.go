package cost

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// staleAfter is how long a cached gas price is trusted before the oracle
// re-queries the RPC endpoint.
const staleAfter = 30 * time.Second

// rpcTimeout bounds each SuggestGasPrice call so a slow endpoint cannot
// stall a pipeline scan.
const rpcTimeout = 5 * time.Second

// fallbackGwei is used per network when no RPC endpoint is configured or
// the endpoint is unreachable and no cached value exists.
var fallbackGwei = map[string]float64{
	"ethereum": 25,
	"arbitrum": 0.1,
	"optimism": 0.05,
	"base":     0.05,
	"polygon":  60,
}

const defaultFallbackGwei = 20

// GasOracle reports live gas prices per network via JSON-RPC, caching the
// last known value and degrading to static fallbacks when an endpoint is
// missing or failing. It implements domain.GasPriceSource.
type GasOracle struct {
	endpoints map[string]string
	clients   map[string]*ethclient.Client
	cached    map[string]cachedPrice
	mu        sync.Mutex
	logger    *slog.Logger
}

type cachedPrice struct {
	gwei float64
	at   time.Time
}

// NewGasOracle creates an oracle for the given network -> RPC URL map.
// Networks without an endpoint always use the static fallback.
func NewGasOracle(endpoints map[string]string, logger *slog.Logger) *GasOracle {
	return &GasOracle{
		endpoints: endpoints,
		clients:   make(map[string]*ethclient.Client),
		cached:    make(map[string]cachedPrice),
		logger:    logger.With(slog.String("component", "gas_oracle")),
	}
}

// GasPriceGwei returns the current gas price for the network in gwei. It
// never returns an error for a known network: RPC failures degrade to the
// cached value and then to the static fallback.
func (o *GasOracle) GasPriceGwei(ctx context.Context, network string) (float64, error) {
	o.mu.Lock()
	if c, ok := o.cached[network]; ok && time.Since(c.at) < staleAfter {
		o.mu.Unlock()
		return c.gwei, nil
	}
	o.mu.Unlock()

	if gwei, ok := o.fetch(ctx, network); ok {
		o.mu.Lock()
		o.cached[network] = cachedPrice{gwei: gwei, at: time.Now()}
		o.mu.Unlock()
		return gwei, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.cached[network]; ok {
		return c.gwei, nil
	}
	if g, ok := fallbackGwei[network]; ok {
		return g, nil
	}
	return defaultFallbackGwei, nil
}

// fetch queries the network's RPC endpoint, lazily dialing the client on
// first use. It returns false when no endpoint is configured or the call
// fails.
func (o *GasOracle) fetch(ctx context.Context, network string) (float64, bool) {
	url, ok := o.endpoints[network]
	if !ok || url == "" {
		return 0, false
	}

	o.mu.Lock()
	client, ok := o.clients[network]
	o.mu.Unlock()
	if !ok {
		var err error
		client, err = ethclient.Dial(url)
		if err != nil {
			o.logger.Warn("gas oracle: dial failed",
				slog.String("network", network),
				slog.String("error", err.Error()),
			)
			return 0, false
		}
		o.mu.Lock()
		o.clients[network] = client
		o.mu.Unlock()
	}

	callCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	wei, err := client.SuggestGasPrice(callCtx)
	if err != nil {
		o.logger.Warn("gas oracle: suggest gas price failed",
			slog.String("network", network),
			slog.String("error", err.Error()),
		)
		return 0, false
	}

	gwei := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e9))
	v, _ := gwei.Float64()
	if v <= 0 {
		return 0, false
	}
	return v, true
}

// Close releases all dialed RPC clients.
func (o *GasOracle) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, c := range o.clients {
		c.Close()
	}
	o.clients = make(map[string]*ethclient.Client)
}

// StaticGasSource is a fixed-price domain.GasPriceSource used in scan mode
// and tests.
type StaticGasSource map[string]float64

// GasPriceGwei returns the configured price, or the package fallback when
// the network is absent.
func (s StaticGasSource) GasPriceGwei(_ context.Context, network string) (float64, error) {
	if g, ok := s[network]; ok {
		return g, nil
	}
	if g, ok := fallbackGwei[network]; ok {
		return g, nil
	}
	return defaultFallbackGwei, nil
}
