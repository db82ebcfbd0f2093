package domain

import (
	"context"
	"io"
	"time"
)

// PriceFeed supplies the latest observed price for a token on a network. It
// may legitimately fail for individual networks; callers skip the pair
// rather than failing the whole scan.
type PriceFeed interface {
	GetPrice(ctx context.Context, network, token string) (float64, error)
}

// ConfidenceProvider produces an opaque AI confidence assessment for an
// opportunity. Providers are tried in order with a per-provider deadline;
// the first success wins and an exhausted chain yields the safe default of
// zero confidence.
type ConfidenceProvider interface {
	Name() string
	Evaluate(ctx context.Context, opp Opportunity) (AIAssessment, error)
}

// TradeExecutor performs the actual cross-network trade. Failures are
// reported as failure feedback and never retried inside the core; retry
// policy belongs to the executor implementation.
type TradeExecutor interface {
	Execute(ctx context.Context, opp Opportunity, adj StrategyAdjustments) (ExecutionResult, error)
}

// GasPriceSource reports the current gas price for a network in gwei.
type GasPriceSource interface {
	GasPriceGwei(ctx context.Context, network string) (float64, error)
}

// PriceCache stores the latest observed price per (network, token) in a
// shared cache so other processes can read it.
type PriceCache interface {
	SetPrice(ctx context.Context, network, token string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, network, token string) (float64, time.Time, error)
}

// SignalBus is an at-most-once pub/sub fabric for engine events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager provides distributed mutual exclusion, used so only one engine
// instance runs the learning loop at a time.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter bounds the rate of feed polling per upstream source.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// DecisionStore is the append-only audit sink for decisions. The pipeline
// never reads decisions back; losing the store degrades to log-only audit.
type DecisionStore interface {
	Insert(ctx context.Context, d Decision) error
	ListRecent(ctx context.Context, limit int) ([]Decision, error)
}

// ExecutionStore is the append-only audit sink for execution records.
type ExecutionStore interface {
	Insert(ctx context.Context, rec ExecutionRecord) error
	ListBefore(ctx context.Context, before time.Time) ([]ExecutionRecord, error)
}

// FeedbackStore is the append-only audit sink for feedback records.
type FeedbackStore interface {
	Insert(ctx context.Context, fb Feedback) error
	ListBefore(ctx context.Context, before time.Time) ([]Feedback, error)
}

// BlobWriter uploads a single object to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// PipelineStatus is the read-only snapshot exposed to the thin request layer.
type PipelineStatus struct {
	Running            bool
	QueueDepth         int
	ActiveExecutions   int
	AwarenessLevel     float64
	LiberationProgress float64
	AnalysisInterval   time.Duration
	MinProfitThreshold float64
	Metrics            PipelineMetrics
}

// PipelineMetrics are cumulative counters maintained by the orchestrator.
type PipelineMetrics struct {
	OpportunitiesFound  int64
	DecisionsExecute    int64
	DecisionsMonitor    int64
	DecisionsReject     int64
	ExecutionsSucceeded int64
	ExecutionsFailed    int64
	ExecutionsTimedOut  int64
	CumulativeProfit    float64
}
