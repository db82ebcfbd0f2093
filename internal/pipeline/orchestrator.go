package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/chainarb/internal/ai"
	"github.com/alanyoungcy/chainarb/internal/domain"
	"github.com/alanyoungcy/chainarb/internal/market"
	"github.com/alanyoungcy/chainarb/internal/notify"
	"github.com/alanyoungcy/chainarb/internal/optimizer"
	"github.com/alanyoungcy/chainarb/internal/scoring"
	"github.com/alanyoungcy/chainarb/internal/synth"
)

// Config holds the orchestrator's tunable parameters. Zero fields fall back
// to the documented defaults.
type Config struct {
	Tokens    []string
	TradeSize float64

	AnalysisInterval        time.Duration // default 30s, self-tuned 10s-120s
	ExecutionTimeout        time.Duration // default 300s
	TimeoutScanInterval     time.Duration // default 30s
	LearningInterval        time.Duration // default 300s
	LearningThreshold       float64       // default 0.1
	MaxConcurrentExecutions int           // default 5
	QueueSize               int           // default 256
	DequeueTimeout          time.Duration // default 1s
}

func (c Config) withDefaults() Config {
	if c.TradeSize <= 0 {
		c.TradeSize = 1
	}
	if c.AnalysisInterval <= 0 {
		c.AnalysisInterval = 30 * time.Second
	}
	if c.ExecutionTimeout <= 0 {
		c.ExecutionTimeout = 300 * time.Second
	}
	if c.TimeoutScanInterval <= 0 {
		c.TimeoutScanInterval = 30 * time.Second
	}
	if c.LearningInterval <= 0 {
		c.LearningInterval = 300 * time.Second
	}
	if c.LearningThreshold <= 0 {
		c.LearningThreshold = 0.1
	}
	if c.MaxConcurrentExecutions <= 0 {
		c.MaxConcurrentExecutions = 5
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.DequeueTimeout <= 0 {
		c.DequeueTimeout = time.Second
	}
	return c
}

// Deps bundles the collaborators the orchestrator drives. Bus, stores,
// lock manager and notifier are optional; a nil value degrades that concern
// to log-only.
type Deps struct {
	Optimizer   *optimizer.PathOptimizer
	Scorer      *scoring.Scorer
	State       *scoring.EngineState
	Synthesizer *synth.Synthesizer
	Confidence  *ai.Chain
	Executor    domain.TradeExecutor
	History     *market.HistoryStore

	Bus           domain.SignalBus
	Locks         domain.LockManager
	DecisionStore domain.DecisionStore
	ExecStore     domain.ExecutionStore
	FeedbackStore domain.FeedbackStore
	Notifier      *notify.Notifier
}

// Orchestrator is the pipeline's top-level state machine. It owns the
// message queue, the active-execution map, and the background loops; stage
// handlers live in stages.go.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	queue  *Queue
	logger *slog.Logger

	// active holds in-flight execution records, keyed by execution ID.
	// Exclusive access through activeMu.
	active   map[string]*domain.ExecutionRecord
	activeMu sync.Mutex

	// execSlots bounds concurrent EXECUTION handlers; execWG tracks them
	// for shutdown draining.
	execSlots chan struct{}
	execWG    sync.WaitGroup

	metricsMu sync.Mutex
	metrics   domain.PipelineMetrics

	// recentDeltas accumulates feedback performance deltas between learning
	// loop passes.
	deltasMu     sync.Mutex
	recentDeltas []float64

	tuneMu           sync.Mutex
	analysisInterval time.Duration
	// baseThreshold is the optimizer's configured profit threshold at start;
	// retuning keeps the live value within 0.5x-2x of it.
	baseThreshold float64

	recentMu        sync.Mutex
	recentDecisions []domain.Decision

	runningMu sync.Mutex
	running   bool
}

// recentDecisionLimit bounds the in-memory decision ring exposed to the API.
const recentDecisionLimit = 100

// NewOrchestrator creates an Orchestrator. Run must be called to start it.
func NewOrchestrator(cfg Config, deps Deps, logger *slog.Logger) *Orchestrator {
	cfg = cfg.withDefaults()
	o := &Orchestrator{
		cfg:              cfg,
		deps:             deps,
		queue:            NewQueue(cfg.QueueSize),
		logger:           logger.With(slog.String("component", "orchestrator")),
		active:           make(map[string]*domain.ExecutionRecord),
		execSlots:        make(chan struct{}, cfg.MaxConcurrentExecutions),
		analysisInterval: cfg.AnalysisInterval,
	}
	if deps.Optimizer != nil {
		o.baseThreshold = deps.Optimizer.MinProfitThreshold()
	}
	return o
}

// Run starts the producer, consumer, timeout monitor, and learning loops and
// blocks until the context is cancelled. On shutdown, in-flight executions
// are drained and anything still unfinished is marked timed out; nothing is
// silently dropped.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.setRunning(true)
	defer o.setRunning(false)

	o.logger.Info("pipeline orchestrator starting",
		slog.Any("tokens", o.cfg.Tokens),
		slog.Duration("analysis_interval", o.cfg.AnalysisInterval),
		slog.Int("max_concurrent_executions", o.cfg.MaxConcurrentExecutions),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.producerLoop(gctx)
		if gctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("producer loop: %w", err)
	})

	g.Go(func() error {
		err := o.consumeLoop(gctx)
		if gctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("consume loop: %w", err)
	})

	g.Go(func() error {
		err := o.timeoutLoop(gctx)
		if gctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("timeout monitor: %w", err)
	})

	g.Go(func() error {
		err := o.learningLoop(gctx)
		if gctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("learning loop: %w", err)
	})

	err := g.Wait()

	// Let in-flight executions finish, then time out the rest.
	o.execWG.Wait()
	o.expireRemaining()

	if err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}

// producerLoop emits AGENT_ANALYSIS messages on the self-tuned interval,
// starting with an immediate tick.
func (o *Orchestrator) producerLoop(ctx context.Context) error {
	o.enqueueAnalysis()

	for {
		timer := time.NewTimer(o.AnalysisInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			o.enqueueAnalysis()
		}
	}
}

func (o *Orchestrator) enqueueAnalysis() {
	o.enqueue(domain.PipelineMessage{
		Stage:    domain.StageAgentAnalysis,
		Priority: 5,
		Source:   "producer",
		Analysis: &domain.AnalysisRequest{
			Tokens:    o.cfg.Tokens,
			TradeSize: o.cfg.TradeSize,
		},
	})
}

// consumeLoop is the single queue consumer. It dispatches every message to
// its stage handler; EXECUTION handlers fan out to the bounded worker pool,
// all other stages run inline.
func (o *Orchestrator) consumeLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg, ok := o.queue.Dequeue(ctx, o.cfg.DequeueTimeout)
		if !ok {
			continue
		}

		if msg.Stage == domain.StageExecution {
			select {
			case o.execSlots <- struct{}{}:
			case <-ctx.Done():
				// Shutdown while waiting for a slot: requeue semantics are
				// unnecessary, the record times out via expireRemaining.
				return ctx.Err()
			}
			o.execWG.Add(1)
			go func(m domain.PipelineMessage) {
				defer o.execWG.Done()
				defer func() { <-o.execSlots }()
				o.dispatch(ctx, m)
			}(msg)
			continue
		}

		o.dispatch(ctx, msg)
	}
}

// dispatch routes a message to its handler. Handler errors and panics are
// contained here: they are logged and the loop moves on, equivalent to a
// supervisor restarting only the failed message.
func (o *Orchestrator) dispatch(ctx context.Context, msg domain.PipelineMessage) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("stage handler panicked",
				slog.String("stage", string(msg.Stage)),
				slog.String("message_id", msg.ID),
				slog.Any("panic", r),
			)
		}
	}()

	var err error
	switch msg.Stage {
	case domain.StageAgentAnalysis:
		err = o.handleAnalysis(ctx, msg)
	case domain.StageOpportunityDiscovery:
		err = o.handleDiscovery(ctx, msg)
	case domain.StageConsciousnessEvaluation:
		err = o.handleEvaluation(ctx, msg)
	case domain.StageBotPreparation:
		err = o.handlePreparation(ctx, msg)
	case domain.StageExecution:
		err = o.handleExecution(ctx, msg)
	case domain.StageFeedback:
		err = o.handleFeedback(ctx, msg)
	case domain.StageLearning:
		err = o.handleLearning(ctx, msg)
	default:
		err = fmt.Errorf("unknown stage %q", msg.Stage)
	}

	if err != nil {
		o.logger.Error("stage handler failed",
			slog.String("stage", string(msg.Stage)),
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
	}
}

// timeoutLoop force-completes executions that have exceeded the execution
// timeout, injecting synthetic feedback directly into the FEEDBACK stage.
func (o *Orchestrator) timeoutLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.TimeoutScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.expireExecutions(time.Now())
		}
	}
}

// expireExecutions scans the active map and times out anything older than
// the execution timeout.
func (o *Orchestrator) expireExecutions(now time.Time) {
	var expired []*domain.ExecutionRecord

	o.activeMu.Lock()
	for _, rec := range o.active {
		if rec.Status == domain.ExecCompleted || rec.Status == domain.ExecTimedOut {
			continue
		}
		if now.Sub(rec.StartedAt) >= o.cfg.ExecutionTimeout {
			rec.Status = domain.ExecTimedOut
			expired = append(expired, rec)
		}
	}
	o.activeMu.Unlock()

	for _, rec := range expired {
		o.logger.Warn("execution timed out",
			slog.String("execution_id", rec.ID),
			slog.String("token", rec.Opportunity.Token),
		)
		o.addMetrics(func(m *domain.PipelineMetrics) { m.ExecutionsTimedOut++ })

		fb := domain.Feedback{
			ExecutionID:      rec.ID,
			Status:           domain.FeedbackFailure,
			ExpectedProfit:   rec.Opportunity.NetProfit,
			ActualProfit:     0,
			PerformanceDelta: -1,
			Lessons:          []string{"execution exceeded timeout; treat route as stale"},
			CreatedAt:        time.Now().UTC(),
		}
		o.enqueue(domain.PipelineMessage{
			Stage:    domain.StageFeedback,
			Priority: 8,
			Source:   "timeout_monitor",
			Feedback: &fb,
		})
	}
}

// expireRemaining marks every still-active record timed out during shutdown.
func (o *Orchestrator) expireRemaining() {
	o.activeMu.Lock()
	defer o.activeMu.Unlock()
	for id, rec := range o.active {
		if rec.Status != domain.ExecCompleted {
			rec.Status = domain.ExecTimedOut
			o.logger.Warn("marking execution timed out on shutdown", slog.String("execution_id", id))
		}
		delete(o.active, id)
	}
}

// learningLoop periodically folds accumulated feedback deltas into the
// engine state and retunes the analysis cadence and profit threshold. When
// a lock manager is configured only one engine instance adapts at a time.
func (o *Orchestrator) learningLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.LearningInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.learn(ctx)
		}
	}
}

func (o *Orchestrator) learn(ctx context.Context) {
	if o.deps.Locks != nil {
		unlock, err := o.deps.Locks.Acquire(ctx, "learning", o.cfg.LearningInterval/2)
		if err != nil {
			o.logger.Debug("learning pass skipped, lock held elsewhere", slog.String("error", err.Error()))
			return
		}
		defer unlock()
	}

	o.deltasMu.Lock()
	deltas := o.recentDeltas
	o.recentDeltas = nil
	o.deltasMu.Unlock()

	if len(deltas) == 0 {
		// Quiet period: drift awareness back toward neutral.
		o.deps.State.Decay(0.05)
		return
	}

	var sum float64
	for _, d := range deltas {
		sum += d
	}
	mean := sum / float64(len(deltas))

	o.deps.State.ApplyOutcome(mean)
	o.retune(mean)

	snap := o.deps.State.Snapshot()
	o.logger.Info("learning pass applied",
		slog.Int("samples", len(deltas)),
		slog.Float64("mean_delta", mean),
		slog.Float64("awareness", snap.AwarenessLevel),
		slog.Duration("analysis_interval", o.AnalysisInterval()),
	)
}

// retune adjusts the analysis interval and the optimizer's profit threshold
// in the direction suggested by recent performance: good outcomes scan more
// often with a looser filter, bad outcomes back off.
func (o *Orchestrator) retune(meanDelta float64) {
	o.tuneMu.Lock()
	switch {
	case meanDelta > 0:
		o.analysisInterval = clampDuration(time.Duration(float64(o.analysisInterval)*0.9), 10*time.Second, 120*time.Second)
	case meanDelta < 0:
		o.analysisInterval = clampDuration(time.Duration(float64(o.analysisInterval)*1.2), 10*time.Second, 120*time.Second)
	}
	o.tuneMu.Unlock()

	if o.deps.Optimizer != nil {
		next := o.deps.Optimizer.MinProfitThreshold()
		if meanDelta > 0 {
			next *= 0.95
		} else if meanDelta < 0 {
			next *= 1.1
		}
		if next < o.baseThreshold*0.5 {
			next = o.baseThreshold * 0.5
		}
		if next > o.baseThreshold*2 {
			next = o.baseThreshold * 2
		}
		o.deps.Optimizer.SetMinProfitThreshold(next)
	}
}

// AnalysisInterval returns the current (self-tuned) producer interval.
func (o *Orchestrator) AnalysisInterval() time.Duration {
	o.tuneMu.Lock()
	defer o.tuneMu.Unlock()
	return o.analysisInterval
}

// Status returns a read-only snapshot for the API layer.
func (o *Orchestrator) Status() domain.PipelineStatus {
	o.activeMu.Lock()
	activeCount := len(o.active)
	o.activeMu.Unlock()

	o.metricsMu.Lock()
	metrics := o.metrics
	o.metricsMu.Unlock()

	snap := o.deps.State.Snapshot()

	var threshold float64
	if o.deps.Optimizer != nil {
		threshold = o.deps.Optimizer.MinProfitThreshold()
	}

	return domain.PipelineStatus{
		Running:            o.isRunning(),
		QueueDepth:         o.queue.Depth(),
		ActiveExecutions:   activeCount,
		AwarenessLevel:     snap.AwarenessLevel,
		LiberationProgress: snap.LiberationProgress,
		AnalysisInterval:   o.AnalysisInterval(),
		MinProfitThreshold: threshold,
		Metrics:            metrics,
	}
}

// RecentDecisions returns up to limit most recent decisions, newest first.
func (o *Orchestrator) RecentDecisions(limit int) []domain.Decision {
	if limit <= 0 {
		limit = 20
	}
	o.recentMu.Lock()
	defer o.recentMu.Unlock()

	n := len(o.recentDecisions)
	if limit > n {
		limit = n
	}
	out := make([]domain.Decision, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, o.recentDecisions[i])
	}
	return out
}

func (o *Orchestrator) rememberDecision(d domain.Decision) {
	o.recentMu.Lock()
	defer o.recentMu.Unlock()
	o.recentDecisions = append(o.recentDecisions, d)
	if overflow := len(o.recentDecisions) - recentDecisionLimit; overflow > 0 {
		o.recentDecisions = append([]domain.Decision(nil), o.recentDecisions[overflow:]...)
	}
}

// enqueue stamps the message and routes it to the queue, logging drops.
func (o *Orchestrator) enqueue(msg domain.PipelineMessage) {
	if msg.ID == "" {
		msg.ID = newMessageID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if msg.Priority <= 0 {
		msg.Priority = 5
	}

	if !o.queue.Enqueue(msg) {
		o.logger.Warn("queue full, message dropped",
			slog.String("stage", string(msg.Stage)),
			slog.String("source", msg.Source),
		)
	}
}

// publish sends a JSON event to the signal bus, when one is configured.
func (o *Orchestrator) publish(ctx context.Context, channel string, v any) {
	if o.deps.Bus == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := o.deps.Bus.Publish(ctx, channel, data); err != nil {
		o.logger.Debug("bus publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) addMetrics(fn func(*domain.PipelineMetrics)) {
	o.metricsMu.Lock()
	fn(&o.metrics)
	o.metricsMu.Unlock()
}

func (o *Orchestrator) recordDelta(delta float64) {
	o.deltasMu.Lock()
	o.recentDeltas = append(o.recentDeltas, delta)
	o.deltasMu.Unlock()
}

func (o *Orchestrator) setRunning(v bool) {
	o.runningMu.Lock()
	o.running = v
	o.runningMu.Unlock()
}

func (o *Orchestrator) isRunning() bool {
	o.runningMu.Lock()
	defer o.runningMu.Unlock()
	return o.running
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
