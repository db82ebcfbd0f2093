package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/chainarb/internal/ai"
	"github.com/alanyoungcy/chainarb/internal/cost"
	"github.com/alanyoungcy/chainarb/internal/domain"
	"github.com/alanyoungcy/chainarb/internal/executor"
	"github.com/alanyoungcy/chainarb/internal/feed"
	"github.com/alanyoungcy/chainarb/internal/market"
	"github.com/alanyoungcy/chainarb/internal/optimizer"
	"github.com/alanyoungcy/chainarb/internal/pipeline"
	"github.com/alanyoungcy/chainarb/internal/scoring"
	"github.com/alanyoungcy/chainarb/internal/server"
	"github.com/alanyoungcy/chainarb/internal/server/handler"
	"github.com/alanyoungcy/chainarb/internal/server/ws"
	"github.com/alanyoungcy/chainarb/internal/synth"
)

const (
	// archiveInterval is how often the archive loop sweeps old audit rows
	// to object storage.
	archiveInterval = time.Hour

	// archiveRetention is how long audit rows stay in Postgres before they
	// are archived and pruned.
	archiveRetention = 24 * time.Hour

	// statusInterval is the cadence of ch:status snapshots on the signal bus.
	statusInterval = 10 * time.Second
)

// marketStack bundles the pricing components shared by the engine and scan
// modes: price history, the HTTP feed, the cost model, gas pricing, and the
// route optimizer built on top of them.
type marketStack struct {
	history *market.HistoryStore
	source  *feed.HTTPFeed
	opt     *optimizer.PathOptimizer
	close   func()
}

// buildMarketStack constructs the pricing pipeline from configuration. The
// returned close function releases any live RPC connections.
func (a *App) buildMarketStack() *marketStack {
	history := market.NewHistoryStore(0)
	source := feed.NewHTTPFeed(a.cfg.Feed.Endpoints, a.cfg.Feed.APIKey, a.cfg.Feed.RequestTimeout.Duration)
	costModel := cost.NewModel(a.cfg.Ethereum.ETHPriceUSD / 1e9)

	var gasSource domain.GasPriceSource = cost.StaticGasSource{}
	closeGas := func() {}
	if len(a.cfg.Ethereum.RPCURLs) > 0 {
		oracle := cost.NewGasOracle(a.cfg.Ethereum.RPCURLs, a.logger)
		gasSource = oracle
		closeGas = oracle.Close
	}

	opt := optimizer.New(source, costModel, gasSource, history, optimizer.Config{
		Networks:           a.cfg.Optimizer.Networks,
		MinProfitThreshold: a.cfg.Optimizer.MinProfitThreshold,
		TopK:               a.cfg.Optimizer.TopK,
		RegimeWindow:       a.cfg.Optimizer.RegimeWindow,
	}, a.logger)

	return &marketStack{
		history: history,
		source:  source,
		opt:     opt,
		close:   closeGas,
	}
}

// buildConfidenceChain constructs the AI confidence provider chain from
// configuration. With no endpoint and rule fallback disabled the chain is
// empty and every evaluation yields zero confidence.
func (a *App) buildConfidenceChain() *ai.Chain {
	var providers []domain.ConfidenceProvider
	if a.cfg.AI.Endpoint != "" {
		providers = append(providers, ai.NewHTTPProvider("remote", a.cfg.AI.Endpoint, a.cfg.AI.APIKey))
	}
	if a.cfg.AI.RuleFallback {
		providers = append(providers, ai.NewRuleProvider())
	}
	return ai.NewChain(providers, a.cfg.AI.ProviderDeadline.Duration, a.logger)
}

// buildExecutor constructs the trade executor. Dry-run mode simulates fills
// locally; live mode requires the execution service endpoint and a
// decryptable credential.
func (a *App) buildExecutor() (domain.TradeExecutor, error) {
	if a.cfg.Executor.DryRun {
		return executor.NewDryRunExecutor(
			a.cfg.Executor.DryRunFillRate,
			a.cfg.Executor.DryRunGasVariance,
			a.logger,
		), nil
	}

	cred, err := executor.LoadCredential(a.cfg.Executor.EncryptedKeyPath, a.cfg.Executor.KeyPassword)
	if err != nil {
		return nil, fmt.Errorf("app: load executor credential: %w", err)
	}
	return executor.NewHTTPExecutor(
		a.cfg.Executor.Endpoint,
		cred,
		a.cfg.Executor.RequestTimeout.Duration,
		a.cfg.Executor.DedupWindow.Duration,
		a.logger,
	), nil
}

// EngineMode runs the full decision pipeline: price feeding, opportunity
// discovery, consciousness evaluation, execution, feedback, and learning,
// plus the HTTP API when enabled.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting engine mode",
		slog.Any("tokens", a.cfg.Engine.Tokens),
		slog.Bool("dry_run", a.cfg.Executor.DryRun),
	)

	g, ctx := errgroup.WithContext(ctx)

	stack := a.buildMarketStack()
	defer stack.close()

	// Price feeder: polls all (network, token) pairs into history and the
	// shared cache.
	feeder := feed.NewFeeder(feed.FeederConfig{
		Networks:     a.cfg.Optimizer.Networks,
		Tokens:       a.cfg.Engine.Tokens,
		PollInterval: a.cfg.Feed.PollInterval.Duration,
		RateLimit:    a.cfg.Feed.RateLimit,
		RateWindow:   a.cfg.Feed.RateWindow.Duration,
	}, stack.source, stack.history, deps.PriceCache, deps.RateLimiter, a.logger)

	// Optional streaming source on top of polling.
	if a.cfg.Feed.WsURL != "" {
		stream := feed.NewStreamClient(a.cfg.Feed.WsURL, a.logger)
		feeder.AttachStream(stream)
		if err := stream.Connect(ctx); err != nil {
			a.logger.WarnContext(ctx, "engine mode: price stream unavailable, polling only",
				slog.String("error", err.Error()),
			)
		} else {
			defer stream.Close()
			if err := stream.Subscribe(a.cfg.Engine.Tokens); err != nil {
				a.logger.WarnContext(ctx, "engine mode: stream subscribe failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}

	g.Go(func() error {
		return feeder.Run(ctx)
	})

	exec, err := a.buildExecutor()
	if err != nil {
		return fmt.Errorf("engine mode: %w", err)
	}

	orch := pipeline.NewOrchestrator(pipeline.Config{
		Tokens:                  a.cfg.Engine.Tokens,
		TradeSize:               a.cfg.Engine.TradeSize,
		AnalysisInterval:        a.cfg.Engine.AnalysisInterval.Duration,
		ExecutionTimeout:        a.cfg.Engine.ExecutionTimeout.Duration,
		TimeoutScanInterval:     a.cfg.Engine.TimeoutScanInterval.Duration,
		LearningInterval:        a.cfg.Engine.LearningInterval.Duration,
		LearningThreshold:       a.cfg.Engine.LearningThreshold,
		MaxConcurrentExecutions: a.cfg.Engine.MaxConcurrentExecutions,
		QueueSize:               a.cfg.Engine.QueueSize,
	}, pipeline.Deps{
		Optimizer:   stack.opt,
		Scorer:      scoring.NewScorer(),
		State:       scoring.Awaken(),
		Synthesizer: synth.New(synth.Thresholds{
			Consciousness:        a.cfg.Decision.Consciousness,
			AIConfidence:         a.cfg.Decision.AIConfidence,
			Synthesis:            a.cfg.Decision.Synthesis,
			MonitorConsciousness: a.cfg.Decision.MonitorConsciousness,
			MonitorAIConfidence:  a.cfg.Decision.MonitorAIConfidence,
		}),
		Confidence: a.buildConfidenceChain(),
		Executor:   exec,
		History:    stack.history,

		Bus:           deps.SignalBus,
		Locks:         deps.LockManager,
		DecisionStore: deps.DecisionStore,
		ExecStore:     deps.ExecStore,
		FeedbackStore: deps.FeedbackStore,
		Notifier:      deps.Notifier,
	}, a.logger)

	g.Go(func() error {
		return orch.Run(ctx)
	})

	// Archive loop: moves old audit rows to object storage and prunes them.
	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiveLoop(ctx, deps, orch)
		})
	}

	// Status broadcast: periodic engine snapshots on the signal bus for
	// WebSocket dashboards.
	if deps.SignalBus != nil {
		g.Go(func() error {
			return a.runStatusBroadcast(ctx, deps.SignalBus, orch)
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, orch, stack.opt, orch)
	}

	return g.Wait()
}

// ScanMode runs a single discovery pass over the configured tokens and
// prints the surfaced opportunities as JSON to stdout.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode",
		slog.Any("tokens", a.cfg.Engine.Tokens),
	)

	stack := a.buildMarketStack()
	defer stack.close()

	type scanResult struct {
		Token         string               `json:"token"`
		TradeSize     float64              `json:"trade_size"`
		Opportunities []domain.Opportunity `json:"opportunities"`
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	for _, token := range a.cfg.Engine.Tokens {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		opps := stack.opt.FindOpportunities(ctx, token, a.cfg.Engine.TradeSize)
		if opps == nil {
			opps = []domain.Opportunity{}
		}
		if err := enc.Encode(scanResult{
			Token:         token,
			TradeSize:     a.cfg.Engine.TradeSize,
			Opportunities: opps,
		}); err != nil {
			return fmt.Errorf("scan mode: encode result: %w", err)
		}
	}

	return nil
}

// ServeMode runs only the HTTP API: health, status, on-demand scans, stored
// decisions, and the WebSocket event stream. No engine runs in-process.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode",
		slog.Int("port", a.cfg.Server.Port),
	)

	g, ctx := errgroup.WithContext(ctx)

	stack := a.buildMarketStack()
	defer stack.close()

	a.startHTTPServer(ctx, g, deps, nil, stack.opt, nil)

	return g.Wait()
}

// startHTTPServer adds the HTTP server and, when the signal bus is wired,
// the WebSocket hub to the given errgroup. statusProvider and decisionSource
// are nil in serve mode, where no engine runs in-process.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	statusProvider handler.StatusProvider,
	scanner handler.OpportunityScanner,
	decisionSource handler.DecisionSource,
) {
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health:        handler.NewHealthHandler(a.logger),
		Status:        handler.NewStatusHandler(a.cfg.Mode, statusProvider),
		Opportunities: handler.NewOpportunityHandler(scanner, a.logger),
		Decisions:     handler.NewDecisionHandler(decisionSource, deps.DecisionStore, a.logger),
	}, hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// runArchiveLoop periodically archives audit rows older than the retention
// window to object storage, prunes the archived rows, and snapshots the
// pipeline status.
func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies, orch *pipeline.Orchestrator) error {
	ticker := time.NewTicker(archiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.archiveOnce(ctx, deps, orch)
		}
	}
}

// archiveOnce performs one archive sweep. Rows are deleted only after the
// corresponding archive object was written.
func (a *App) archiveOnce(ctx context.Context, deps *Dependencies, orch *pipeline.Orchestrator) {
	before := time.Now().UTC().Add(-archiveRetention)

	if n, err := deps.Archiver.ArchiveExecutions(ctx, before); err != nil {
		a.logger.WarnContext(ctx, "archive: executions failed", slog.String("error", err.Error()))
	} else if n > 0 {
		if _, err := deps.ExecRetention.DeleteBefore(ctx, before); err != nil {
			a.logger.WarnContext(ctx, "archive: prune executions failed", slog.String("error", err.Error()))
		} else {
			a.logger.InfoContext(ctx, "archive: executions archived", slog.Int64("count", n))
		}
	}

	if n, err := deps.Archiver.ArchiveFeedback(ctx, before); err != nil {
		a.logger.WarnContext(ctx, "archive: feedback failed", slog.String("error", err.Error()))
	} else if n > 0 {
		if _, err := deps.FeedbackRetention.DeleteBefore(ctx, before); err != nil {
			a.logger.WarnContext(ctx, "archive: prune feedback failed", slog.String("error", err.Error()))
		} else {
			a.logger.InfoContext(ctx, "archive: feedback archived", slog.Int64("count", n))
		}
	}

	if err := deps.Archiver.SnapshotStatus(ctx, orch.Status(), time.Now().UTC()); err != nil {
		a.logger.WarnContext(ctx, "archive: status snapshot failed", slog.String("error", err.Error()))
	}
}

// runStatusBroadcast publishes the engine status snapshot on ch:status every
// statusInterval so connected dashboards track queue depth and learning state
// without polling the API.
func (a *App) runStatusBroadcast(ctx context.Context, bus domain.SignalBus, orch *pipeline.Orchestrator) error {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			data, err := json.Marshal(orch.Status())
			if err != nil {
				continue
			}
			if err := bus.Publish(ctx, "ch:status", data); err != nil {
				a.logger.DebugContext(ctx, "status broadcast failed", slog.String("error", err.Error()))
			}
		}
	}
}
