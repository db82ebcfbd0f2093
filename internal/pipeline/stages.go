package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/chainarb/internal/domain"
	"github.com/alanyoungcy/chainarb/internal/market"
	"github.com/alanyoungcy/chainarb/internal/synth"
)

// Bus channels for downstream consumers (WebSocket hub, other processes).
const (
	chanOpportunity = "ch:opportunity"
	chanDecision    = "ch:decision"
	chanFeedback    = "ch:feedback"
)

func newMessageID() string {
	return uuid.New().String()
}

// handleAnalysis fans out one discovery request per configured token.
// Regime classification happens downstream in the optimizer, which stamps
// each opportunity's execution timing from the route's price history.
func (o *Orchestrator) handleAnalysis(ctx context.Context, msg domain.PipelineMessage) error {
	req := msg.Analysis
	if req == nil {
		return fmt.Errorf("analysis: missing payload")
	}

	for _, token := range req.Tokens {
		o.logger.Debug("token queued for discovery", slog.String("token", token))

		o.enqueue(domain.PipelineMessage{
			Stage:    domain.StageOpportunityDiscovery,
			Priority: 5,
			Source:   string(domain.StageAgentAnalysis),
			Discovery: &domain.DiscoveryRequest{
				Token:     token,
				TradeSize: req.TradeSize,
			},
		})
	}
	return nil
}

// handleDiscovery scans the token's cross-network routes and enqueues one
// evaluation per surfaced opportunity. Immediate-timing opportunities take
// the fast lane.
func (o *Orchestrator) handleDiscovery(ctx context.Context, msg domain.PipelineMessage) error {
	req := msg.Discovery
	if req == nil {
		return fmt.Errorf("discovery: missing payload")
	}

	opps := o.deps.Optimizer.FindOpportunities(ctx, req.Token, req.TradeSize)
	if len(opps) == 0 {
		return nil
	}

	o.addMetrics(func(m *domain.PipelineMetrics) { m.OpportunitiesFound += int64(len(opps)) })
	o.logger.Info("opportunities discovered",
		slog.String("token", req.Token),
		slog.Int("count", len(opps)),
	)

	for _, opp := range opps {
		o.publish(ctx, chanOpportunity, opp)

		priority := 5
		if opp.Timing == domain.TimingImmediate {
			priority = 8
		}
		o.enqueue(domain.PipelineMessage{
			Stage:      domain.StageConsciousnessEvaluation,
			Priority:   priority,
			Source:     string(domain.StageOpportunityDiscovery),
			Evaluation: &domain.EvaluationRequest{Opportunity: opp},
		})
	}
	return nil
}

// handleEvaluation scores the opportunity against the engine state, obtains
// the external confidence signal, and synthesizes the decision. Execute
// decisions continue to preparation; monitor decisions schedule a fresh
// discovery scan after the monitoring interval; reject decisions end the
// flow silently.
func (o *Orchestrator) handleEvaluation(ctx context.Context, msg domain.PipelineMessage) error {
	req := msg.Evaluation
	if req == nil {
		return fmt.Errorf("evaluation: missing payload")
	}
	opp := req.Opportunity

	snap := o.deps.State.Snapshot()
	volatility := o.volatilityFor(opp.Token, opp.BuyNetwork)
	scores := o.deps.Scorer.Score(opp, snap, volatility)

	assessment := o.deps.Confidence.Evaluate(ctx, opp)
	synthesis := synth.SynthesisConfidence(scores.Overall, assessment.Confidence)

	decision := o.deps.Synthesizer.Synthesize(opp, scores, assessment, synthesis)

	o.rememberDecision(decision)
	o.publish(ctx, chanDecision, decision)
	o.auditDecision(ctx, decision)

	o.addMetrics(func(m *domain.PipelineMetrics) {
		switch decision.Action {
		case domain.ActionExecute:
			m.DecisionsExecute++
		case domain.ActionMonitor:
			m.DecisionsMonitor++
		default:
			m.DecisionsReject++
		}
	})

	o.logger.Info("decision synthesized",
		slog.String("opportunity_id", opp.ID),
		slog.String("action", string(decision.Action)),
		slog.Float64("consciousness", decision.ConsciousnessScore),
		slog.Float64("ai_confidence", decision.AIConfidence),
	)

	switch decision.Action {
	case domain.ActionExecute:
		o.enqueue(domain.PipelineMessage{
			Stage:    domain.StageBotPreparation,
			Priority: msg.Priority,
			Source:   string(domain.StageConsciousnessEvaluation),
			Preparation: &domain.PreparationRequest{
				Opportunity: opp,
				Decision:    decision,
			},
		})
	case domain.ActionMonitor:
		o.scheduleRescan(opp.Token, opp.TradeSize, decision.Adjustments.MonitoringInterval)
	}
	return nil
}

// scheduleRescan enqueues a fresh discovery for the token after the
// monitoring interval, so the re-check sees current prices rather than the
// frozen opportunity. A timer firing after shutdown hits enqueue on a
// closed-down queue, which drops the message.
func (o *Orchestrator) scheduleRescan(token string, tradeSize float64, after time.Duration) {
	time.AfterFunc(after, func() {
		o.enqueue(domain.PipelineMessage{
			Stage:    domain.StageOpportunityDiscovery,
			Priority: 6,
			Source:   "monitor_rescan",
			Discovery: &domain.DiscoveryRequest{
				Token:     token,
				TradeSize: tradeSize,
			},
		})
	})
}

// handlePreparation creates the execution record, registers it as active,
// and hands the flow to the execution stage on the fast lane.
func (o *Orchestrator) handlePreparation(ctx context.Context, msg domain.PipelineMessage) error {
	req := msg.Preparation
	if req == nil {
		return fmt.Errorf("preparation: missing payload")
	}

	rec := &domain.ExecutionRecord{
		ID:          uuid.New().String(),
		Decision:    req.Decision,
		Opportunity: req.Opportunity,
		StartedAt:   time.Now().UTC(),
		Status:      domain.ExecPrepared,
	}

	o.activeMu.Lock()
	o.active[rec.ID] = rec
	o.activeMu.Unlock()

	o.logger.Info("execution prepared",
		slog.String("execution_id", rec.ID),
		slog.String("token", rec.Opportunity.Token),
		slog.Float64("size_multiplier", rec.Decision.Adjustments.PositionSizeMultiplier),
	)

	o.enqueue(domain.PipelineMessage{
		Stage:     domain.StageExecution,
		Priority:  9,
		Source:    string(domain.StageBotPreparation),
		Execution: &domain.ExecutionRequest{ExecutionID: rec.ID},
	})
	return nil
}

// handleExecution runs the trade through the executor collaborator. It runs
// inside the bounded worker pool; the execution context survives pipeline
// shutdown so an in-flight trade is never abandoned mid-call.
func (o *Orchestrator) handleExecution(ctx context.Context, msg domain.PipelineMessage) error {
	req := msg.Execution
	if req == nil {
		return fmt.Errorf("execution: missing payload")
	}

	o.activeMu.Lock()
	rec, ok := o.active[req.ExecutionID]
	timedOut := ok && rec.Status == domain.ExecTimedOut
	if ok && rec.Status == domain.ExecPrepared {
		rec.Status = domain.ExecExecuting
	}
	o.activeMu.Unlock()

	if !ok || timedOut {
		// Already timed out; the monitor produced the feedback.
		return nil
	}

	execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.ExecutionTimeout)
	defer cancel()

	started := time.Now()
	result, err := o.deps.Executor.Execute(execCtx, rec.Opportunity, rec.Decision.Adjustments)
	if err != nil {
		result = domain.ExecutionResult{Success: false, Duration: time.Since(started)}
	}

	// Settle the record status before emitting anything. A record expired by
	// the timeout monitor already has its synthetic feedback and timeout
	// metric; it must not produce a second feedback here.
	o.activeMu.Lock()
	if rec.Status == domain.ExecTimedOut {
		recCopy := *rec
		o.activeMu.Unlock()
		o.logger.Warn("execution finished after timeout, result discarded",
			slog.String("execution_id", rec.ID),
			slog.Bool("success", result.Success),
		)
		o.auditExecution(ctx, recCopy)
		return nil
	}
	rec.Status = domain.ExecCompleted
	rec.Result = &result
	recCopy := *rec
	o.activeMu.Unlock()

	fb := domain.Feedback{
		ExecutionID:    rec.ID,
		ExpectedProfit: rec.Opportunity.NetProfit,
		CreatedAt:      time.Now().UTC(),
		Metrics: map[string]float64{
			"duration_ms": float64(time.Since(started).Milliseconds()),
		},
	}

	if err != nil {
		fb.Status = domain.FeedbackFailure
		fb.PerformanceDelta = -1
		fb.Lessons = append(fb.Lessons, fmt.Sprintf("executor failed: %v", err))
		o.addMetrics(func(m *domain.PipelineMetrics) { m.ExecutionsFailed++ })
		o.logger.Error("trade execution failed",
			slog.String("execution_id", rec.ID),
			slog.String("error", err.Error()),
		)
	} else {
		fb.ActualProfit = result.Profit
		fb.PerformanceDelta = performanceDelta(rec.Opportunity.NetProfit, result.Profit)
		fb.Metrics["gas_cost_actual"] = result.GasCostActual

		switch {
		case result.Success && result.Profit >= rec.Opportunity.NetProfit*0.5:
			fb.Status = domain.FeedbackSuccess
		case result.Success:
			fb.Status = domain.FeedbackPartial
			fb.Lessons = append(fb.Lessons, "realized profit well below estimate; revisit cost model inputs")
		default:
			fb.Status = domain.FeedbackFailure
			fb.Lessons = append(fb.Lessons, "executor reported unsuccessful fill")
		}

		o.addMetrics(func(m *domain.PipelineMetrics) {
			if result.Success {
				m.ExecutionsSucceeded++
			} else {
				m.ExecutionsFailed++
			}
			m.CumulativeProfit += result.Profit
		})
	}

	o.auditExecution(ctx, recCopy)
	o.notifyExecution(ctx, recCopy, fb)

	o.enqueue(domain.PipelineMessage{
		Stage:    domain.StageFeedback,
		Priority: 7,
		Source:   string(domain.StageExecution),
		Feedback: &fb,
	})
	return nil
}

// handleFeedback closes out the execution record and decides whether the
// outcome is significant enough to trigger a learning pass.
func (o *Orchestrator) handleFeedback(ctx context.Context, msg domain.PipelineMessage) error {
	fb := msg.Feedback
	if fb == nil {
		return fmt.Errorf("feedback: missing payload")
	}

	o.activeMu.Lock()
	delete(o.active, fb.ExecutionID)
	o.activeMu.Unlock()

	o.recordDelta(fb.PerformanceDelta)
	o.publish(ctx, chanFeedback, fb)
	o.auditFeedback(ctx, *fb)

	o.logger.Info("feedback processed",
		slog.String("execution_id", fb.ExecutionID),
		slog.String("status", string(fb.Status)),
		slog.Float64("performance_delta", fb.PerformanceDelta),
	)

	if abs(fb.PerformanceDelta) < o.cfg.LearningThreshold {
		return nil // flow ends here
	}

	o.enqueue(domain.PipelineMessage{
		Stage:    domain.StageLearning,
		Priority: 6,
		Source:   string(domain.StageFeedback),
		Learning: &domain.LearningSignal{
			ExecutionID:      fb.ExecutionID,
			PerformanceDelta: fb.PerformanceDelta,
			Lessons:          fb.Lessons,
		},
	})
	return nil
}

// handleLearning applies one outcome to the engine state immediately; the
// periodic learning loop handles the slower aggregate retuning.
func (o *Orchestrator) handleLearning(_ context.Context, msg domain.PipelineMessage) error {
	sig := msg.Learning
	if sig == nil {
		return fmt.Errorf("learning: missing payload")
	}

	o.deps.State.ApplyOutcome(sig.PerformanceDelta)

	snap := o.deps.State.Snapshot()
	o.logger.Info("outcome learned",
		slog.String("execution_id", sig.ExecutionID),
		slog.Float64("performance_delta", sig.PerformanceDelta),
		slog.Float64("awareness", snap.AwarenessLevel),
	)
	return nil
}

// volatilityFor is the scorer's marketVolatility input; 0 for short history
// is the neutral fallback.
func (o *Orchestrator) volatilityFor(token, network string) float64 {
	if o.deps.History == nil {
		return 0
	}
	return market.SeriesVolatility(o.deps.History.Series(network, token, 0))
}

// auditDecision writes the decision to the audit store, best effort.
func (o *Orchestrator) auditDecision(ctx context.Context, d domain.Decision) {
	if o.deps.DecisionStore == nil {
		return
	}
	if err := o.deps.DecisionStore.Insert(ctx, d); err != nil {
		o.logger.Warn("decision audit write failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) auditExecution(ctx context.Context, rec domain.ExecutionRecord) {
	if o.deps.ExecStore == nil {
		return
	}
	if err := o.deps.ExecStore.Insert(ctx, rec); err != nil {
		o.logger.Warn("execution audit write failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) auditFeedback(ctx context.Context, fb domain.Feedback) {
	if o.deps.FeedbackStore == nil {
		return
	}
	if err := o.deps.FeedbackStore.Insert(ctx, fb); err != nil {
		o.logger.Warn("feedback audit write failed", slog.String("error", err.Error()))
	}
}

// notifyExecution alerts operators about completed executions.
func (o *Orchestrator) notifyExecution(ctx context.Context, rec domain.ExecutionRecord, fb domain.Feedback) {
	if o.deps.Notifier == nil {
		return
	}
	title := fmt.Sprintf("Execution %s: %s", fb.Status, rec.Opportunity.Token)
	body := fmt.Sprintf("%s -> %s | expected %.2f actual %.2f",
		rec.Opportunity.BuyNetwork, rec.Opportunity.SellNetwork,
		fb.ExpectedProfit, fb.ActualProfit,
	)
	if err := o.deps.Notifier.Notify(ctx, "execution", title, body); err != nil {
		o.logger.Debug("notification failed", slog.String("error", err.Error()))
	}
}

// performanceDelta normalizes the gap between expected and actual profit.
// A zero expectation falls back to the sign of the actual outcome.
func performanceDelta(expected, actual float64) float64 {
	if expected == 0 {
		switch {
		case actual > 0:
			return 1
		case actual < 0:
			return -1
		default:
			return 0
		}
	}
	delta := (actual - expected) / abs(expected)
	if delta > 1 {
		return 1
	}
	if delta < -1 {
		return -1
	}
	return delta
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
