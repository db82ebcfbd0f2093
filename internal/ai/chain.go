// Package ai supplies opportunity confidence assessments from an ordered
// chain of providers. Providers are opaque collaborators; the engine only
// consumes the bounded confidence value.
package ai

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// defaultProviderDeadline bounds each provider attempt so one slow backend
// cannot stall the evaluation stage.
const defaultProviderDeadline = 10 * time.Second

// Chain tries each provider in order and returns the first successful
// assessment. An exhausted chain yields zero confidence, the safe default
// that can never synthesize into an execute decision.
type Chain struct {
	providers []domain.ConfidenceProvider
	deadline  time.Duration
	logger    *slog.Logger
}

// NewChain creates a Chain over the given providers with a per-provider
// deadline (zero means the default).
func NewChain(providers []domain.ConfidenceProvider, deadline time.Duration, logger *slog.Logger) *Chain {
	if deadline <= 0 {
		deadline = defaultProviderDeadline
	}
	return &Chain{
		providers: providers,
		deadline:  deadline,
		logger:    logger.With(slog.String("component", "confidence_chain")),
	}
}

// Evaluate returns the first provider's successful assessment, clamping the
// confidence into [0,1]. Failures are logged and the next provider is tried;
// the returned assessment's Reasoning records a fully failed chain.
func (c *Chain) Evaluate(ctx context.Context, opp domain.Opportunity) domain.AIAssessment {
	for _, p := range c.providers {
		attemptCtx, cancel := context.WithTimeout(ctx, c.deadline)
		assessment, err := p.Evaluate(attemptCtx, opp)
		cancel()

		if err != nil {
			c.logger.Warn("confidence provider failed, trying next",
				slog.String("provider", p.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}

		assessment.Provider = p.Name()
		assessment.Confidence = clamp01(assessment.Confidence)
		return assessment
	}

	return domain.AIAssessment{
		Confidence: 0,
		Reasoning:  "all confidence providers unavailable",
		Provider:   "none",
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
