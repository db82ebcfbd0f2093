package ai

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// RuleProvider is the terminal fallback in the confidence chain: a
// deterministic heuristic over the opportunity's own numbers. It never
// fails, so a chain ending in a RuleProvider always produces a real (if
// conservative) assessment.
type RuleProvider struct{}

// NewRuleProvider creates the rule-based provider.
func NewRuleProvider() *RuleProvider {
	return &RuleProvider{}
}

// Name returns the provider identifier.
func (p *RuleProvider) Name() string {
	return "rule_based"
}

// Evaluate scores the opportunity from its net margin and liquidity
// confidence. The weights keep the output conservative: a thin-margin or
// thin-liquidity route cannot clear the execute gate on this provider alone.
func (p *RuleProvider) Evaluate(_ context.Context, opp domain.Opportunity) (domain.AIAssessment, error) {
	margin := opp.NetMargin()

	confidence := 0.3 + margin*6 + opp.LiquidityConfidence*0.25
	if confidence > 0.9 {
		// The heuristic never claims near-certainty.
		confidence = 0.9
	}
	if confidence < 0 {
		confidence = 0
	}

	return domain.AIAssessment{
		Confidence: confidence,
		Reasoning:  fmt.Sprintf("rule based: margin=%.4f liquidity=%.2f", margin, opp.LiquidityConfidence),
	}, nil
}
