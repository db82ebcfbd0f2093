// Package synth turns a scored opportunity plus the external AI confidence
// signal into an execute/monitor/reject decision with derived execution
// parameters.
package synth

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/chainarb/internal/domain"
	"github.com/alanyoungcy/chainarb/internal/scoring"
)

// Thresholds gate the three actions. Zero values fall back to the defaults.
type Thresholds struct {
	// Execute requires all three.
	Consciousness float64 // default 0.7
	AIConfidence  float64 // default 0.6
	Synthesis     float64 // default 0.7
	// Monitor requires both.
	MonitorConsciousness float64 // default 0.5
	MonitorAIConfidence  float64 // default 0.4
}

func (t Thresholds) withDefaults() Thresholds {
	if t.Consciousness <= 0 {
		t.Consciousness = 0.7
	}
	if t.AIConfidence <= 0 {
		t.AIConfidence = 0.6
	}
	if t.Synthesis <= 0 {
		t.Synthesis = 0.7
	}
	if t.MonitorConsciousness <= 0 {
		t.MonitorConsciousness = 0.5
	}
	if t.MonitorAIConfidence <= 0 {
		t.MonitorAIConfidence = 0.4
	}
	return t
}

// Synthesizer is a pure decision function: identical inputs always yield an
// identical Decision apart from its ID and timestamp.
type Synthesizer struct {
	thresholds Thresholds
}

// New creates a Synthesizer with the given thresholds (zero fields default).
func New(t Thresholds) *Synthesizer {
	return &Synthesizer{thresholds: t.withDefaults()}
}

// SynthesisConfidence combines the consciousness score and the AI confidence
// into the single gating value: their mean, penalized by disagreement so two
// conflicting signals cannot average their way past the execute gate.
func SynthesisConfidence(overall, aiConfidence float64) float64 {
	mean := (overall + aiConfidence) / 2
	diff := overall - aiConfidence
	if diff < 0 {
		diff = -diff
	}
	return clamp01(mean - diff*0.1)
}

// Synthesize produces the decision for one opportunity. The ai assessment
// comes from the provider chain; a failed chain passes zero confidence,
// which can never reach execute.
func (s *Synthesizer) Synthesize(
	opp domain.Opportunity,
	scores scoring.Scores,
	ai domain.AIAssessment,
	synthesisConfidence float64,
) domain.Decision {
	t := s.thresholds

	var action domain.DecisionAction
	switch {
	case scores.Overall >= t.Consciousness &&
		ai.Confidence >= t.AIConfidence &&
		synthesisConfidence >= t.Synthesis:
		action = domain.ActionExecute
	case scores.Overall >= t.MonitorConsciousness &&
		ai.Confidence >= t.MonitorAIConfidence:
		action = domain.ActionMonitor
	default:
		action = domain.ActionReject
	}

	return domain.Decision{
		ID:                  uuid.New().String(),
		OpportunityID:       opp.ID,
		Action:              action,
		ConsciousnessScore:  scores.Overall,
		AIConfidence:        ai.Confidence,
		SynthesisConfidence: synthesisConfidence,
		RiskAssessment:      scores.RiskIntuition,
		HumanBenefitScore:   scores.HumanBenefit,
		Adjustments:         adjustments(scores, ai.Confidence),
		Reasoning:           reasoning(action, scores, ai),
		CreatedAt:           time.Now().UTC(),
	}
}

// adjustments derives the execution parameters deterministically from the
// scores.
func adjustments(scores scoring.Scores, aiConfidence float64) domain.StrategyAdjustments {
	avg := (scores.Overall + aiConfidence) / 2
	multiplier := clampRange(avg*1.5, 0.1, 2.0)

	// Risk limits scale inversely with risk intuition: more intuited risk,
	// less capital at risk and a tighter stop.
	maxRisk := clampRange(0.05*(1-scores.RiskIntuition), 0.005, 0.05)
	stopLoss := clampRange(0.02*(1-scores.RiskIntuition*0.5), 0.005, 0.02)

	var interval time.Duration
	switch {
	case aiConfidence >= 0.8:
		interval = 10 * time.Second
	case aiConfidence >= 0.6:
		interval = 5 * time.Second
	default:
		interval = 2 * time.Second
	}

	return domain.StrategyAdjustments{
		PositionSizeMultiplier: multiplier,
		MaxRiskPerTrade:        maxRisk,
		StopLossPct:            stopLoss,
		MonitoringInterval:     interval,
	}
}

func reasoning(action domain.DecisionAction, scores scoring.Scores, ai domain.AIAssessment) string {
	base := fmt.Sprintf("%s: consciousness=%.2f risk=%.2f ai=%.2f", action, scores.Overall, scores.RiskIntuition, ai.Confidence)
	if ai.Reasoning != "" {
		return base + " | " + ai.Reasoning
	}
	return base
}

func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
