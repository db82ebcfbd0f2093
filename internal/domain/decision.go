package domain

import "time"

// DecisionAction is the outcome of decision synthesis for one opportunity.
type DecisionAction string

const (
	ActionExecute DecisionAction = "execute"
	ActionMonitor DecisionAction = "monitor"
	ActionReject  DecisionAction = "reject"
)

// StrategyAdjustments are the execution parameters derived deterministically
// from the decision scores.
type StrategyAdjustments struct {
	// PositionSizeMultiplier scales the opportunity's trade size, in [0.1, 2.0].
	PositionSizeMultiplier float64
	// MaxRiskPerTrade is the fraction of capital allowed at risk, inverse to
	// the risk intuition score.
	MaxRiskPerTrade float64
	// StopLossPct is the stop-loss distance as a fraction of entry price.
	StopLossPct float64
	// MonitoringInterval is how often a monitored opportunity is re-checked.
	MonitoringInterval time.Duration
}

// Decision is the immutable output of the decision synthesizer: one
// opportunity combined with a consciousness-state snapshot and the external
// AI confidence signal. Re-running synthesis with identical inputs yields an
// identical Decision apart from ID and timestamp.
type Decision struct {
	ID            string
	OpportunityID string
	Action        DecisionAction

	ConsciousnessScore  float64
	AIConfidence        float64
	SynthesisConfidence float64
	RiskAssessment      float64
	HumanBenefitScore   float64

	Adjustments StrategyAdjustments
	Reasoning   string
	CreatedAt   time.Time
}

// AIAssessment is the opaque collaborator output used as a scoring input.
type AIAssessment struct {
	Confidence float64 // [0,1]
	Reasoning  string
	Provider   string
}
