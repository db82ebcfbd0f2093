package domain

import "time"

// Stage is one node in the pipeline's fixed state machine.
type Stage string

const (
	StageAgentAnalysis           Stage = "AGENT_ANALYSIS"
	StageOpportunityDiscovery    Stage = "OPPORTUNITY_DISCOVERY"
	StageConsciousnessEvaluation Stage = "CONSCIOUSNESS_EVALUATION"
	StageBotPreparation          Stage = "BOT_PREPARATION"
	StageExecution               Stage = "EXECUTION"
	StageFeedback                Stage = "FEEDBACK"
	StageLearning                Stage = "LEARNING"
)

// AnalysisRequest asks the analysis stage to survey the configured tokens.
type AnalysisRequest struct {
	Tokens    []string
	TradeSize float64
}

// DiscoveryRequest asks the discovery stage to scan one token's
// cross-network routes.
type DiscoveryRequest struct {
	Token     string
	TradeSize float64
}

// EvaluationRequest carries one surfaced opportunity into consciousness
// evaluation.
type EvaluationRequest struct {
	Opportunity Opportunity
}

// PreparationRequest carries an execute decision into bot preparation.
type PreparationRequest struct {
	Opportunity Opportunity
	Decision    Decision
}

// ExecutionRequest references a prepared execution record by ID; the record
// itself stays in the orchestrator's active-executions map.
type ExecutionRequest struct {
	ExecutionID string
}

// LearningSignal is emitted by the feedback stage when the performance delta
// is large enough to warrant adaptation.
type LearningSignal struct {
	ExecutionID      string
	PerformanceDelta float64
	Lessons          []string
}

// PipelineMessage is the tagged union flowing through the pipeline queue.
// Exactly one payload pointer is non-nil and it matches Stage, so each stage
// handler receives a statically typed payload. Priority (1-10) is advisory
// metadata used for fast-lane scheduling; within a lane messages are FIFO.
type PipelineMessage struct {
	ID        string
	Stage     Stage
	Priority  int
	Source    string
	Timestamp time.Time

	Analysis    *AnalysisRequest
	Discovery   *DiscoveryRequest
	Evaluation  *EvaluationRequest
	Preparation *PreparationRequest
	Execution   *ExecutionRequest
	Feedback    *Feedback
	Learning    *LearningSignal
}
