package domain

import "time"

// ExecutionStatus tracks an execution's lifecycle inside the orchestrator.
type ExecutionStatus string

const (
	ExecPrepared  ExecutionStatus = "prepared"
	ExecExecuting ExecutionStatus = "executing"
	ExecCompleted ExecutionStatus = "completed"
	ExecTimedOut  ExecutionStatus = "timed_out"
)

// ExecutionResult is what the trade executor collaborator reports back.
type ExecutionResult struct {
	Success       bool
	Profit        float64
	GasCostActual float64
	Duration      time.Duration
}

// ExecutionRecord is owned by the orchestrator for the duration of one
// execution and removed once its feedback has been processed or it times out.
type ExecutionRecord struct {
	ID          string
	Decision    Decision
	Opportunity Opportunity
	StartedAt   time.Time
	Status      ExecutionStatus
	Result      *ExecutionResult
}

// FeedbackStatus classifies the outcome carried by a Feedback record.
type FeedbackStatus string

const (
	FeedbackSuccess FeedbackStatus = "success"
	FeedbackFailure FeedbackStatus = "failure"
	FeedbackPartial FeedbackStatus = "partial"
)

// Feedback closes the loop from execution back into scoring. It is produced
// by the execution stage or the timeout monitor and consumed exactly once by
// the learning stage.
type Feedback struct {
	ExecutionID    string
	Status         FeedbackStatus
	ExpectedProfit float64
	ActualProfit   float64
	// PerformanceDelta is (actual - expected) normalized by expected profit;
	// the learning stage only fires when its magnitude crosses the learning
	// threshold.
	PerformanceDelta float64
	Metrics          map[string]float64
	Lessons          []string
	CreatedAt        time.Time
}
