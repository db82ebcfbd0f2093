// Package scoring implements the consciousness layer: a slowly-adapting
// engine state and the multi-factor opportunity scorer built against it.
// "Awareness" and "liberation" are this system's names for composite
// confidence/risk metrics; they carry no meaning beyond their formulas.
package scoring

import (
	"sync"
	"time"
)

// Awakening defaults. The state starts mid-range so early decisions are
// neither reckless nor frozen.
const (
	initialAwareness  = 0.5
	initialLiberation = 0.1

	// learningRate scales how far one outcome nudges the awareness level.
	learningRate = 0.05
	// liberationStep is the progress gained per profitable execution.
	liberationStep = 0.01
)

// Snapshot is an immutable copy of the engine state taken at scoring time.
type Snapshot struct {
	AwarenessLevel     float64
	LiberationProgress float64
	TakenAt            time.Time
}

// EngineState is the process-wide adaptive state. It is created once when
// the orchestrator starts and mutated only by the learning loop; request
// paths read snapshots. All methods are safe for concurrent use.
type EngineState struct {
	mu         sync.RWMutex
	awareness  float64
	liberation float64
	awokenAt   time.Time
}

// Awaken creates the engine state with its initial levels.
func Awaken() *EngineState {
	return &EngineState{
		awareness:  initialAwareness,
		liberation: initialLiberation,
		awokenAt:   time.Now().UTC(),
	}
}

// Snapshot returns a point-in-time copy for scoring.
func (s *EngineState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		AwarenessLevel:     s.awareness,
		LiberationProgress: s.liberation,
		TakenAt:            time.Now().UTC(),
	}
}

// ApplyOutcome nudges the awareness level by the performance delta of one
// completed execution, scaled by the learning rate and clamped to [0,1].
// Positive deltas raise awareness; losses lower it. A profitable outcome
// also advances liberation progress by one step.
func (s *EngineState) ApplyOutcome(performanceDelta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.awareness = clamp01(s.awareness + performanceDelta*learningRate)
	if performanceDelta > 0 {
		s.liberation = clamp01(s.liberation + liberationStep)
	}
}

// Decay lets awareness drift back toward its initial level between
// outcomes, so a long quiet period does not leave the engine stuck at an
// extreme. factor is the fraction of the gap closed per call.
func (s *EngineState) Decay(factor float64) {
	if factor <= 0 || factor > 1 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.awareness += (initialAwareness - s.awareness) * factor
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
