package scoring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAwaken_InitialLevels(t *testing.T) {
	s := Awaken()
	snap := s.Snapshot()

	assert.Equal(t, 0.5, snap.AwarenessLevel)
	assert.Equal(t, 0.1, snap.LiberationProgress)
	assert.False(t, snap.TakenAt.IsZero())
}

func TestApplyOutcome(t *testing.T) {
	s := Awaken()

	// A full positive delta nudges awareness up by the learning rate and
	// advances liberation.
	s.ApplyOutcome(1.0)
	snap := s.Snapshot()
	assert.InDelta(t, 0.55, snap.AwarenessLevel, 1e-9)
	assert.InDelta(t, 0.11, snap.LiberationProgress, 1e-9)

	// A loss lowers awareness and leaves liberation alone.
	s.ApplyOutcome(-1.0)
	snap = s.Snapshot()
	assert.InDelta(t, 0.50, snap.AwarenessLevel, 1e-9)
	assert.InDelta(t, 0.11, snap.LiberationProgress, 1e-9)

	// Zero delta changes nothing.
	s.ApplyOutcome(0)
	assert.InDelta(t, 0.11, s.Snapshot().LiberationProgress, 1e-9)
}

func TestApplyOutcome_Clamped(t *testing.T) {
	s := Awaken()

	for i := 0; i < 100; i++ {
		s.ApplyOutcome(1.0)
	}
	snap := s.Snapshot()
	assert.Equal(t, 1.0, snap.AwarenessLevel)
	assert.LessOrEqual(t, snap.LiberationProgress, 1.0)

	for i := 0; i < 100; i++ {
		s.ApplyOutcome(-1.0)
	}
	assert.Equal(t, 0.0, s.Snapshot().AwarenessLevel)
}

func TestDecay_DriftsTowardInitial(t *testing.T) {
	s := Awaken()

	s.ApplyOutcome(1.0) // 0.55
	s.Decay(0.5)
	assert.InDelta(t, 0.525, s.Snapshot().AwarenessLevel, 1e-9)

	// Full decay returns exactly to the initial level.
	s.Decay(1.0)
	assert.InDelta(t, 0.5, s.Snapshot().AwarenessLevel, 1e-9)

	// Out-of-range factors are ignored.
	s.ApplyOutcome(1.0)
	before := s.Snapshot().AwarenessLevel
	s.Decay(0)
	s.Decay(1.5)
	s.Decay(-1)
	assert.Equal(t, before, s.Snapshot().AwarenessLevel)
}

func TestEngineState_ConcurrentAccess(t *testing.T) {
	s := Awaken()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				s.ApplyOutcome(0.5)
				s.Decay(0.1)
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.GreaterOrEqual(t, snap.AwarenessLevel, 0.0)
	assert.LessOrEqual(t, snap.AwarenessLevel, 1.0)
}
