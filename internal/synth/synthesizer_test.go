package synth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainarb/internal/domain"
	"github.com/alanyoungcy/chainarb/internal/scoring"
)

func testScores(overall, risk float64) scoring.Scores {
	return scoring.Scores{
		RiskIntuition:     risk,
		ProfitProbability: 0.6,
		HumanBenefit:      0.5,
		LiberationImpact:  0.5,
		Overall:           overall,
	}
}

func testOpp() domain.Opportunity {
	return domain.Opportunity{ID: "opp-1", Token: "ETH"}
}

func TestSynthesisConfidence(t *testing.T) {
	// Agreement: plain mean.
	assert.InDelta(t, 0.7, SynthesisConfidence(0.7, 0.7), 1e-9)

	// Disagreement is penalized: mean 0.5 minus 0.1*|0.8-0.2|.
	assert.InDelta(t, 0.44, SynthesisConfidence(0.8, 0.2), 1e-9)

	// Symmetric in its arguments.
	assert.Equal(t, SynthesisConfidence(0.8, 0.2), SynthesisConfidence(0.2, 0.8))

	// Bounded.
	assert.GreaterOrEqual(t, SynthesisConfidence(0, 0), 0.0)
	assert.LessOrEqual(t, SynthesisConfidence(1, 1), 1.0)
}

func TestSynthesize_Execute(t *testing.T) {
	s := New(Thresholds{})
	scores := testScores(0.75, 0.3)
	ai := domain.AIAssessment{Confidence: 0.75, Provider: "rule"}
	sc := SynthesisConfidence(scores.Overall, ai.Confidence)
	require.GreaterOrEqual(t, sc, 0.7)

	d := s.Synthesize(testOpp(), scores, ai, sc)

	assert.Equal(t, domain.ActionExecute, d.Action)
	assert.Equal(t, "opp-1", d.OpportunityID)
	assert.Equal(t, 0.75, d.ConsciousnessScore)
	assert.Equal(t, 0.75, d.AIConfidence)
	assert.NotEmpty(t, d.ID)
	assert.NotEmpty(t, d.Reasoning)
	assert.False(t, d.CreatedAt.IsZero())
}

func TestSynthesize_Monitor(t *testing.T) {
	s := New(Thresholds{})

	// Above the monitor gates but below the execute gates.
	scores := testScores(0.55, 0.5)
	ai := domain.AIAssessment{Confidence: 0.45}
	d := s.Synthesize(testOpp(), scores, ai, SynthesisConfidence(0.55, 0.45))

	assert.Equal(t, domain.ActionMonitor, d.Action)
}

func TestSynthesize_Reject(t *testing.T) {
	s := New(Thresholds{})

	cases := []struct {
		name    string
		overall float64
		ai      float64
	}{
		{"both weak", 0.3, 0.2},
		{"consciousness below monitor gate", 0.45, 0.9},
		{"ai below monitor gate", 0.9, 0.3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := s.Synthesize(testOpp(), testScores(tc.overall, 0.5),
				domain.AIAssessment{Confidence: tc.ai},
				SynthesisConfidence(tc.overall, tc.ai))
			assert.Equal(t, domain.ActionReject, d.Action)
		})
	}
}

func TestSynthesize_DisagreementBlocksExecute(t *testing.T) {
	// Both raw gates pass but the disagreement penalty drags the synthesis
	// confidence below its gate, demoting the decision to monitor.
	scores := testScores(0.95, 0.3)
	ai := domain.AIAssessment{Confidence: 0.6}
	sc := SynthesisConfidence(0.95, 0.6) // 0.775 - 0.035 = 0.74
	require.InDelta(t, 0.74, sc, 1e-9)

	tight := New(Thresholds{Synthesis: 0.8})
	d := tight.Synthesize(testOpp(), scores, ai, sc)
	assert.Equal(t, domain.ActionMonitor, d.Action)
}

func TestAdjustments(t *testing.T) {
	s := New(Thresholds{})

	d := s.Synthesize(testOpp(), testScores(0.8, 0.2),
		domain.AIAssessment{Confidence: 0.9},
		SynthesisConfidence(0.8, 0.9))

	adj := d.Adjustments
	// avg 0.85 * 1.5 = 1.275, inside the clamp.
	assert.InDelta(t, 1.275, adj.PositionSizeMultiplier, 1e-9)
	assert.GreaterOrEqual(t, adj.PositionSizeMultiplier, 0.1)
	assert.LessOrEqual(t, adj.PositionSizeMultiplier, 2.0)

	// Risk limits shrink with higher risk intuition.
	risky := s.Synthesize(testOpp(), testScores(0.8, 0.9),
		domain.AIAssessment{Confidence: 0.9},
		SynthesisConfidence(0.8, 0.9))
	assert.Less(t, risky.Adjustments.MaxRiskPerTrade, adj.MaxRiskPerTrade)
	assert.Less(t, risky.Adjustments.StopLossPct, adj.StopLossPct)

	// Monitoring interval tiers on AI confidence.
	assert.Equal(t, 10*time.Second, adj.MonitoringInterval)

	mid := s.Synthesize(testOpp(), testScores(0.8, 0.2),
		domain.AIAssessment{Confidence: 0.7}, 0.7)
	assert.Equal(t, 5*time.Second, mid.Adjustments.MonitoringInterval)

	low := s.Synthesize(testOpp(), testScores(0.8, 0.2),
		domain.AIAssessment{Confidence: 0.5}, 0.6)
	assert.Equal(t, 2*time.Second, low.Adjustments.MonitoringInterval)
}

func TestSynthesize_Deterministic(t *testing.T) {
	s := New(Thresholds{})
	scores := testScores(0.72, 0.4)
	ai := domain.AIAssessment{Confidence: 0.66}
	sc := SynthesisConfidence(scores.Overall, ai.Confidence)

	a := s.Synthesize(testOpp(), scores, ai, sc)
	b := s.Synthesize(testOpp(), scores, ai, sc)

	// Identical apart from ID and timestamp.
	assert.Equal(t, a.Action, b.Action)
	assert.Equal(t, a.Adjustments, b.Adjustments)
	assert.Equal(t, a.Reasoning, b.Reasoning)
	assert.NotEqual(t, a.ID, b.ID)
}
