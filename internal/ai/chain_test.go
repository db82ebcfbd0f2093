package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

type stubProvider struct {
	name       string
	confidence float64
	reasoning  string
	err        error
	calls      int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Evaluate(_ context.Context, _ domain.Opportunity) (domain.AIAssessment, error) {
	p.calls++
	if p.err != nil {
		return domain.AIAssessment{}, p.err
	}
	return domain.AIAssessment{Confidence: p.confidence, Reasoning: p.reasoning}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOpp() domain.Opportunity {
	return domain.Opportunity{
		ID:                  "opp-1",
		Token:               "ETH",
		BuyNetwork:          "arbitrum",
		SellNetwork:         "ethereum",
		BuyPrice:            3000,
		SellPrice:           3100,
		TradeSize:           1,
		NetProfit:           80,
		LiquidityConfidence: 0.85,
	}
}

func TestChain_FirstSuccessWins(t *testing.T) {
	first := &stubProvider{name: "first", confidence: 0.8, reasoning: "looks good"}
	second := &stubProvider{name: "second", confidence: 0.2}
	chain := NewChain([]domain.ConfidenceProvider{first, second}, time.Second, discardLogger())

	out := chain.Evaluate(context.Background(), testOpp())

	assert.Equal(t, 0.8, out.Confidence)
	assert.Equal(t, "first", out.Provider)
	assert.Equal(t, "looks good", out.Reasoning)
	assert.Equal(t, 0, second.calls)
}

func TestChain_FallsThroughOnFailure(t *testing.T) {
	broken := &stubProvider{name: "broken", err: errors.New("boom")}
	fallback := &stubProvider{name: "fallback", confidence: 0.6}
	chain := NewChain([]domain.ConfidenceProvider{broken, fallback}, time.Second, discardLogger())

	out := chain.Evaluate(context.Background(), testOpp())

	assert.Equal(t, 0.6, out.Confidence)
	assert.Equal(t, "fallback", out.Provider)
	assert.Equal(t, 1, broken.calls)
}

func TestChain_ExhaustedYieldsZeroConfidence(t *testing.T) {
	chain := NewChain([]domain.ConfidenceProvider{
		&stubProvider{name: "a", err: errors.New("down")},
		&stubProvider{name: "b", err: errors.New("also down")},
	}, time.Second, discardLogger())

	out := chain.Evaluate(context.Background(), testOpp())

	assert.Equal(t, 0.0, out.Confidence)
	assert.Equal(t, "none", out.Provider)
	assert.Contains(t, out.Reasoning, "unavailable")
}

func TestChain_EmptyChain(t *testing.T) {
	chain := NewChain(nil, 0, discardLogger())
	out := chain.Evaluate(context.Background(), testOpp())
	assert.Equal(t, 0.0, out.Confidence)
	assert.Equal(t, "none", out.Provider)
}

func TestChain_ClampsConfidence(t *testing.T) {
	chain := NewChain([]domain.ConfidenceProvider{
		&stubProvider{name: "wild", confidence: 3.5},
	}, time.Second, discardLogger())

	out := chain.Evaluate(context.Background(), testOpp())
	assert.Equal(t, 1.0, out.Confidence)
}

func TestRuleProvider(t *testing.T) {
	p := NewRuleProvider()

	out, err := p.Evaluate(context.Background(), testOpp())
	require.NoError(t, err)

	// margin 80/3000 ~ 0.0267: 0.3 + 0.16 + 0.2125 ~ 0.6725.
	assert.InDelta(t, 0.6725, out.Confidence, 0.001)
	assert.NotEmpty(t, out.Reasoning)

	// Capped below near-certainty.
	rich := testOpp()
	rich.NetProfit = 3000
	rich.LiquidityConfidence = 1
	out, err = p.Evaluate(context.Background(), rich)
	require.NoError(t, err)
	assert.Equal(t, 0.9, out.Confidence)
}

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"confidence":0.77,"reasoning":"model says yes"}`)
	}))
	defer srv.Close()

	p := NewHTTPProvider("remote", srv.URL, "secret")
	out, err := p.Evaluate(context.Background(), testOpp())

	require.NoError(t, err)
	assert.Equal(t, 0.77, out.Confidence)
	assert.Equal(t, "model says yes", out.Reasoning)
}

func TestHTTPProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewHTTPProvider("remote", srv.URL, "")
	_, err := p.Evaluate(context.Background(), testOpp())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
