package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// HTTPProvider asks a language-model endpoint to assess an opportunity. The
// endpoint contract is a single POST returning {"confidence": x,
// "reasoning": "..."}; everything else about the model is opaque.
type HTTPProvider struct {
	name   string
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPProvider creates a provider for the given endpoint. name appears in
// logs and decision reasoning.
func NewHTTPProvider(name, url, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		name:   name,
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Name returns the provider identifier.
func (p *HTTPProvider) Name() string {
	return p.name
}

type evaluateRequest struct {
	Token       string  `json:"token"`
	BuyNetwork  string  `json:"buy_network"`
	SellNetwork string  `json:"sell_network"`
	BuyPrice    float64 `json:"buy_price"`
	SellPrice   float64 `json:"sell_price"`
	TradeSize   float64 `json:"trade_size"`
	NetProfit   float64 `json:"net_profit"`
	Liquidity   float64 `json:"liquidity_confidence"`
}

type evaluateResponse struct {
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Evaluate posts the opportunity to the endpoint and parses the assessment.
func (p *HTTPProvider) Evaluate(ctx context.Context, opp domain.Opportunity) (domain.AIAssessment, error) {
	payload := evaluateRequest{
		Token:       opp.Token,
		BuyNetwork:  opp.BuyNetwork,
		SellNetwork: opp.SellNetwork,
		BuyPrice:    opp.BuyPrice,
		SellPrice:   opp.SellPrice,
		TradeSize:   opp.TradeSize,
		NetProfit:   opp.NetProfit,
		Liquidity:   opp.LiquidityConfidence,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.AIAssessment{}, fmt.Errorf("ai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return domain.AIAssessment{}, fmt.Errorf("ai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.AIAssessment{}, fmt.Errorf("ai: %s request: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.AIAssessment{}, fmt.Errorf("ai: %s unexpected status %d: %s", p.name, resp.StatusCode, string(respBody))
	}

	var out evaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.AIAssessment{}, fmt.Errorf("ai: decode response: %w", err)
	}

	return domain.AIAssessment{
		Confidence: out.Confidence,
		Reasoning:  out.Reasoning,
	}, nil
}
