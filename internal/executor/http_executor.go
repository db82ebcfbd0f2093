package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// HTTPExecutor implements domain.TradeExecutor against an external execution
// service. Duplicate submissions for the same route inside the dedup window
// are rejected locally before any network call.
type HTTPExecutor struct {
	endpoint   string
	credential string
	client     *http.Client
	dedup      *dedupGuard
	logger     *slog.Logger
}

// NewHTTPExecutor creates an HTTPExecutor. credential is the decrypted
// bearer token for the execution service.
func NewHTTPExecutor(endpoint, credential string, timeout, dedupWindow time.Duration, logger *slog.Logger) *HTTPExecutor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPExecutor{
		endpoint:   endpoint,
		credential: credential,
		client:     &http.Client{Timeout: timeout},
		dedup:      newDedupGuard(dedupWindow),
		logger:     logger.With(slog.String("component", "executor")),
	}
}

// executeRequest is the wire format submitted to the execution service.
type executeRequest struct {
	Token                  string  `json:"token"`
	BuyNetwork             string  `json:"buy_network"`
	SellNetwork            string  `json:"sell_network"`
	BuyPrice               float64 `json:"buy_price"`
	SellPrice              float64 `json:"sell_price"`
	TradeSize              float64 `json:"trade_size"`
	PositionSizeMultiplier float64 `json:"position_size_multiplier"`
	MaxRiskPerTrade        float64 `json:"max_risk_per_trade"`
	StopLossPct            float64 `json:"stop_loss_pct"`
}

// executeResponse is the wire format returned by the execution service.
type executeResponse struct {
	Success       bool    `json:"success"`
	Profit        float64 `json:"profit"`
	GasCostActual float64 `json:"gas_cost_actual"`
}

// Execute submits the trade and reports the observed result. A duplicate
// route inside the suppression window returns domain.ErrExecutorRejected.
func (e *HTTPExecutor) Execute(ctx context.Context, opp domain.Opportunity, adj domain.StrategyAdjustments) (domain.ExecutionResult, error) {
	key := routeKey(opp.Token, opp.BuyNetwork, opp.SellNetwork)
	if !e.dedup.claim(key) {
		e.logger.Warn("duplicate route suppressed",
			slog.String("token", opp.Token),
			slog.String("buy_network", opp.BuyNetwork),
			slog.String("sell_network", opp.SellNetwork),
		)
		return domain.ExecutionResult{}, fmt.Errorf("executor: route %s: %w", key, domain.ErrExecutorRejected)
	}

	body, err := json.Marshal(executeRequest{
		Token:                  opp.Token,
		BuyNetwork:             opp.BuyNetwork,
		SellNetwork:            opp.SellNetwork,
		BuyPrice:               opp.BuyPrice,
		SellPrice:              opp.SellPrice,
		TradeSize:              opp.TradeSize * adj.PositionSizeMultiplier,
		PositionSizeMultiplier: adj.PositionSizeMultiplier,
		MaxRiskPerTrade:        adj.MaxRiskPerTrade,
		StopLossPct:            adj.StopLossPct,
	})
	if err != nil {
		e.dedup.release(key)
		return domain.ExecutionResult{}, fmt.Errorf("executor: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/execute", bytes.NewReader(body))
	if err != nil {
		e.dedup.release(key)
		return domain.ExecutionResult{}, fmt.Errorf("executor: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.credential != "" {
		req.Header.Set("Authorization", "Bearer "+e.credential)
	}

	started := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		e.dedup.release(key)
		return domain.ExecutionResult{}, fmt.Errorf("executor: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.ExecutionResult{}, fmt.Errorf("executor: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("executor: decode response: %w", err)
	}

	return domain.ExecutionResult{
		Success:       out.Success,
		Profit:        out.Profit,
		GasCostActual: out.GasCostActual,
		Duration:      time.Since(started),
	}, nil
}

// Compile-time interface check.
var _ domain.TradeExecutor = (*HTTPExecutor)(nil)
