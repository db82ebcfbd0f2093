package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// DecisionStore implements domain.DecisionStore using PostgreSQL.
type DecisionStore struct {
	pool *pgxpool.Pool
}

// NewDecisionStore creates a new DecisionStore.
func NewDecisionStore(pool *pgxpool.Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

// Insert appends one decision to the audit log.
func (s *DecisionStore) Insert(ctx context.Context, d domain.Decision) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO decisions (
			id, opportunity_id, action,
			consciousness_score, ai_confidence, synthesis_confidence,
			risk_assessment, human_benefit_score,
			position_size_multiplier, max_risk_per_trade, stop_loss_pct, monitoring_interval_ms,
			reasoning, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		d.ID, d.OpportunityID, string(d.Action),
		d.ConsciousnessScore, d.AIConfidence, d.SynthesisConfidence,
		d.RiskAssessment, d.HumanBenefitScore,
		d.Adjustments.PositionSizeMultiplier, d.Adjustments.MaxRiskPerTrade,
		d.Adjustments.StopLossPct, d.Adjustments.MonitoringInterval.Milliseconds(),
		d.Reasoning, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert decision %s: %w", d.ID, err)
	}
	return nil
}

// ListRecent returns the most recent decisions, newest first.
func (s *DecisionStore) ListRecent(ctx context.Context, limit int) ([]domain.Decision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, opportunity_id, action,
		       consciousness_score, ai_confidence, synthesis_confidence,
		       risk_assessment, human_benefit_score,
		       position_size_multiplier, max_risk_per_trade, stop_loss_pct, monitoring_interval_ms,
		       reasoning, created_at
		FROM decisions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list decisions: %w", err)
	}
	defer rows.Close()

	var list []domain.Decision
	for rows.Next() {
		var d domain.Decision
		var action string
		var monitoringMs int64
		if err := rows.Scan(&d.ID, &d.OpportunityID, &action,
			&d.ConsciousnessScore, &d.AIConfidence, &d.SynthesisConfidence,
			&d.RiskAssessment, &d.HumanBenefitScore,
			&d.Adjustments.PositionSizeMultiplier, &d.Adjustments.MaxRiskPerTrade,
			&d.Adjustments.StopLossPct, &monitoringMs,
			&d.Reasoning, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan decision: %w", err)
		}
		d.Action = domain.DecisionAction(action)
		d.Adjustments.MonitoringInterval = time.Duration(monitoringMs) * time.Millisecond
		list = append(list, d)
	}
	return list, rows.Err()
}

// Compile-time interface check.
var _ domain.DecisionStore = (*DecisionStore)(nil)
