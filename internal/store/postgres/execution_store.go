package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL. Key
// scalar fields are flattened into columns for querying; the full decision
// and opportunity are kept as JSONB for faithful reconstruction.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Insert appends one execution record to the audit log.
func (s *ExecutionStore) Insert(ctx context.Context, rec domain.ExecutionRecord) error {
	decisionJSON, err := json.Marshal(rec.Decision)
	if err != nil {
		return fmt.Errorf("postgres: marshal decision %s: %w", rec.ID, err)
	}
	oppJSON, err := json.Marshal(rec.Opportunity)
	if err != nil {
		return fmt.Errorf("postgres: marshal opportunity %s: %w", rec.ID, err)
	}

	var success *bool
	var profit, gasActual *float64
	var durationMs *int64
	if rec.Result != nil {
		success = &rec.Result.Success
		profit = &rec.Result.Profit
		gasActual = &rec.Result.GasCostActual
		ms := rec.Result.Duration.Milliseconds()
		durationMs = &ms
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO executions (
			id, token, buy_network, sell_network, expected_profit, status,
			success, profit, gas_cost_actual, duration_ms,
			decision, opportunity, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			success = EXCLUDED.success,
			profit = EXCLUDED.profit,
			gas_cost_actual = EXCLUDED.gas_cost_actual,
			duration_ms = EXCLUDED.duration_ms`,
		rec.ID, rec.Opportunity.Token, rec.Opportunity.BuyNetwork, rec.Opportunity.SellNetwork,
		rec.Opportunity.NetProfit, string(rec.Status),
		success, profit, gasActual, durationMs,
		decisionJSON, oppJSON, rec.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution %s: %w", rec.ID, err)
	}
	return nil
}

// ListBefore returns executions started before the given time, oldest first.
// The archiver uses it to sweep closed records into object storage.
func (s *ExecutionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ExecutionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, status, success, profit, gas_cost_actual, duration_ms,
		       decision, opportunity, started_at
		FROM executions WHERE started_at < $1 ORDER BY started_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	defer rows.Close()

	var list []domain.ExecutionRecord
	for rows.Next() {
		var rec domain.ExecutionRecord
		var status string
		var success *bool
		var profit, gasActual *float64
		var durationMs *int64
		var decisionJSON, oppJSON []byte
		if err := rows.Scan(&rec.ID, &status, &success, &profit, &gasActual, &durationMs,
			&decisionJSON, &oppJSON, &rec.StartedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		rec.Status = domain.ExecutionStatus(status)
		if err := json.Unmarshal(decisionJSON, &rec.Decision); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal decision %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal(oppJSON, &rec.Opportunity); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal opportunity %s: %w", rec.ID, err)
		}
		if success != nil {
			rec.Result = &domain.ExecutionResult{
				Success:       *success,
				Profit:        deref(profit),
				GasCostActual: deref(gasActual),
			}
			if durationMs != nil {
				rec.Result.Duration = time.Duration(*durationMs) * time.Millisecond
			}
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// DeleteBefore removes executions started before the given time, returning
// the number of rows deleted. Called after a successful archive sweep.
func (s *ExecutionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM executions WHERE started_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete executions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// Compile-time interface check.
var _ domain.ExecutionStore = (*ExecutionStore)(nil)
