package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// FeedbackStore implements domain.FeedbackStore using PostgreSQL.
type FeedbackStore struct {
	pool *pgxpool.Pool
}

// NewFeedbackStore creates a new FeedbackStore.
func NewFeedbackStore(pool *pgxpool.Pool) *FeedbackStore {
	return &FeedbackStore{pool: pool}
}

// Insert appends one feedback record to the audit log.
func (s *FeedbackStore) Insert(ctx context.Context, fb domain.Feedback) error {
	var metricsJSON []byte
	if fb.Metrics != nil {
		var err error
		metricsJSON, err = json.Marshal(fb.Metrics)
		if err != nil {
			return fmt.Errorf("postgres: marshal feedback metrics %s: %w", fb.ExecutionID, err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO feedback (
			execution_id, status, expected_profit, actual_profit,
			performance_delta, metrics, lessons, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		fb.ExecutionID, string(fb.Status), fb.ExpectedProfit, fb.ActualProfit,
		fb.PerformanceDelta, metricsJSON, fb.Lessons, fb.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert feedback %s: %w", fb.ExecutionID, err)
	}
	return nil
}

// ListBefore returns feedback created before the given time, oldest first.
func (s *FeedbackStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Feedback, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT execution_id, status, expected_profit, actual_profit,
		       performance_delta, metrics, lessons, created_at
		FROM feedback WHERE created_at < $1 ORDER BY created_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list feedback: %w", err)
	}
	defer rows.Close()

	var list []domain.Feedback
	for rows.Next() {
		var fb domain.Feedback
		var status string
		var metricsJSON []byte
		if err := rows.Scan(&fb.ExecutionID, &status, &fb.ExpectedProfit, &fb.ActualProfit,
			&fb.PerformanceDelta, &metricsJSON, &fb.Lessons, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan feedback: %w", err)
		}
		fb.Status = domain.FeedbackStatus(status)
		if len(metricsJSON) > 0 {
			if err := json.Unmarshal(metricsJSON, &fb.Metrics); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal feedback metrics %s: %w", fb.ExecutionID, err)
			}
		}
		list = append(list, fb)
	}
	return list, rows.Err()
}

// DeleteBefore removes feedback created before the given time, returning
// the number of rows deleted.
func (s *FeedbackStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM feedback WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete feedback: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.FeedbackStore = (*FeedbackStore)(nil)
