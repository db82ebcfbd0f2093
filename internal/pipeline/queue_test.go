package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

func msg(id string, priority int) domain.PipelineMessage {
	return domain.PipelineMessage{
		ID:       id,
		Stage:    domain.StageAgentAnalysis,
		Priority: priority,
	}
}

func TestQueue_FIFOWithinLane(t *testing.T) {
	q := NewQueue(8)

	for i := 0; i < 4; i++ {
		require.True(t, q.Enqueue(msg(fmt.Sprintf("m%d", i), 5)))
	}

	for i := 0; i < 4; i++ {
		got, ok := q.Dequeue(context.Background(), time.Second)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("m%d", i), got.ID)
	}
}

func TestQueue_FastLanePrecedence(t *testing.T) {
	q := NewQueue(8)

	require.True(t, q.Enqueue(msg("slow1", 5)))
	require.True(t, q.Enqueue(msg("slow2", 5)))
	require.True(t, q.Enqueue(msg("fast1", 8)))
	require.True(t, q.Enqueue(msg("fast2", 9)))

	var order []string
	for i := 0; i < 4; i++ {
		got, ok := q.Dequeue(context.Background(), time.Second)
		require.True(t, ok)
		order = append(order, got.ID)
	}
	assert.Equal(t, []string{"fast1", "fast2", "slow1", "slow2"}, order)
}

func TestQueue_DropOnFull(t *testing.T) {
	q := NewQueue(2)

	assert.True(t, q.Enqueue(msg("a", 5)))
	assert.True(t, q.Enqueue(msg("b", 5)))
	assert.False(t, q.Enqueue(msg("c", 5)), "full normal lane must drop")

	// The fast lane is a separate bound.
	assert.True(t, q.Enqueue(msg("f", 9)))
	assert.Equal(t, 3, q.Depth())
}

func TestQueue_DequeueTimeout(t *testing.T) {
	q := NewQueue(2)

	start := time.Now()
	_, ok := q.Dequeue(context.Background(), 20*time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestQueue_DequeueContextCancel(t *testing.T) {
	q := NewQueue(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := q.Dequeue(ctx, time.Minute)
	assert.False(t, ok)
}

func TestQueue_Depth(t *testing.T) {
	q := NewQueue(4)
	assert.Equal(t, 0, q.Depth())

	q.Enqueue(msg("a", 5))
	q.Enqueue(msg("b", 9))
	assert.Equal(t, 2, q.Depth())

	q.Dequeue(context.Background(), time.Second)
	assert.Equal(t, 1, q.Depth())
}
