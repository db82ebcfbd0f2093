// Package pipeline implements the staged decision pipeline: a message queue,
// per-stage handlers, background producer/monitor/learning loops, and the
// orchestrator that owns them.
package pipeline

import (
	"context"
	"time"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// fastLanePriority is the priority at or above which a message is routed to
// the fast lane. Priority is advisory: the fast lane is drained first, but
// within a lane messages stay strictly FIFO.
const fastLanePriority = 8

// Queue is the two-lane in-memory pipeline queue. Both lanes are bounded;
// Enqueue never blocks the caller.
type Queue struct {
	fast   chan domain.PipelineMessage
	normal chan domain.PipelineMessage
}

// NewQueue creates a Queue whose lanes each hold up to size messages.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{
		fast:   make(chan domain.PipelineMessage, size),
		normal: make(chan domain.PipelineMessage, size),
	}
}

// Enqueue routes the message to its lane. It returns false when the lane is
// full and the message was dropped; the caller decides whether that is worth
// logging.
func (q *Queue) Enqueue(msg domain.PipelineMessage) bool {
	lane := q.normal
	if msg.Priority >= fastLanePriority {
		lane = q.fast
	}
	select {
	case lane <- msg:
		return true
	default:
		return false
	}
}

// Dequeue returns the next message, preferring the fast lane. It blocks for
// at most timeout so the consumer loop stays responsive to shutdown; the
// second return is false on timeout or context cancellation.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (domain.PipelineMessage, bool) {
	// Drain the fast lane first without blocking.
	select {
	case msg := <-q.fast:
		return msg, true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-q.fast:
		return msg, true
	case msg := <-q.normal:
		return msg, true
	case <-timer.C:
		return domain.PipelineMessage{}, false
	case <-ctx.Done():
		return domain.PipelineMessage{}, false
	}
}

// Depth reports the total number of queued messages across both lanes.
func (q *Queue) Depth() int {
	return len(q.fast) + len(q.normal)
}
