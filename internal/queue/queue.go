// Package queue provides the durable work queue that carries jobs between
// pipeline stages. Stage handoff is the concurrency primitive of the whole
// system: a job is owned by exactly one stage at a time because the next
// stage is only enqueued after the previous one succeeds.
//
// Delivery is at-least-once; every handler must be idempotent.
package queue

import (
	"context"
	"time"
)

// Stage queue names.
const (
	QueueSplitter    = "transcription-splitter"
	QueueTranscriber = "transcription-transcriber"
	QueueMerger      = "transcription-merger"
	QueuePackager    = "transcription-packager"
)

// Names returns all stage queue names in pipeline order.
func Names() []string {
	return []string{QueueSplitter, QueueTranscriber, QueueMerger, QueuePackager}
}

// Enqueuer submits a job id to a named queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, queue, jobID string) error
}

// Handler processes one delivery. Returning an error triggers the retry
// policy; returning nil acknowledges the task.
type Handler func(ctx context.Context, jobID string) error

// RetryPolicy bounds redelivery of failed tasks. Intervals is a schedule in
// seconds; attempts beyond its length reuse the last entry.
type RetryPolicy struct {
	Max       int
	Intervals []int
}

// DefaultRetryPolicy matches the service defaults: three attempts spaced one
// minute apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Max: 3, Intervals: []int{60}}
}

// Backoff returns the delay before redelivering a task that has already
// been attempted `attempt` times (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if len(p.Intervals) == 0 {
		return time.Minute
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.Intervals) {
		idx = len(p.Intervals) - 1
	}
	return time.Duration(p.Intervals[idx]) * time.Second
}

// Exhausted reports whether a task attempted `attempt` times has no retries
// left.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= p.Max
}

// task is the wire envelope stored in the broker.
type task struct {
	Queue   string `json:"queue"`
	JobID   string `json:"job_id"`
	Attempt int    `json:"attempt"`
}
