package queue

import (
	"context"
	"sync"
)

// Memory is an in-process Enqueuer used by tests and by single-node
// deployments that run without Redis. It records enqueues in FIFO order per
// queue; Pop hands them back to a caller-driven loop.
type Memory struct {
	mu    sync.Mutex
	items map[string][]string
}

// NewMemory creates an empty in-memory queue.
func NewMemory() *Memory {
	return &Memory{items: make(map[string][]string)}
}

// Enqueue appends jobID to the named queue.
func (m *Memory) Enqueue(_ context.Context, queue, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[queue] = append(m.items[queue], jobID)
	return nil
}

// Pop removes and returns the oldest entry of the named queue.
// The second return is false when the queue is empty.
func (m *Memory) Pop(queue string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.items[queue]
	if len(entries) == 0 {
		return "", false
	}
	jobID := entries[0]
	m.items[queue] = entries[1:]
	return jobID, true
}

// Len returns the number of pending entries in the named queue.
func (m *Memory) Len(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items[queue])
}

var _ Enqueuer = (*Memory)(nil)
