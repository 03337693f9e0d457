// Package presence counts live authenticated sessions joined to public rooms.
// Counts are approximate: they start at zero with the process (or with the
// Redis key space) and are not reconciled after a crash.
package presence

import (
	"context"
	"sync"

	"chatroom-service/internal/models"
)

// Tracker is the presence counter shared by all sessions.
type Tracker interface {
	Increment(ctx context.Context, room models.RoomRef) (int64, error)
	Decrement(ctx context.Context, room models.RoomRef) (int64, error)
	Count(ctx context.Context, room models.RoomRef) (int64, error)
	Close() error
}

// MemoryTracker keeps counts in process memory.
type MemoryTracker struct {
	mu     sync.Mutex
	counts map[models.RoomRef]int64
}

// NewMemoryTracker returns an empty tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{counts: make(map[models.RoomRef]int64)}
}

func (t *MemoryTracker) Increment(_ context.Context, room models.RoomRef) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[room]++
	return t.counts[room], nil
}

// Decrement never takes a count below zero.
func (t *MemoryTracker) Decrement(_ context.Context, room models.RoomRef) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.counts[room]
	if n <= 1 {
		delete(t.counts, room)
		return 0, nil
	}
	t.counts[room] = n - 1
	return n - 1, nil
}

func (t *MemoryTracker) Count(_ context.Context, room models.RoomRef) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[room], nil
}

// Close drops every count.
func (t *MemoryTracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts = make(map[models.RoomRef]int64)
	return nil
}
