package flip

import (
	"sync"
	"time"

	"github.com/kilianp07/flipnotify/core/model"
)

// Queue is a mutex guarded FIFO that is trimmed from the front.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewQueue returns an empty queue.
func NewQueue[T any]() *Queue[T] { return &Queue[T]{} }

// Push appends v.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// TrimTo drops the oldest items until at most n remain and returns how
// many were dropped.
func (q *Queue[T]) TrimTo(n int) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	over := len(q.items) - n
	if over <= 0 {
		return 0
	}
	kept := copy(q.items, q.items[over:])
	var zero T
	for i := kept; i < len(q.items); i++ {
		q.items[i] = zero
	}
	q.items = q.items[:kept]
	return over
}

// Items returns a copy, oldest first.
func (q *Queue[T]) Items() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}

// BlockedFlip is one policy block.
type BlockedFlip struct {
	Event  *model.CandidateEvent `json:"event"`
	Reason string                `json:"reason"`
	At     time.Time             `json:"at"`
}

// BlockedLog keeps the most recent blocks for the user facing listing.
type BlockedLog = Queue[BlockedFlip]
