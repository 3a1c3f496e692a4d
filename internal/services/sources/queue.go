package sources

import (
	"sync"

	"github.com/ternarybob/nuntius/internal/models"
)

// itemQueue is the bounded buffer between a streaming connection and the
// poll loop. When full, the oldest item is discarded so the stream reader
// never blocks on a slow consumer.
type itemQueue struct {
	mu       sync.Mutex
	items    []models.RawItem
	capacity int
	dropped  uint64
}

func newItemQueue(capacity int) *itemQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &itemQueue{
		items:    make([]models.RawItem, 0, capacity),
		capacity: capacity,
	}
}

// Push appends an item, evicting the oldest when the queue is full.
// Returns true when an eviction happened.
func (q *itemQueue) Push(item models.RawItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := false
	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
		q.dropped++
		evicted = true
	}
	q.items = append(q.items, item)
	return evicted
}

// Drain removes and returns all buffered items, oldest first.
func (q *itemQueue) Drain() []models.RawItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = make([]models.RawItem, 0, q.capacity)
	return out
}

// Len returns the number of buffered items.
func (q *itemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns the total number of evictions since startup.
func (q *itemQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
