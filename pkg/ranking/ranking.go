// Package ranking keeps scored opportunities ordered by score so the API
// can serve "top opportunities" without re-sorting storage on every request.
package ranking

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

const (
	DefaultMaxCapacity = 1000
)

// QueueStats describes ranking queue activity.
type QueueStats struct {
	CurrentSize    int       `json:"current_size"`
	MaxSize        int       `json:"max_size"`
	TotalProcessed int64     `json:"total_processed"`
	EvictedCount   int64     `json:"evicted_count"`
	LastEviction   time.Time `json:"last_eviction"`
}

// opportunityHeap implements heap.Interface ordered by score descending.
type opportunityHeap []*types.Opportunity

func (h opportunityHeap) Len() int { return len(h) }

func (h opportunityHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score > h[j].Score
	}
	// Equal scores: prefer the larger net profit.
	return h[i].NetProfit > h[j].NetProfit
}

func (h opportunityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *opportunityHeap) Push(x interface{}) {
	*h = append(*h, x.(*types.Opportunity))
}

func (h *opportunityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// Queue is a capacity-bounded, score-ordered queue of active opportunities,
// keyed by the (token, chainFrom, chainTo) triple. Re-adding a key replaces
// the previous entry. Safe for concurrent use.
type Queue struct {
	heap        *opportunityHeap
	keyIndex    map[string]int
	maxCapacity int
	mutex       sync.RWMutex
	stats       QueueStats
}

// NewQueue creates a ranking queue with default capacity.
func NewQueue() *Queue {
	return NewQueueWithCapacity(DefaultMaxCapacity)
}

// NewQueueWithCapacity creates a ranking queue with the specified capacity.
func NewQueueWithCapacity(capacity int) *Queue {
	h := &opportunityHeap{}
	heap.Init(h)

	return &Queue{
		heap:        h,
		keyIndex:    make(map[string]int),
		maxCapacity: capacity,
		stats: QueueStats{
			MaxSize: capacity,
		},
	}
}

// Key identifies an opportunity slot in the queue.
func Key(token, chainFrom, chainTo string) string {
	return token + "|" + chainFrom + "|" + chainTo
}

// Upsert adds the opportunity, replacing any previous entry for the same
// triple. When the queue is full the stalest entry is evicted first.
func (q *Queue) Upsert(opp *types.Opportunity) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	key := Key(opp.Token, opp.ChainFrom, opp.ChainTo)
	if index, exists := q.keyIndex[key]; exists {
		heap.Remove(q.heap, index)
		q.rebuildIndex()
	}

	if q.heap.Len() >= q.maxCapacity {
		if err := q.evictStalest(); err != nil {
			return fmt.Errorf("failed to evict opportunity: %w", err)
		}
	}

	heap.Push(q.heap, opp)
	q.rebuildIndex()

	q.stats.CurrentSize = q.heap.Len()
	q.stats.TotalProcessed++

	return nil
}

// Peek returns the highest scored opportunity without removing it.
func (q *Queue) Peek() (*types.Opportunity, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	if q.heap.Len() == 0 {
		return nil, fmt.Errorf("queue is empty")
	}

	return (*q.heap)[0], nil
}

// Top returns up to n opportunities in descending score order. The queue is
// left unchanged.
func (q *Queue) Top(n int) []*types.Opportunity {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if n > q.heap.Len() {
		n = q.heap.Len()
	}

	// Pop n entries off a working heap, then restore.
	popped := make([]*types.Opportunity, 0, n)
	for i := 0; i < n; i++ {
		popped = append(popped, heap.Pop(q.heap).(*types.Opportunity))
	}
	for _, opp := range popped {
		heap.Push(q.heap, opp)
	}
	q.rebuildIndex()

	return popped
}

// Size returns the current number of opportunities in the queue.
func (q *Queue) Size() int {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	return q.heap.Len()
}

// IsEmpty returns true if the queue is empty.
func (q *Queue) IsEmpty() bool {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	return q.heap.Len() == 0
}

// Clear removes all opportunities from the queue.
func (q *Queue) Clear() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	*q.heap = (*q.heap)[:0]
	q.keyIndex = make(map[string]int)
	q.stats.CurrentSize = 0
}

// Get retrieves an opportunity by its triple.
func (q *Queue) Get(token, chainFrom, chainTo string) (*types.Opportunity, bool) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	index, exists := q.keyIndex[Key(token, chainFrom, chainTo)]
	if !exists || index >= q.heap.Len() {
		return nil, false
	}

	return (*q.heap)[index], true
}

// Remove drops an opportunity by its triple, used when a scan marks it
// expired.
func (q *Queue) Remove(token, chainFrom, chainTo string) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	index, exists := q.keyIndex[Key(token, chainFrom, chainTo)]
	if !exists || index >= q.heap.Len() {
		return false
	}

	heap.Remove(q.heap, index)
	delete(q.keyIndex, Key(token, chainFrom, chainTo))
	q.rebuildIndex()

	q.stats.CurrentSize = q.heap.Len()

	return true
}

// evictStalest removes the entry with the oldest update time.
func (q *Queue) evictStalest() error {
	if q.heap.Len() == 0 {
		return fmt.Errorf("cannot evict from empty queue")
	}

	stalestIndex := 0
	stalestTime := (*q.heap)[0].UpdatedAt

	for i, opp := range *q.heap {
		if opp.UpdatedAt.Before(stalestTime) {
			stalestTime = opp.UpdatedAt
			stalestIndex = i
		}
	}

	stalest := (*q.heap)[stalestIndex]

	heap.Remove(q.heap, stalestIndex)
	delete(q.keyIndex, Key(stalest.Token, stalest.ChainFrom, stalest.ChainTo))
	q.rebuildIndex()

	q.stats.EvictedCount++
	q.stats.LastEviction = time.Now()

	return nil
}

// rebuildIndex rebuilds the key index after heap operations.
func (q *Queue) rebuildIndex() {
	q.keyIndex = make(map[string]int)
	for i, opp := range *q.heap {
		q.keyIndex[Key(opp.Token, opp.ChainFrom, opp.ChainTo)] = i
	}
}

// GetStats returns current queue statistics.
func (q *Queue) GetStats() QueueStats {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	stats := q.stats
	stats.CurrentSize = q.heap.Len()

	return stats
}
