package lock

import (
	"container/heap"
	"sync"
	"time"

	"github.com/openmined/corectl/internal/ident"
)

// expiryItem is a single scheduled deadline in the expiry queue.
type expiryItem struct {
	nid      ident.NID
	deadline time.Time
	index    int
}

// expiryHeap implements heap.Interface ordered by soonest deadline first,
// adapted from the teacher's internal/queue.PriorityQueue (container/heap
// generic wrapper), specialized here to order by wall-clock deadline
// instead of an integer priority.
type expiryHeap []*expiryItem

func (h expiryHeap) Len() int            { return len(h) }
func (h expiryHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expiryHeap) Push(x any) {
	item := x.(*expiryItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// expiryQueue is a thread-safe priority queue of pending lock deadlines,
// letting the timeout worker ask "what is the next lock to check" in
// O(log n) instead of scanning the whole trie every tick.
type expiryQueue struct {
	mu   sync.Mutex
	heap expiryHeap
}

func newExpiryQueue() *expiryQueue {
	q := &expiryQueue{}
	heap.Init(&q.heap)
	return q
}

func (q *expiryQueue) schedule(nid ident.NID, deadline time.Time) {
	if deadline.IsZero() {
		return // infinite timeout, never scheduled
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.heap, &expiryItem{nid: nid, deadline: deadline})
}

// due pops and returns every item whose deadline is at or before now.
func (q *expiryQueue) due(now time.Time) []ident.NID {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []ident.NID
	for q.heap.Len() > 0 && !q.heap[0].deadline.After(now) {
		item := heap.Pop(&q.heap).(*expiryItem)
		out = append(out, item.nid)
	}
	return out
}

func (q *expiryQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}
