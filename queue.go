package protoclust

import "container/heap"

// candidateQueue is a min-priority queue of merge candidates keyed by
// distance. Equal keys pop in insertion order. Stale entries are not removed;
// the consumer recognises and drops them when they surface.
type candidateQueue struct {
	items candidateHeap
	seq   uint64
}

type candidate struct {
	key      float64
	seq      uint64
	cluster  int
	neighbor int
}

func newCandidateQueue(capacity int) *candidateQueue {
	return &candidateQueue{items: make(candidateHeap, 0, capacity)}
}

func (q *candidateQueue) Len() int { return q.items.Len() }

// Push enqueues the pair (cluster, neighbor) at key.
func (q *candidateQueue) Push(key float64, cluster, neighbor int) {
	heap.Push(&q.items, candidate{key: key, seq: q.seq, cluster: cluster, neighbor: neighbor})
	q.seq++
}

// PopMin removes the candidate with the smallest key.
func (q *candidateQueue) PopMin() (candidate, bool) {
	if q.items.Len() == 0 {
		return candidate{}, false
	}
	return heap.Pop(&q.items).(candidate), true
}

type candidateHeap []candidate

func (h candidateHeap) Len() int { return len(h) }
func (h candidateHeap) Less(i, j int) bool {
	if h[i].key != h[j].key {
		return h[i].key < h[j].key
	}
	return h[i].seq < h[j].seq
}
func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)   { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
