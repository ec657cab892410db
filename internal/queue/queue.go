// Package queue provides a bounded candidate heap for k-nearest-neighbor
// queries.
package queue

import (
	"github.com/hupe1980/pointgo/index"
)

// NeighborHeap is a bounded max-heap of neighbor candidates ordered by
// (distance, point index). The root is always the current worst candidate,
// so a full heap accepts a new candidate in O(log k) and rejects one in
// O(1).
//
// "Worse" means greater distance, or equal distance with greater point
// index. The index tie-break is what makes query results deterministic
// across index implementations.
//
// The heap lives in caller-provided backing storage and sifts candidates
// directly on the neighbor slice, so a query loop that reuses its scratch
// slice runs without any per-query allocation.
type NeighborHeap struct {
	items []index.Neighbor
}

// NewNeighborHeap creates a heap for k candidates backed by buf. buf is
// reused when its capacity suffices; the result of Sort shares its
// storage.
func NewNeighborHeap(buf []index.Neighbor, k int) NeighborHeap {
	if cap(buf) < k {
		buf = make([]index.Neighbor, 0, k)
	}
	return NeighborHeap{items: buf[:0]}
}

// worse reports whether a is a worse candidate than b.
func worse(a, b index.Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	return a.Index > b.Index
}

// Len returns the number of candidates currently held.
func (h *NeighborHeap) Len() int { return len(h.items) }

// Top returns the current worst candidate without removing it.
func (h *NeighborHeap) Top() (index.Neighbor, bool) {
	if len(h.items) == 0 {
		return index.Neighbor{}, false
	}
	return h.items[0], true
}

// PushBounded offers a candidate to the heap. Below capacity the candidate
// is always accepted; at capacity it replaces the worst candidate only if
// it is better under the (distance, index) ordering.
func (h *NeighborHeap) PushBounded(n index.Neighbor, capacity int) {
	if len(h.items) < capacity {
		h.items = append(h.items, n)
		h.siftUp(len(h.items) - 1)
		return
	}
	if worse(h.items[0], n) {
		h.items[0] = n
		h.siftDown(0, len(h.items))
	}
}

// WorstDistance returns the distance of the worst held candidate, or
// +Inf semantics via ok=false when the heap is empty.
func (h *NeighborHeap) WorstDistance() (float64, bool) {
	if len(h.items) == 0 {
		return 0, false
	}
	return h.items[0].Distance, true
}

// Full reports whether the heap holds capacity candidates.
func (h *NeighborHeap) Full(capacity int) bool { return len(h.items) >= capacity }

// Sort orders the candidates by ascending (distance, index) in place and
// returns the slice, which shares the heap's backing storage. The heap
// property is destroyed; Reset before reuse.
func (h *NeighborHeap) Sort() []index.Neighbor {
	// In-place heapsort: the root is the worst candidate, so swapping it
	// behind the shrinking heap yields ascending order.
	for n := len(h.items) - 1; n > 0; n-- {
		h.items[0], h.items[n] = h.items[n], h.items[0]
		h.siftDown(0, n)
	}
	return h.items
}

// Reset clears the heap while keeping its backing storage.
func (h *NeighborHeap) Reset() { h.items = h.items[:0] }

func (h *NeighborHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !worse(h.items[i], h.items[parent]) {
			return
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *NeighborHeap) siftDown(i, n int) {
	for {
		left := 2*i + 1
		if left >= n {
			return
		}
		worst := left
		if right := left + 1; right < n && worse(h.items[right], h.items[left]) {
			worst = right
		}
		if !worse(h.items[worst], h.items[i]) {
			return
		}
		h.items[i], h.items[worst] = h.items[worst], h.items[i]
		i = worst
	}
}
