package projection

import "container/heap"

// Compile time check to ensure neighborHeap satisfies the heap interface.
var _ heap.Interface = (*neighborHeap)(nil)

type candidate struct {
	index int
	dist  float64
}

// worse reports whether a ranks behind b: larger distance, then larger index.
func worse(a, b candidate) bool {
	if a.dist != b.dist {
		return a.dist > b.dist
	}
	return a.index > b.index
}

// neighborHeap is a max-heap on rank, so the root is the worst kept
// candidate.
type neighborHeap []candidate

func (h neighborHeap) Len() int           { return len(h) }
func (h neighborHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h neighborHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *neighborHeap) Push(x any) { *h = append(*h, x.(candidate)) }

func (h *neighborHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// offer keeps c if it ranks among the best k seen so far.
func (h *neighborHeap) offer(c candidate, k int) {
	if k <= 0 {
		return
	}
	if h.Len() < k {
		heap.Push(h, c)
		return
	}
	if worse((*h)[0], c) {
		(*h)[0] = c
		heap.Fix(h, 0)
	}
}

// sorted drains the heap and returns its candidates best first.
func (h *neighborHeap) sorted() []candidate {
	out := make([]candidate, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(candidate)
	}
	return out
}
