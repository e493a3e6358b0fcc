package titleindex

import "container/heap"

// TopK selects the k highest scores with a bounded min-heap and returns them
// best first. Ties go to the lower document position.
func TopK(scores []float64, k int) []Hit {
	if k <= 0 {
		return []Hit{}
	}
	if k > len(scores) {
		k = len(scores)
	}
	h := make(hitHeap, 0, k+1)
	for doc, score := range scores {
		hit := Hit{Doc: doc, Score: score}
		if h.Len() < k {
			heap.Push(&h, hit)
			continue
		}
		if worse(h[0], hit) {
			h[0] = hit
			heap.Fix(&h, 0)
		}
	}
	result := make([]Hit, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(Hit)
	}
	return result
}

// worse reports whether a ranks below b.
func worse(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Doc > b.Doc
}

type hitHeap []Hit

func (h hitHeap) Len() int { return len(h) }

func (h hitHeap) Less(i, j int) bool { return worse(h[i], h[j]) }

func (h hitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x interface{}) {
	*h = append(*h, x.(Hit))
}

func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
