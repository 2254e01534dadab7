package vector

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
)

// FlatIndex is a brute-force squared L2 index. Vectors are kept in one contiguous slice
// to keep per-vector overhead at zero for large corpora.
type FlatIndex struct {
	dimensions int
	data       []float32
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

// Add appends vectors; they receive the next positions in order.
func (f *FlatIndex) Add(ctx context.Context, vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != f.dimensions {
			return fmt.Errorf("vector %d dimension mismatch: got %d, expected %d", i, len(v), f.dimensions)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range vectors {
		f.data = append(f.data, v...)
	}
	return nil
}

// Search returns up to k nearest vectors by squared L2 distance, closest first.
// Equal distances are ordered by position.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := len(f.data) / f.dimensions
	if k <= 0 || n == 0 {
		return nil, nil
	}
	if k > n {
		k = n
	}
	h := make(maxHeap, 0, k)
	for pos := 0; pos < n; pos++ {
		if pos%4096 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d := SquaredL2(query, f.data[pos*f.dimensions:(pos+1)*f.dimensions])
		if len(h) < k {
			heap.Push(&h, Neighbor{Position: pos, Distance: d})
			continue
		}
		if d < h[0].Distance {
			h[0] = Neighbor{Position: pos, Distance: d}
			heap.Fix(&h, 0)
		}
	}
	out := make([]Neighbor, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Neighbor)
	}
	return out, nil
}

// Vector returns a copy of the vector at pos.
func (f *FlatIndex) Vector(pos int) ([]float32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if pos < 0 || pos >= len(f.data)/f.dimensions {
		return nil, fmt.Errorf("position %d out of range", pos)
	}
	out := make([]float32, f.dimensions)
	copy(out, f.data[pos*f.dimensions:])
	return out, nil
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.data) / f.dimensions
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// SquaredL2 returns the squared Euclidean distance between a and b.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// maxHeap keeps the current k best with the worst on top.
type maxHeap []Neighbor

func (h maxHeap) Len() int { return len(h) }
func (h maxHeap) Less(i, j int) bool {
	if h[i].Distance == h[j].Distance {
		return h[i].Position > h[j].Position
	}
	return h[i].Distance > h[j].Distance
}
func (h maxHeap) Swap(i, j int)  { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)   { *h = append(*h, x.(Neighbor)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
