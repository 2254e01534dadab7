// Package vector provides a flat squared-Euclidean vector index addressed by insertion position.
package vector

import "context"

// Index stores vectors in insertion order; position i is the i-th vector added.
type Index interface {
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	Size() int
	Dimensions() int
}

// Neighbor is a single search hit: the vector position and its squared L2 distance to the query.
type Neighbor struct {
	Position int
	Distance float32
}
