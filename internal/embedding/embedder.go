// Package embedding provides text embedding providers and caching.
package embedding

import "context"

// Embedder produces fixed-length vector embeddings for text.
// Implementations must be deterministic: the same text yields the same vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}
