package embedding

import (
	"context"
	"testing"
)

func BenchmarkHashEmbedder_Embed(b *testing.B) {
	e := NewHashEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}

func BenchmarkCachedEmbedder_Hit(b *testing.B) {
	e := WithCache(NewHashEmbedder(384), 16)
	ctx := context.Background()
	_, _ = e.Embed(ctx, "warm")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "warm")
	}
}
