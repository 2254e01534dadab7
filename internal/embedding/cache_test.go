package embedding

import (
	"context"
	"testing"
)

func TestCache_GetSet(t *testing.T) {
	c := NewCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Get("a")                // a becomes most recent
	c.Set("c", []float32{6}) // evicts b
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len=%d", c.Len())
	}
}

type countingEmbedder struct {
	*HashEmbedder
	calls int
	texts int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	c.texts++
	return c.HashEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.texts += len(texts)
	return c.HashEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(4)}
	e := WithCache(inner, 10)
	ctx := context.Background()

	if _, err := e.Embed(ctx, "chest pain"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(ctx, "chest pain"); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", inner.calls)
	}

	out, err := e.EmbedBatch(ctx, []string{"chest pain", "fever", "rash"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(out))
	}
	if inner.texts != 3 {
		t.Errorf("expected only uncached texts to reach provider, got %d texts total", inner.texts)
	}
	want, _ := NewHashEmbedder(4).Embed(ctx, "fever")
	for i := range want {
		if out[1][i] != want[i] {
			t.Fatalf("batch order not preserved: %v vs %v", out[1], want)
		}
	}
	if e.Dimensions() != 4 {
		t.Errorf("Dimensions=%d", e.Dimensions())
	}
}
