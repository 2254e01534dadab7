package embedding

import (
	"context"
	"math"
	"testing"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(8)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "shortness of breath")
	b, _ := e.Embed(ctx, "shortness of breath")
	c, _ := e.Embed(ctx, "sprained ankle")
	if len(a) != 8 {
		t.Fatalf("expected 8 dims, got %d", len(a))
	}
	same := true
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text produced different vectors")
		}
		if a[i] != c[i] {
			same = false
		}
	}
	if same {
		t.Error("different texts produced identical vectors")
	}
	var norm float64
	for _, v := range a {
		norm += float64(v * v)
	}
	if math.Abs(norm-1) > 1e-4 {
		t.Errorf("expected unit norm, got %v", norm)
	}
}

func TestNewHashEmbedder_DefaultDimensions(t *testing.T) {
	if d := NewHashEmbedder(0).Dimensions(); d != 384 {
		t.Errorf("expected 384, got %d", d)
	}
}
