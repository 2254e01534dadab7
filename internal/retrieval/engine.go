// Package retrieval finds guideline records relevant to a triage request.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/triage/internal/embedding"
	"github.com/hyperjump/triage/internal/guideline"
	"github.com/hyperjump/triage/internal/models"
)

// NoContext is the prompt context used when no guideline text could be retrieved.
const NoContext = "No guideline context available."

// Result is the outcome of a guideline search. Available is false when the index
// could not be used; Hits is then empty and Context is NoContext.
type Result struct {
	Hits      []models.GuidelineHit
	Context   string
	Available bool
	Err       error
}

// Engine searches the shared guideline index.
type Engine struct {
	cache    *guideline.Cache
	embedder embedding.Embedder
	logger   *zap.Logger
}

// NewEngine creates a retrieval engine over the given cache.
func NewEngine(cache *guideline.Cache, embedder embedding.Embedder, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cache: cache, embedder: embedder, logger: logger}
}

// Search returns up to k guideline records nearest to queryText. It never fails the
// caller: any load, embedding, or search error yields an unavailable Result.
func (e *Engine) Search(ctx context.Context, queryText string, k int) Result {
	hits, err := e.search(ctx, queryText, k)
	if err != nil {
		e.logger.Warn("guideline context unavailable", zap.Error(err))
		return Unavailable(err)
	}
	return Result{Hits: hits, Context: RenderContext(hits), Available: true}
}

// Unavailable returns the degraded Result for err.
func Unavailable(err error) Result {
	return Result{Context: NoContext, Err: err}
}

func (e *Engine) search(ctx context.Context, queryText string, k int) ([]models.GuidelineHit, error) {
	if err := e.cache.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	snap, ok := e.cache.Get()
	if !ok {
		return nil, guideline.ErrUnavailable
	}
	query, err := e.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	neighbors, err := snap.Index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	hits := make([]models.GuidelineHit, 0, len(neighbors))
	for _, n := range neighbors {
		rec, err := snap.Record(n.Position)
		if err != nil {
			e.logger.Debug("skipping guideline neighbor", zap.Int("position", n.Position), zap.Error(err))
			continue
		}
		hits = append(hits, models.GuidelineHit{Position: n.Position, Record: rec, Distance: n.Distance})
	}
	return hits, nil
}

// RenderContext formats hits as prompt context, closest first.
func RenderContext(hits []models.GuidelineHit) string {
	if len(hits) == 0 {
		return NoContext
	}
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Q: %s\nA: %s", strings.TrimSpace(h.Record.Question), strings.TrimSpace(h.Record.Answer))
	}
	return b.String()
}
