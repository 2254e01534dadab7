package guideline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/triage/internal/embedding"
	"github.com/hyperjump/triage/internal/models"
	"github.com/hyperjump/triage/internal/storage"
	"github.com/hyperjump/triage/internal/vector"
)

// DefaultBatchSize is the number of records embedded per provider call.
const DefaultBatchSize = 64

// Builder embeds a guideline corpus and writes it to the blob store as a named index.
type Builder struct {
	blobs     storage.BlobStore
	embedder  embedding.Embedder
	batchSize int
	logger    *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for progress output.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// WithBatchSize sets how many records are embedded per call.
func WithBatchSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// NewBuilder creates a builder with the given dependencies.
func NewBuilder(blobs storage.BlobStore, embedder embedding.Embedder, opts ...BuilderOption) *Builder {
	b := &Builder{
		blobs:     blobs,
		embedder:  embedder,
		batchSize: DefaultBatchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RecordText is the text embedded for a guideline record.
func RecordText(r models.GuidelineRecord) string {
	return strings.TrimSpace(r.Question + "\n" + r.Answer)
}

// Build embeds records in order and stores the index under name. Vector i is the
// embedding of records[i]; nothing is written unless every record embeds.
func (b *Builder) Build(ctx context.Context, name string, records []models.GuidelineRecord) (*storage.IndexMeta, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no guideline records to index")
	}
	idx, err := vector.NewFlatIndex(b.embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	for start := 0; start < len(records); start += b.batchSize {
		end := min(start+b.batchSize, len(records))
		texts := make([]string, 0, end-start)
		for _, r := range records[start:end] {
			texts = append(texts, RecordText(r))
		}
		vectors, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed records %d-%d: %w", start, end-1, err)
		}
		if err := idx.Add(ctx, vectors); err != nil {
			return nil, fmt.Errorf("index records %d-%d: %w", start, end-1, err)
		}
		b.logger.Debug("embedded guideline batch", zap.Int("start", start), zap.Int("end", end))
	}

	indexBlob, err := idx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	recordsBlob, err := EncodeRecords(records)
	if err != nil {
		return nil, err
	}
	meta := &storage.IndexMeta{
		Name:          name,
		IndexBlobID:   uuid.New().String(),
		RecordsBlobID: uuid.New().String(),
	}
	if err := b.blobs.PutIndex(ctx, meta, indexBlob, recordsBlob); err != nil {
		return nil, fmt.Errorf("store index: %w", err)
	}
	b.logger.Info("guideline index built",
		zap.String("index", name),
		zap.Int("records", len(records)),
		zap.Int("index_bytes", len(indexBlob)),
		zap.Int("records_bytes", len(recordsBlob)))
	return meta, nil
}
