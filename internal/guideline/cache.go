// Package guideline holds the shared guideline retrieval index: its blob codec,
// its builder, and the process-wide load-once cache.
package guideline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/triage/internal/models"
	"github.com/hyperjump/triage/internal/storage"
	"github.com/hyperjump/triage/internal/vector"
)

// ErrUnavailable is returned when the shared index cannot be loaded.
var ErrUnavailable = errors.New("guideline index unavailable")

// Snapshot is a loaded index together with its parallel records array.
// Position i of Index resolves to Records[i].
type Snapshot struct {
	Name    string
	Index   *vector.FlatIndex
	Records []models.GuidelineRecord
}

// Record returns the record at position pos.
func (s *Snapshot) Record(pos int) (models.GuidelineRecord, error) {
	if pos < 0 || pos >= len(s.Records) {
		return models.GuidelineRecord{}, fmt.Errorf("record position %d out of range (have %d)", pos, len(s.Records))
	}
	return s.Records[pos], nil
}

// Cache loads the shared guideline index from the blob store on first use and keeps it
// for the life of the process. Concurrent first loads collapse into one fetch; a failed
// load leaves the cache empty so the next call retries the full load. There is no
// invalidation: a rebuilt index is picked up on restart.
type Cache struct {
	blobs  storage.BlobStore
	name   string
	logger *zap.Logger

	snapshot atomic.Pointer[Snapshot]
	group    singleflight.Group
	onLoad   func(err error)
}

// NewCache creates an empty cache for the named index.
func NewCache(blobs storage.BlobStore, name string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{blobs: blobs, name: name, logger: logger}
}

// OnLoad registers fn to be called after every load attempt. Call before first use.
func (c *Cache) OnLoad(fn func(err error)) {
	c.onLoad = fn
}

// EnsureLoaded loads the index if it is not loaded yet. It is a no-op once ready.
func (c *Cache) EnsureLoaded(ctx context.Context) error {
	if c.snapshot.Load() != nil {
		return nil
	}
	_, err, _ := c.group.Do(c.name, func() (any, error) {
		if c.snapshot.Load() != nil {
			return nil, nil
		}
		// Detach from the caller so one cancelled request does not fail the shared load.
		snap, err := c.load(context.WithoutCancel(ctx))
		if c.onLoad != nil {
			c.onLoad(err)
		}
		if err != nil {
			return nil, err
		}
		c.snapshot.Store(snap)
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Get returns the loaded snapshot, or false if the cache is not ready.
func (c *Cache) Get() (*Snapshot, bool) {
	snap := c.snapshot.Load()
	return snap, snap != nil
}

// Status reports the cache state without triggering a load.
func (c *Cache) Status() models.IndexStatus {
	st := models.IndexStatus{Name: c.name}
	if snap, ok := c.Get(); ok {
		st.Ready = true
		st.Records = len(snap.Records)
		st.Vectors = snap.Index.Size()
		st.Dimensions = snap.Index.Dimensions()
	}
	return st
}

func (c *Cache) load(ctx context.Context) (*Snapshot, error) {
	meta, err := c.blobs.GetIndexMeta(ctx, c.name)
	if err != nil {
		return nil, err
	}
	indexBlob, err := c.blobs.GetBlob(ctx, meta.IndexBlobID)
	if err != nil {
		return nil, fmt.Errorf("fetch index blob: %w", err)
	}
	recordsBlob, err := c.blobs.GetBlob(ctx, meta.RecordsBlobID)
	if err != nil {
		return nil, fmt.Errorf("fetch records blob: %w", err)
	}
	idx, err := vector.Decode(indexBlob)
	if err != nil {
		return nil, fmt.Errorf("decode index blob: %w", err)
	}
	records, err := DecodeRecords(recordsBlob)
	if err != nil {
		return nil, err
	}
	if idx.Size() != len(records) {
		c.logger.Warn("guideline index and records differ in length",
			zap.String("index", c.name),
			zap.Int("vectors", idx.Size()),
			zap.Int("records", len(records)))
	}
	c.logger.Info("guideline index loaded",
		zap.String("index", c.name),
		zap.Int("vectors", idx.Size()),
		zap.Int("records", len(records)),
		zap.Int("dimensions", idx.Dimensions()))
	return &Snapshot{Name: c.name, Index: idx, Records: records}, nil
}
