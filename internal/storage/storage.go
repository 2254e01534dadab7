// Package storage defines persistence for user profiles and the guideline index blobs.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/triage/internal/models"
)

// ErrNotFound is returned when a profile, blob, or index record does not exist.
var ErrNotFound = errors.New("not found")

// ProfileStore is the key-value profile lookup used by the triage pipeline.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	// UpsertProfile stores p and reports whether a new profile was created.
	UpsertProfile(ctx context.Context, p *models.Profile) (created bool, err error)
	CountProfiles(ctx context.Context) (int64, error)
}

// IndexMeta records which blobs compose a named guideline index.
type IndexMeta struct {
	Name          string    `json:"name"`
	IndexBlobID   string    `json:"index_blob_id"`
	RecordsBlobID string    `json:"records_blob_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// BlobStore is the durable store for the serialized guideline index.
type BlobStore interface {
	GetIndexMeta(ctx context.Context, name string) (*IndexMeta, error)
	GetBlob(ctx context.Context, id string) ([]byte, error)
	// PutIndex writes both blobs and the metadata record in one transaction.
	PutIndex(ctx context.Context, meta *IndexMeta, indexBlob, recordsBlob []byte) error
}

// Storage combines profile and blob persistence.
type Storage interface {
	ProfileStore
	BlobStore
	Close() error
}
