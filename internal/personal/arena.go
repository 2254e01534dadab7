// Package personal maintains one append-only profile index per user on disk.
package personal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/triage/internal/embedding"
	"github.com/hyperjump/triage/internal/vector"
)

// Arena addresses per-user indexes by user ID. Every Append is a read-modify-write of the
// user's file under that user's lock, and the file is rewritten before Append returns.
type Arena struct {
	dir      string
	embedder embedding.Embedder
	locks    *keyedMutex
	logger   *zap.Logger
}

// NewArena creates an arena storing index files in dir.
func NewArena(dir string, embedder embedding.Embedder, logger *zap.Logger) (*Arena, error) {
	if dir == "" {
		return nil, fmt.Errorf("personal index directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create personal index dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Arena{dir: dir, embedder: embedder, locks: newKeyedMutex(), logger: logger}, nil
}

// Path returns the index file path for userID.
func (a *Arena) Path(userID string) string {
	return filepath.Join(a.dir, IndexFileName(userID))
}

// key is the normalized user ID shared by the lock and the file name.
func key(userID string) string {
	return strings.TrimSpace(userID)
}

// Append embeds text and adds exactly one vector to the user's index, returning the new size.
func (a *Arena) Append(ctx context.Context, userID, text string) (int, error) {
	userID = key(userID)
	if userID == "" {
		return 0, fmt.Errorf("user id is required")
	}
	// Embed outside the lock; only the file update needs serializing.
	vec, err := a.embedder.Embed(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("embed profile: %w", err)
	}

	unlock := a.locks.Lock(userID)
	defer unlock()

	path := a.Path(userID)
	idx, err := a.open(path)
	if err != nil {
		return 0, err
	}
	if err := idx.Add(ctx, [][]float32{vec}); err != nil {
		return 0, fmt.Errorf("append profile vector: %w", err)
	}
	if err := idx.Save(path); err != nil {
		return 0, fmt.Errorf("save personal index: %w", err)
	}
	a.logger.Debug("personal index updated",
		zap.String("user_id", userID),
		zap.String("file", filepath.Base(path)),
		zap.Int("vectors", idx.Size()))
	return idx.Size(), nil
}

// Size returns the number of vectors in the user's index, 0 if it does not exist.
func (a *Arena) Size(userID string) (int, error) {
	userID = key(userID)
	unlock := a.locks.Lock(userID)
	defer unlock()
	idx, err := vector.Load(a.Path(userID))
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return idx.Size(), nil
}

func (a *Arena) open(path string) (*vector.FlatIndex, error) {
	idx, err := vector.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return vector.NewFlatIndex(a.embedder.Dimensions())
	}
	if err != nil {
		return nil, fmt.Errorf("load personal index: %w", err)
	}
	if idx.Dimensions() != a.embedder.Dimensions() {
		return nil, fmt.Errorf("personal index dimension %d does not match embedder dimension %d",
			idx.Dimensions(), a.embedder.Dimensions())
	}
	return idx, nil
}
