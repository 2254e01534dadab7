package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/triage/internal/models"
	"github.com/hyperjump/triage/internal/personal"
	"github.com/hyperjump/triage/internal/storage"
)

// UpdateResult reports the effect of a profile update.
type UpdateResult struct {
	UserID  string `json:"user_id"`
	Created bool   `json:"created"`
	Vectors int    `json:"vectors"`
}

// Service handles profile reads and updates. Each update appends one vector
// to the user's personal index before the profile document is stored.
type Service struct {
	store  storage.ProfileStore
	arena  *personal.Arena
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a profile service.
func NewService(store storage.ProfileStore, arena *personal.Arena, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, arena: arena, logger: logger, now: time.Now}
}

// Get returns the stored profile for userID.
func (s *Service) Get(ctx context.Context, userID string) (*models.Profile, error) {
	return s.store.GetProfile(ctx, userID)
}

// Update stores p, creating the profile if the user is new.
func (s *Service) Update(ctx context.Context, p *models.Profile) (*UpdateResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	if p.LastUpdated == "" {
		p.LastUpdated = now.UTC().Format(time.RFC3339)
	}

	created, err := s.store.UpsertProfile(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("store profile: %w", err)
	}

	// The index only grows for profiles that were stored.
	vectors := 0
	if s.arena != nil {
		n, err := s.arena.Append(ctx, p.UserID, MedicalInfo(p, Age(p, now)))
		if err != nil {
			s.logger.Error("profile stored but personal index not updated",
				zap.String("user_id", p.UserID), zap.Error(err))
			return nil, fmt.Errorf("update personal index: %w", err)
		}
		vectors = n
	}

	s.logger.Info("profile updated",
		zap.String("user_id", p.UserID),
		zap.Bool("created", created),
		zap.Int("vectors", vectors))
	return &UpdateResult{UserID: p.UserID, Created: created, Vectors: vectors}, nil
}

// IsNotFound reports whether err means the user has no profile.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
