package profile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/triage/internal/embedding"
	"github.com/hyperjump/triage/internal/models"
	"github.com/hyperjump/triage/internal/personal"
	"github.com/hyperjump/triage/internal/storage"
)

type failingStore struct {
	storage.ProfileStore
}

func (failingStore) UpsertProfile(ctx context.Context, p *models.Profile) (bool, error) {
	return false, errors.New("disk full")
}

func newArena(t *testing.T) *personal.Arena {
	t.Helper()
	arena, err := personal.NewArena(filepath.Join(t.TempDir(), "personal"), embedding.NewHashEmbedder(8), nil)
	if err != nil {
		t.Fatal(err)
	}
	return arena
}

func newService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "triage.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	arena, err := personal.NewArena(filepath.Join(dir, "personal"), embedding.NewHashEmbedder(8), nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewService(store, arena, nil)
}

func TestService_UpdateCreatesThenAppends(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	p := sampleProfile()

	res, err := svc.Update(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Created || res.Vectors != 1 {
		t.Errorf("first update: %+v", res)
	}
	if p.LastUpdated == "" {
		t.Error("last_updated should be stamped")
	}

	p.BloodType = "AB+"
	res, err = svc.Update(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if res.Created || res.Vectors != 2 {
		t.Errorf("second update: %+v", res)
	}

	got, err := svc.Get(ctx, p.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if got.BloodType != "AB+" {
		t.Errorf("blood type = %q", got.BloodType)
	}
}

func TestService_GetUnknown(t *testing.T) {
	svc := newService(t)
	_, err := svc.Get(context.Background(), "nobody")
	if !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_UpdateRequiresUserID(t *testing.T) {
	svc := newService(t)
	if _, err := svc.Update(context.Background(), &models.Profile{Name: "x"}); err == nil {
		t.Error("expected validation error")
	}
}

func TestService_FailedStoreLeavesIndexUntouched(t *testing.T) {
	arena := newArena(t)
	svc := NewService(failingStore{}, arena, nil)
	p := sampleProfile()
	if _, err := svc.Update(context.Background(), p); err == nil {
		t.Fatal("expected store error")
	}
	n, err := arena.Size(p.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("index grew without a stored profile: %d vectors", n)
	}
}
