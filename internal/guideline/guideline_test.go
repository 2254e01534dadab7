package guideline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/triage/internal/embedding"
	"github.com/hyperjump/triage/internal/models"
	"github.com/hyperjump/triage/internal/storage"
)

func sampleRecords() []models.GuidelineRecord {
	return []models.GuidelineRecord{
		{Question: "What is first aid for a burn?", Answer: "Cool the burn under running water for 20 minutes."},
		{Question: "How to treat an asthma attack?", Answer: "Sit upright and use a reliever inhaler."},
		{Question: "Signs of stroke?", Answer: "Face drooping, arm weakness, speech difficulty: call an ambulance."},
	}
}

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "triage.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordsCodec(t *testing.T) {
	data, err := EncodeRecords(sampleRecords())
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeRecords(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[2].Question != "Signs of stroke?" {
		t.Errorf("got %+v", got)
	}
	if _, err := DecodeRecords([]byte("not gzip")); err == nil {
		t.Error("expected error for non-gzip data")
	}
}

func TestBuildThenLoad_PreservesPositions(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	emb := embedding.NewHashEmbedder(8)
	records := sampleRecords()

	b := NewBuilder(store, emb, WithBatchSize(2))
	meta, err := b.Build(ctx, "pubmed_index", records)
	if err != nil {
		t.Fatal(err)
	}
	if meta.IndexBlobID == "" || meta.RecordsBlobID == "" {
		t.Fatalf("blob ids not set: %+v", meta)
	}

	cache := NewCache(store, "pubmed_index", nil)
	if err := cache.EnsureLoaded(ctx); err != nil {
		t.Fatal(err)
	}
	snap, ok := cache.Get()
	if !ok {
		t.Fatal("cache should be ready")
	}
	for i, rec := range records {
		q, _ := emb.Embed(ctx, RecordText(rec))
		hits, err := snap.Index.Search(ctx, q, 1)
		if err != nil {
			t.Fatal(err)
		}
		if hits[0].Position != i {
			t.Errorf("record %d resolved to position %d", i, hits[0].Position)
		}
		got, err := snap.Record(hits[0].Position)
		if err != nil {
			t.Fatal(err)
		}
		if got != rec {
			t.Errorf("position %d: got %+v, want %+v", i, got, rec)
		}
	}
	st := cache.Status()
	if !st.Ready || st.Records != 3 || st.Vectors != 3 || st.Dimensions != 8 {
		t.Errorf("status: %+v", st)
	}
}

func TestBuild_Empty(t *testing.T) {
	b := NewBuilder(newStore(t), embedding.NewHashEmbedder(4))
	if _, err := b.Build(context.Background(), "x", nil); err == nil {
		t.Error("expected error for empty corpus")
	}
}

func TestCache_MissingBlobsLeavesCacheEmpty(t *testing.T) {
	cache := NewCache(newStore(t), "pubmed_index", nil)
	err := cache.EnsureLoaded(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("cause should be ErrNotFound, got %v", err)
	}
	if _, ok := cache.Get(); ok {
		t.Error("cache must stay empty after failed load")
	}
	if cache.Status().Ready {
		t.Error("status should not be ready")
	}
}

func TestCache_OnLoadReportsEachAttempt(t *testing.T) {
	var attempts []error
	cache := NewCache(newStore(t), "pubmed_index", nil)
	cache.OnLoad(func(err error) { attempts = append(attempts, err) })
	_ = cache.EnsureLoaded(context.Background())
	_ = cache.EnsureLoaded(context.Background())
	if len(attempts) != 2 {
		t.Fatalf("expected two failed attempts, got %d", len(attempts))
	}
	for _, err := range attempts {
		if err == nil {
			t.Error("attempt against empty store should fail")
		}
	}
}

// flakyBlobs serves a corrupt records blob until fixed, then the real one.
type flakyBlobs struct {
	storage.BlobStore
	mu       sync.Mutex
	corrupt  bool
	recordID string
	fetches  int
}

func (f *flakyBlobs) GetBlob(ctx context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	f.fetches++
	corrupt := f.corrupt && id == f.recordID
	f.mu.Unlock()
	if corrupt {
		return []byte("garbage"), nil
	}
	return f.BlobStore.GetBlob(ctx, id)
}

func TestCache_PartialLoadFailureRetriesFullLoad(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	meta, err := NewBuilder(store, embedding.NewHashEmbedder(4)).Build(ctx, "pubmed_index", sampleRecords())
	if err != nil {
		t.Fatal(err)
	}
	blobs := &flakyBlobs{BlobStore: store, corrupt: true, recordID: meta.RecordsBlobID}
	cache := NewCache(blobs, "pubmed_index", nil)

	if err := cache.EnsureLoaded(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, ok := cache.Get(); ok {
		t.Fatal("decoded index must not be cached without its records")
	}

	blobs.mu.Lock()
	blobs.corrupt = false
	blobs.fetches = 0
	blobs.mu.Unlock()
	if err := cache.EnsureLoaded(ctx); err != nil {
		t.Fatal(err)
	}
	if blobs.fetches != 2 {
		t.Errorf("retry should refetch both blobs, got %d fetches", blobs.fetches)
	}

	// Ready: further calls do not touch the store.
	if err := cache.EnsureLoaded(ctx); err != nil {
		t.Fatal(err)
	}
	if blobs.fetches != 2 {
		t.Errorf("ready cache should not refetch, got %d fetches", blobs.fetches)
	}
}

func TestCache_ConcurrentFirstLoad(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	if _, err := NewBuilder(store, embedding.NewHashEmbedder(4)).Build(ctx, "pubmed_index", sampleRecords()); err != nil {
		t.Fatal(err)
	}
	cache := NewCache(store, "pubmed_index", nil)
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- cache.EnsureLoaded(ctx)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	if _, ok := cache.Get(); !ok {
		t.Error("cache should be ready")
	}
}

func TestSnapshot_RecordOutOfRange(t *testing.T) {
	snap := &Snapshot{Records: sampleRecords()}
	if _, err := snap.Record(3); err == nil {
		t.Error("expected out of range error")
	}
	if _, err := snap.Record(-1); err == nil {
		t.Error("expected out of range error")
	}
}

func TestReadRecords(t *testing.T) {
	arr := `[{"question":"q1","answer":"a1"},{"question":"q2","answer":"a2"}]`
	got, err := ReadRecords(strings.NewReader("  \n" + arr))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Answer != "a2" {
		t.Errorf("array: got %+v", got)
	}

	lines := "{\"question\":\"q1\",\"answer\":\"a1\"}\n\n{\"question\":\"q2\",\"answer\":\"a2\"}\n"
	got, err = ReadRecords(strings.NewReader(lines))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Question != "q1" {
		t.Errorf("jsonl: got %+v", got)
	}

	if _, err := ReadRecords(strings.NewReader("")); err == nil {
		t.Error("expected error for empty input")
	}
	if _, err := ReadRecords(strings.NewReader(`{"question":"","answer":""}`)); err == nil {
		t.Error("expected error for empty record")
	}
	if _, err := ReadRecords(strings.NewReader("{bad json}\n")); err == nil {
		t.Error("expected parse error")
	}
}
