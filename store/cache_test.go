package store

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"pyq-server/db"
	"pyq-server/models"
)

// countingStore counts the List calls that reach the backend.
type countingStore struct {
	Store
	lists atomic.Int32
}

func (c *countingStore) List(ctx context.Context, f models.PaperFilter) ([]models.PaperSummary, error) {
	c.lists.Add(1)
	return c.Store.List(ctx, f)
}

func newCachedStore(t *testing.T, ttl time.Duration) (*CachedStore, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := db.InitRedis(mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("InitRedis: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	inner := &countingStore{Store: NewMemoryStore()}
	return NewCachedStore(inner, rdb, ttl), inner, mr
}

func TestCachedStoreServesRepeatListsFromRedis(t *testing.T) {
	ctx := context.Background()
	s, inner, mr := newCachedStore(t, time.Minute)
	mustCreate(t, s, samplePaper("GS", models.ExamUPSC, 2023, true, time.Now()))

	for i := 0; i < 3; i++ {
		list, err := s.List(ctx, models.PaperFilter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(list) != 1 || list[0].Title != "GS" {
			t.Fatalf("list = %+v", list)
		}
	}
	if n := inner.lists.Load(); n != 1 {
		t.Errorf("backend listed %d times, want 1", n)
	}

	key := ListCacheKey(1, models.PaperFilter{})
	if !mr.Exists(key) {
		t.Fatalf("listing not cached under %s; keys = %v", key, mr.Keys())
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Errorf("ttl = %v, want 1m", ttl)
	}

	if _, err := s.List(ctx, models.PaperFilter{Exam: models.ExamBPSC}); err != nil {
		t.Fatal(err)
	}
	if n := inner.lists.Load(); n != 2 {
		t.Errorf("a different filter must miss the cache, backend listed %d times", n)
	}
}

func TestCachedStoreWritesBumpGeneration(t *testing.T) {
	ctx := context.Background()
	s, inner, mr := newCachedStore(t, time.Minute)
	first := mustCreate(t, s, samplePaper("First", models.ExamUPSC, 2023, true, time.Now()))
	if gen, _ := mr.Get(cacheGenerationKey); gen != "1" {
		t.Fatalf("generation after create = %q, want 1", gen)
	}
	if _, err := s.List(ctx, models.PaperFilter{}); err != nil {
		t.Fatal(err)
	}

	mustCreate(t, s, samplePaper("Second", models.ExamUPSC, 2022, true, time.Now()))
	list, err := s.List(ctx, models.PaperFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("stale listing served after create: %d papers", len(list))
	}

	edited, _ := s.Get(ctx, first.ID)
	edited.Title = "First renamed"
	if _, err := s.Replace(ctx, edited); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	list, _ = s.List(ctx, models.PaperFilter{})
	if list[0].Title != "First renamed" {
		t.Errorf("stale listing served after replace: %q", list[0].Title)
	}

	if err := s.Delete(ctx, first.ID); err != nil {
		t.Fatal(err)
	}
	list, _ = s.List(ctx, models.PaperFilter{})
	if len(list) != 1 {
		t.Errorf("stale listing served after delete: %d papers", len(list))
	}
	if gen, _ := mr.Get(cacheGenerationKey); gen != "4" {
		t.Errorf("generation = %q, want 4", gen)
	}
	if n := inner.lists.Load(); n != 4 {
		t.Errorf("backend listed %d times, want one per generation", n)
	}
}

func TestCachedStoreCountersDoNotInvalidate(t *testing.T) {
	ctx := context.Background()
	s, inner, mr := newCachedStore(t, time.Minute)
	p := mustCreate(t, s, samplePaper("GS", models.ExamUPSC, 2023, true, time.Now()))
	if _, err := s.List(ctx, models.PaperFilter{}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.RecordView(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordAttempt(ctx, p.ID, 50); err != nil {
		t.Fatal(err)
	}
	list, _ := s.List(ctx, models.PaperFilter{})
	if list[0].Views != 0 || inner.lists.Load() != 1 {
		t.Errorf("counters should lag until expiry: views=%d lists=%d", list[0].Views, inner.lists.Load())
	}

	mr.FastForward(time.Minute)
	list, _ = s.List(ctx, models.PaperFilter{})
	if list[0].Views != 1 || list[0].Attempts != 1 {
		t.Errorf("expired entry not refreshed: %+v", list[0])
	}
}

func TestCachedStoreDiscardsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	s, inner, mr := newCachedStore(t, time.Minute)
	mustCreate(t, s, samplePaper("GS", models.ExamUPSC, 2023, true, time.Now()))
	if err := mr.Set(ListCacheKey(1, models.PaperFilter{}), "{not json"); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx, models.PaperFilter{})
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %v, %v", list, err)
	}
	if inner.lists.Load() != 1 {
		t.Error("corrupt entry was not bypassed")
	}
}

func TestCachedStoreFallsThroughWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	s, inner, mr := newCachedStore(t, time.Minute)
	mustCreate(t, s, samplePaper("GS", models.ExamUPSC, 2023, true, time.Now()))
	mr.Close()

	list, err := s.List(ctx, models.PaperFilter{})
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %v, %v", list, err)
	}
	if inner.lists.Load() != 1 {
		t.Errorf("backend listed %d times, want 1", inner.lists.Load())
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping = %v, the backend is still healthy", err)
	}
}
