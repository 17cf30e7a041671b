package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
	"github.com/akhbar-mr/akhbar-harvester/internal/logger"
)

var base = time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)

func art(link string, lang domain.Language, offset time.Duration) domain.Article {
	return domain.Article{
		ID:          domain.ArticleID(link),
		ProviderID:  "p",
		Title:       "Title " + link,
		Link:        link,
		Source:      "P",
		Language:    lang,
		PublishedAt: base.Add(offset),
	}
}

func openBolt(t *testing.T) *BoltStore {
	t.Helper()
	s, err := OpenBolt(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltUpsertKeepsImage(t *testing.T) {
	s := openBolt(t)
	ctx := context.Background()

	first := art("https://a.mr/1", domain.LanguageFR, 0).WithImage("https://a.mr/img.jpg")
	if _, err := s.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	update := art("https://a.mr/1", domain.LanguageFR, time.Hour)
	update.Title = "Updated"
	stored, err := s.Upsert(ctx, update)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if stored.Title != "Updated" || stored.ImageURL != "https://a.mr/img.jpg" {
		t.Fatalf("stored = %+v", stored)
	}

	replaced, err := s.Upsert(ctx, update.WithImage("https://a.mr/new.jpg"))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if replaced.ImageURL != "https://a.mr/new.jpg" {
		t.Fatalf("image not replaced: %q", replaced.ImageURL)
	}

	list, err := s.Query(ctx, domain.LanguageFR, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("upsert created %d rows, want 1", len(list))
	}
}

func TestBoltQueryFiltersAndOrders(t *testing.T) {
	s := openBolt(t)
	ctx := context.Background()
	for i, a := range []domain.Article{
		art("https://a.mr/old", domain.LanguageFR, 0),
		art("https://a.mr/new", domain.LanguageFR, 2*time.Hour),
		art("https://a.mr/mid", domain.LanguageFR, time.Hour),
		art("https://a.mr/ar", domain.LanguageAR, 3*time.Hour),
	} {
		if _, err := s.Upsert(ctx, a); err != nil {
			t.Fatalf("Upsert %d: %v", i, err)
		}
	}

	list, err := s.Query(ctx, domain.LanguageFR, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(list) != 2 || list[0].Link != "https://a.mr/new" || list[1].Link != "https://a.mr/mid" {
		t.Fatalf("list = %+v", list)
	}

	ar, err := s.Query(ctx, domain.LanguageAR, 0)
	if err != nil || len(ar) != 1 {
		t.Fatalf("ar list = %+v, err %v", ar, err)
	}
}

func TestBoltRejectsMissingLink(t *testing.T) {
	s := openBolt(t)
	if _, err := s.Upsert(context.Background(), domain.Article{Title: "x"}); err == nil {
		t.Fatal("expected error for article without link")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Options{Driver: "mongo"}, nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

type fakeCache struct {
	mu      sync.Mutex
	kv      map[string]string
	sets    map[string]map[string]struct{}
	gets    int
	saddErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{kv: map[string]string{}, sets: map[string]map[string]struct{}{}}
}

func (f *fakeCache) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	v, ok := f.kv[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.kv[key] = string(v)
	default:
		f.kv[key] = fmt.Sprint(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCache) SAdd(_ context.Context, key string, members ...any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saddErr != nil {
		return redis.NewIntResult(0, f.saddErr)
	}
	if f.sets[key] == nil {
		f.sets[key] = map[string]struct{}{}
	}
	for _, m := range members {
		f.sets[key][fmt.Sprint(m)] = struct{}{}
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeCache) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(f.kv[key], 10, 64)
	n++
	f.kv[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func (f *fakeCache) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for m := range f.sets[key] {
		out = append(out, m)
	}
	return redis.NewStringSliceResult(out, nil)
}

func (f *fakeCache) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.kv, k)
		delete(f.sets, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeCache) Ping(context.Context) *redis.StatusCmd { return redis.NewStatusResult("PONG", nil) }
func (f *fakeCache) Close() error { return nil }

type countingStore struct {
	Store
	queries int
}

func (c *countingStore) Query(ctx context.Context, lang domain.Language, limit int) ([]domain.Article, error) {
	c.queries++
	return c.Store.Query(ctx, lang, limit)
}

func TestCachedStoreServesAndInvalidates(t *testing.T) {
	inner := &countingStore{Store: openBolt(t)}
	cache := newFakeCache()
	s := NewCachedStore(context.Background(), inner, cache, time.Minute, nil)
	ctx := context.Background()

	if _, err := s.Upsert(ctx, art("https://a.mr/1", domain.LanguageFR, 0)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	for i := 0; i < 2; i++ {
		list, err := s.Query(ctx, domain.LanguageFR, 50)
		if err != nil || len(list) != 1 {
			t.Fatalf("Query %d: %+v, %v", i, list, err)
		}
	}
	if inner.queries != 1 {
		t.Fatalf("inner queried %d times, want 1", inner.queries)
	}

	if _, err := s.Upsert(ctx, art("https://a.mr/2", domain.LanguageFR, time.Hour)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	list, err := s.Query(ctx, domain.LanguageFR, 50)
	if err != nil || len(list) != 2 || list[0].Link != "https://a.mr/2" {
		t.Fatalf("after invalidation: %+v, %v", list, err)
	}
	if inner.queries != 2 {
		t.Fatalf("inner queried %d times, want 2", inner.queries)
	}
}

func TestCachedStoreSkipsUnindexedList(t *testing.T) {
	inner := &countingStore{Store: openBolt(t)}
	cache := newFakeCache()
	cache.saddErr = errors.New("READONLY")
	core, logs := observer.New(zapcore.DebugLevel)
	s := NewCachedStore(context.Background(), inner, cache, time.Minute, logger.FromZap(zap.New(core)))
	ctx := context.Background()

	if _, err := s.Upsert(ctx, art("https://a.mr/1", domain.LanguageFR, 0)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := s.Query(ctx, domain.LanguageFR, 50); err != nil {
			t.Fatalf("Query: %v", err)
		}
	}
	if inner.queries != 2 {
		t.Fatalf("inner queried %d times, want 2: an unindexed list must not be cached", inner.queries)
	}
	if _, ok := cache.kv[listKey(domain.LanguageFR, 50)]; ok {
		t.Fatal("list cached without an index entry")
	}
	if logs.FilterMessage("cache index write failed").Len() == 0 {
		t.Fatal("index write failure not logged")
	}
}

// racingStore upserts through the cache after reading, as a concurrent ingest would.
type racingStore struct {
	Store
	queries int
	onQuery func()
}

func (r *racingStore) Query(ctx context.Context, lang domain.Language, limit int) ([]domain.Article, error) {
	r.queries++
	list, err := r.Store.Query(ctx, lang, limit)
	if r.onQuery != nil {
		hook := r.onQuery
		r.onQuery = nil
		hook()
	}
	return list, err
}

func TestCachedStoreDropsListRacingUpsert(t *testing.T) {
	inner := &racingStore{Store: openBolt(t)}
	cache := newFakeCache()
	s := NewCachedStore(context.Background(), inner, cache, time.Minute, nil)
	ctx := context.Background()

	if _, err := s.Upsert(ctx, art("https://a.mr/1", domain.LanguageFR, 0)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	inner.onQuery = func() {
		if _, err := s.Upsert(ctx, art("https://a.mr/2", domain.LanguageFR, time.Hour)); err != nil {
			t.Errorf("Upsert: %v", err)
		}
	}

	stale, err := s.Query(ctx, domain.LanguageFR, 50)
	if err != nil || len(stale) != 1 {
		t.Fatalf("first Query: %+v, %v", stale, err)
	}

	list, err := s.Query(ctx, domain.LanguageFR, 50)
	if err != nil || len(list) != 2 || list[0].Link != "https://a.mr/2" {
		t.Fatalf("stale list served after racing upsert: %+v, %v", list, err)
	}
	if inner.queries != 2 {
		t.Fatalf("inner queried %d times, want 2", inner.queries)
	}
}
