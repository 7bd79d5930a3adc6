package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeUpstream scripts upstream behavior per call.
type fakeUpstream struct {
	mu          sync.Mutex
	searchCalls []string
	rangeCalls  [][2]string

	searchFn func(keyword string) ([]map[string]any, error)
	rangeFn  func(from, to string) ([]map[string]any, error)
}

func (f *fakeUpstream) Search(_ context.Context, keyword string) ([]map[string]any, error) {
	f.mu.Lock()
	f.searchCalls = append(f.searchCalls, keyword)
	f.mu.Unlock()
	if f.searchFn == nil {
		return nil, nil
	}
	return f.searchFn(keyword)
}

func (f *fakeUpstream) Range(_ context.Context, from, to string) ([]map[string]any, error) {
	f.mu.Lock()
	f.rangeCalls = append(f.rangeCalls, [2]string{from, to})
	f.mu.Unlock()
	if f.rangeFn == nil {
		return nil, nil
	}
	return f.rangeFn(from, to)
}

func record(code, description, rateText string) map[string]any {
	return map[string]any{"htsno": code, "description": description, "general": rateText}
}

func newTestEngine(up Upstream) *Engine {
	return NewEngine(up, Config{CacheCapacity: 16, DefaultLimit: 10}, nil)
}

func TestSearchRanksAndReturnsMeta(t *testing.T) {
	up := &fakeUpstream{
		searchFn: func(string) ([]map[string]any, error) {
			return []map[string]any{
				record("6404112030", "Sports footwear", "5%"),
				record("6404110000", "Footwear NESOI", "7.5%"),
			}, nil
		},
	}
	engine := newTestEngine(up)

	res, err := engine.Search(context.Background(), "sports footwear", Options{FuzzyEdits: 1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.TotalFound != 2 {
		t.Errorf("TotalFound = %d, want 2", res.Meta.TotalFound)
	}
	if res.Meta.Degraded || res.Meta.UsedCache {
		t.Errorf("fresh search flagged degraded/cached: %+v", res.Meta)
	}
	if res.Items[0].Code10 != "6404112030" {
		t.Errorf("top item = %s, want the exact ten-digit match first", res.Items[0].Code10)
	}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	engine := newTestEngine(&fakeUpstream{})
	if _, err := engine.Search(context.Background(), "  ", Options{}); err == nil {
		t.Fatal("expected input error")
	}
}

func TestSearchDeduplicatesByCodeAndDescription(t *testing.T) {
	up := &fakeUpstream{
		searchFn: func(string) ([]map[string]any, error) {
			return []map[string]any{
				record("6404112030", "Sports footwear", "5%"),
				record("6404112030", "SPORTS FOOTWEAR", "5%"),
				record("6404112030", "Sports footwear, other", "5%"),
			}, nil
		},
	}
	engine := newTestEngine(up)

	res, err := engine.Search(context.Background(), "sports footwear", Options{})
	if err != nil {
		t.Fatal(err)
	}
	// Case-folded duplicate collapses; the distinct description stays.
	if res.Meta.TotalFound != 2 {
		t.Errorf("TotalFound = %d, want 2 after dedup", res.Meta.TotalFound)
	}
	if len(res.Items) != 2 {
		t.Errorf("items = %d, want 2", len(res.Items))
	}
}

func TestSearchFansOutPerExpansion(t *testing.T) {
	up := &fakeUpstream{
		searchFn: func(string) ([]map[string]any, error) {
			return []map[string]any{record("8471300100", "Portable computers", "Free")}, nil
		},
	}
	engine := newTestEngine(up)

	if _, err := engine.Search(context.Background(), "laptop", Options{}); err != nil {
		t.Fatal(err)
	}

	up.mu.Lock()
	defer up.mu.Unlock()
	if len(up.searchCalls) < 3 {
		t.Errorf("searchCalls = %v, want one call per synonym expansion", up.searchCalls)
	}
	if up.searchCalls[0] != "laptop" && !contains(up.searchCalls, "laptop") {
		t.Errorf("expansions %v missing the original term", up.searchCalls)
	}
}

func contains(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}

func TestSearchPartialFailureIsWarningNotError(t *testing.T) {
	up := &fakeUpstream{
		searchFn: func(keyword string) ([]map[string]any, error) {
			if keyword != "laptop" {
				return nil, fmt.Errorf("boom")
			}
			return []map[string]any{record("8471300100", "Portable computers", "Free")}, nil
		},
	}
	engine := newTestEngine(up)

	res, err := engine.Search(context.Background(), "laptop", Options{})
	if err != nil {
		t.Fatalf("partial failure must not fail the search: %v", err)
	}
	if len(res.Meta.Warnings) == 0 {
		t.Error("failed expansion variants should surface as warnings")
	}
	if res.Meta.TotalFound != 1 {
		t.Errorf("TotalFound = %d, want 1", res.Meta.TotalFound)
	}
}

func TestSearchNumericFastPath(t *testing.T) {
	up := &fakeUpstream{
		rangeFn: func(from, to string) ([]map[string]any, error) {
			return []map[string]any{record("6404112030", "Sports footwear", "5%")}, nil
		},
	}
	engine := newTestEngine(up)

	res, err := engine.Search(context.Background(), "6404.11", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.TotalFound != 1 {
		t.Errorf("TotalFound = %d, want 1 from the range endpoint", res.Meta.TotalFound)
	}

	up.mu.Lock()
	defer up.mu.Unlock()
	if len(up.rangeCalls) != 1 {
		t.Fatalf("rangeCalls = %v, want exactly one", up.rangeCalls)
	}
	if up.rangeCalls[0] != [2]string{"6404110000", "6404119999"} {
		t.Errorf("range bounds = %v", up.rangeCalls[0])
	}
}

func TestSearchNumericFastPathFailureTolerated(t *testing.T) {
	up := &fakeUpstream{
		searchFn: func(string) ([]map[string]any, error) {
			return []map[string]any{record("6404112030", "Sports footwear 640411", "5%")}, nil
		},
		rangeFn: func(string, string) ([]map[string]any, error) {
			return nil, fmt.Errorf("range endpoint down")
		},
	}
	engine := newTestEngine(up)

	res, err := engine.Search(context.Background(), "640411", Options{})
	if err != nil {
		t.Fatalf("numeric fast-path failure must be non-fatal: %v", err)
	}
	if len(res.Meta.Warnings) == 0 {
		t.Error("numeric fast-path failure should be recorded as a warning")
	}
}

func TestSearchFilters(t *testing.T) {
	up := &fakeUpstream{
		searchFn: func(string) ([]map[string]any, error) {
			return []map[string]any{
				record("6404112030", "Sports footwear", "5%"),
				record("640411", "Sports footwear heading", "5%"),
				record("9506910030", "Sports equipment", "Free"),
			}, nil
		},
	}
	engine := newTestEngine(up)

	res, err := engine.Search(context.Background(), "sports", Options{TenDigitOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, item := range res.Items {
		if !item.IsTenDigit {
			t.Errorf("TenDigitOnly leaked %s", item.Code10)
		}
	}

	res, err = engine.Search(context.Background(), "sports", Options{Chapter: "95"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.TotalFound != 1 || res.Items[0].Chapter() != "95" {
		t.Errorf("chapter filter result = %+v", res.Items)
	}
}

func TestSearchPaginationSharesCacheEntry(t *testing.T) {
	var calls int
	up := &fakeUpstream{}
	up.searchFn = func(string) ([]map[string]any, error) {
		calls++
		var recs []map[string]any
		for i := 0; i < 30; i++ {
			recs = append(recs, record(fmt.Sprintf("64041120%02d", i), fmt.Sprintf("Sports footwear style %d", i), "5%"))
		}
		return recs, nil
	}
	engine := newTestEngine(up)

	page1, err := engine.Search(context.Background(), "sports footwear", Options{Limit: 5, Offset: 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(page1.Items) != 5 || page1.Meta.TotalFound != 30 {
		t.Errorf("page1: %d items, total %d", len(page1.Items), page1.Meta.TotalFound)
	}

	page2, err := engine.Search(context.Background(), "sports footwear", Options{Limit: 5, Offset: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(page2.Items) != 5 {
		t.Errorf("page2: %d items", len(page2.Items))
	}
	if page1.Items[0].Code10 == page2.Items[0].Code10 {
		t.Error("pages overlap")
	}
}

func TestSearchDegradedFallback(t *testing.T) {
	healthy := true
	up := &fakeUpstream{}
	up.searchFn = func(string) ([]map[string]any, error) {
		if !healthy {
			return nil, fmt.Errorf("connection reset")
		}
		return []map[string]any{record("6404112030", "Sports footwear", "5%")}, nil
	}
	engine := newTestEngine(up)
	opts := Options{FuzzyEdits: 1}

	first, err := engine.Search(context.Background(), "sports footwear", opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.Meta.Degraded {
		t.Fatal("first search should be live")
	}

	healthy = false
	start := time.Now()
	second, err := engine.Search(context.Background(), "sports footwear", opts)
	if err != nil {
		t.Fatalf("cached fallback expected, got error: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("degraded fallback took too long")
	}
	if !second.Meta.Degraded || !second.Meta.UsedCache {
		t.Errorf("meta = %+v, want degraded cached result", second.Meta)
	}
	if len(second.Items) != 1 || second.Items[0].Code10 != first.Items[0].Code10 {
		t.Errorf("cached items not intact: %+v", second.Items)
	}
	if len(second.Meta.Warnings) == 0 {
		t.Error("degraded result should carry warnings")
	}
}

func TestSearchTotalFailureWithoutCacheIsError(t *testing.T) {
	up := &fakeUpstream{
		searchFn: func(string) ([]map[string]any, error) {
			return nil, fmt.Errorf("connection reset")
		},
	}
	engine := newTestEngine(up)

	_, err := engine.Search(context.Background(), "sports footwear", Options{})
	if err == nil {
		t.Fatal("total failure with no cache must surface an error")
	}
	if !strings.Contains(err.Error(), "sports footwear") {
		t.Errorf("error should name the query: %v", err)
	}
}

func TestSearchNoMatchesWithoutCacheIsError(t *testing.T) {
	// Every task succeeds but finds nothing; no cache exists either.
	engine := newTestEngine(&fakeUpstream{})

	_, err := engine.Search(context.Background(), "sports footwear", Options{})
	if err == nil {
		t.Fatal("empty result set with no cache must surface an error")
	}
	if !strings.Contains(err.Error(), "no matching tariff lines") {
		t.Errorf("error should explain the empty result set: %v", err)
	}
	if strings.HasSuffix(strings.TrimSpace(err.Error()), ":") {
		t.Errorf("error carries an empty cause: %q", err.Error())
	}
}

// memorySnapshots is an in-memory SnapshotStore fake.
type memorySnapshots struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (s *memorySnapshots) Put(key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string][]byte)
	}
	s.m[key] = append([]byte(nil), payload...)
	return nil
}

func (s *memorySnapshots) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.m[key]
	return payload, ok, nil
}

func TestSearchDegradedFromSnapshotStore(t *testing.T) {
	store := &memorySnapshots{}
	healthy := true
	up := &fakeUpstream{}
	up.searchFn = func(string) ([]map[string]any, error) {
		if !healthy {
			return nil, fmt.Errorf("down")
		}
		return []map[string]any{record("6404112030", "Sports footwear", "5%")}, nil
	}

	warm := NewEngine(up, Config{CacheCapacity: 4, DefaultLimit: 10, Snapshots: store}, nil)
	if _, err := warm.Search(context.Background(), "sports footwear", Options{}); err != nil {
		t.Fatal(err)
	}

	// Fresh engine: empty memory cache, same durable store.
	healthy = false
	cold := NewEngine(up, Config{CacheCapacity: 4, DefaultLimit: 10, Snapshots: store}, nil)
	res, err := cold.Search(context.Background(), "sports footwear", Options{})
	if err != nil {
		t.Fatalf("snapshot fallback expected: %v", err)
	}
	if !res.Meta.Degraded {
		t.Error("snapshot-served result should be flagged degraded")
	}
	if len(res.Items) != 1 {
		t.Errorf("items = %d, want the persisted result", len(res.Items))
	}
}

func TestSearchAliasSourceContributes(t *testing.T) {
	up := &fakeUpstream{}
	aliasSrc := aliasFunc(func(_ context.Context, terms []string) ([]map[string]any, error) {
		return []map[string]any{record("4202210000", "Handbags with outer surface of leather", "8%")}, nil
	})
	engine := NewEngine(up, Config{CacheCapacity: 4, DefaultLimit: 10, Alias: aliasSrc}, nil)

	res, err := engine.Search(context.Background(), "handbag", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.TotalFound != 1 {
		t.Errorf("TotalFound = %d, want the alias candidate", res.Meta.TotalFound)
	}
}

type aliasFunc func(ctx context.Context, terms []string) ([]map[string]any, error)

func (f aliasFunc) Candidates(ctx context.Context, terms []string) ([]map[string]any, error) {
	return f(ctx, terms)
}

func TestGetByCode(t *testing.T) {
	up := &fakeUpstream{
		rangeFn: func(from, to string) ([]map[string]any, error) {
			return []map[string]any{
				record("6404112030", "Sports footwear, b", "5%"),
				record("6404112010", "Sports footwear, a", "5%"),
			}, nil
		},
	}
	engine := newTestEngine(up)

	items, err := engine.GetByCode(context.Background(), "6404.11.20", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].Code10 > items[1].Code10 {
		t.Error("GetByCode results should sort by code ascending")
	}

	if _, err := engine.GetByCode(context.Background(), "64", Options{}); err == nil {
		t.Error("short code should be rejected")
	}
}

func TestCacheKeyExcludesPagination(t *testing.T) {
	a := cacheKey("Sports Footwear", Options{Limit: 5, Offset: 0, FuzzyEdits: 1})
	b := cacheKey("sports footwear", Options{Limit: 50, Offset: 25, FuzzyEdits: 1})
	if a != b {
		t.Errorf("pagination leaked into cache identity: %q vs %q", a, b)
	}

	c := cacheKey("sports footwear", Options{TenDigitOnly: true, FuzzyEdits: 1})
	if a == c {
		t.Error("result-identity options must participate in the cache key")
	}
}
