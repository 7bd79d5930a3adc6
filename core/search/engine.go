// Package search composes query expansion, upstream fan-out, normalization,
// ranking and caching into the public tariff resolution entry point.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"tariff-engine/core/query"
	"tariff-engine/core/rank"
	"tariff-engine/core/tariff"
	"tariff-engine/internal/cache"
	"tariff-engine/internal/errors"
)

// Upstream is the tariff schedule API surface the engine consumes.
type Upstream interface {
	Search(ctx context.Context, keyword string) ([]map[string]any, error)
	Range(ctx context.Context, from, to string) ([]map[string]any, error)
}

// CandidateSource contributes extra ranked-candidate raw records, for
// example from a curated keyword-alias table.
type CandidateSource interface {
	Candidates(ctx context.Context, terms []string) ([]map[string]any, error)
}

// SnapshotStore persists last-good results beneath the in-memory cache.
type SnapshotStore interface {
	Put(key string, payload []byte) error
	Get(key string) ([]byte, bool, error)
}

// Options controls one search. Limit and Offset are pagination only and do
// not participate in cache identity.
type Options struct {
	// Limit is the page size; 0 means the engine default
	Limit int

	// Offset is the page start
	Offset int

	// TenDigitOnly keeps only fully specific ten-digit lines
	TenDigitOnly bool

	// Chapter, when set, keeps only lines in that two-digit chapter
	Chapter string

	// FuzzyEdits is the fuzzy-match edit cap (0 disables, 1 is the max honored)
	FuzzyEdits int

	// ChapterBoosts multiplies scores per chapter
	ChapterBoosts map[string]float64
}

// Meta describes how a result was produced.
type Meta struct {
	// TotalFound is the post-filter, pre-pagination item count
	TotalFound int `json:"total_found"`

	// UsedCache is true when the items came from cache
	UsedCache bool `json:"used_cache"`

	// Degraded is true when live data could not be obtained and a prior
	// cached result was served instead
	Degraded bool `json:"degraded"`

	// Warnings is append-only, never silently truncated
	Warnings []string `json:"warnings,omitempty"`
}

// Result is a ranked page of normalized tariff items plus meta.
type Result struct {
	Items []tariff.Item `json:"items"`
	Meta  Meta          `json:"meta"`
}

// cachedResult is the pre-pagination ranked and deduplicated superset stored
// per cache key, so differently paginated requests share one entry.
type cachedResult struct {
	Items []tariff.Item `json:"items"`
}

// Config sizes and wires an Engine.
type Config struct {
	// CacheCapacity is the LRU entry cap
	CacheCapacity int

	// DefaultLimit is the page size when Options.Limit is 0
	DefaultLimit int

	// Alias optionally contributes keyword-alias candidates
	Alias CandidateSource

	// Snapshots optionally persists last-good results
	Snapshots SnapshotStore
}

// Engine is the search orchestrator. Construct one per process (or per test:
// each Engine owns a fresh cache, and breaker state lives in the fetch client
// behind the Upstream).
type Engine struct {
	upstream  Upstream
	alias     CandidateSource
	snapshots SnapshotStore
	cache     *cache.LRU[cachedResult]
	limit     int
	log       *zap.Logger
}

// NewEngine builds an orchestrator around an upstream client.
func NewEngine(up Upstream, cfg Config, log *zap.Logger) *Engine {
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = 200
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 25
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		upstream:  up,
		alias:     cfg.Alias,
		snapshots: cfg.Snapshots,
		cache:     cache.New[cachedResult](cfg.CacheCapacity),
		limit:     cfg.DefaultLimit,
		log:       log,
	}
}

var nonDigits = regexp.MustCompile(`\D`)

// cacheKey covers the normalized query plus the options that affect result
// identity. Pagination is deliberately excluded.
func cacheKey(q string, opts Options) string {
	return fmt.Sprintf("%s|ten=%t|ch=%s|fz=%d",
		strings.ToLower(strings.TrimSpace(q)), opts.TenDigitOnly, opts.Chapter, opts.FuzzyEdits)
}

// numericBounds returns 10-digit range bounds for a numeric-looking query
// (at least 6 digits after stripping non-digits), or ok=false.
func numericBounds(q string) (from, to string, ok bool) {
	digits := nonDigits.ReplaceAllString(q, "")
	if len(digits) < 6 {
		return "", "", false
	}
	if len(digits) > 10 {
		digits = digits[:10]
	}
	from = digits + strings.Repeat("0", 10-len(digits))
	to = digits + strings.Repeat("9", 10-len(digits))
	return from, to, true
}

// Search resolves a free-text or numeric query to a ranked page of tariff
// items. Individual upstream variant failures reduce recall and surface as
// warnings; total failure falls back to cache (degraded) or, with no cache,
// returns a single resolution error naming the query.
func (e *Engine) Search(ctx context.Context, q string, opts Options) (*Result, error) {
	if strings.TrimSpace(q) == "" {
		return nil, errors.Input("search query is empty")
	}
	if opts.Limit <= 0 {
		opts.Limit = e.limit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	key := cacheKey(q, opts)
	expansions := query.Expand(q)

	merged, warnings := e.fanOut(ctx, q, expansions)

	if len(merged) == 0 {
		if res, ok := e.degradedFromCache(key, opts, warnings); ok {
			e.log.Warn("serving degraded cached result", zap.String("query", q))
			return res, nil
		}
		cause := fmt.Errorf("no matching tariff lines")
		if len(warnings) > 0 {
			cause = fmt.Errorf("%s", strings.Join(warnings, "; "))
		}
		return nil, errors.Resolution(q, cause)
	}

	ranked := e.rankAndDedupe(merged, q, expansions, opts)
	total := len(ranked)

	e.cache.Set(key, cachedResult{Items: ranked})
	e.persistSnapshot(key, ranked)

	return &Result{
		Items: paginate(ranked, opts.Offset, opts.Limit),
		Meta: Meta{
			TotalFound: total,
			Warnings:   warnings,
		},
	}, nil
}

// fanOut launches one upstream search per expansion, the numeric fast path
// and the alias source in parallel, joining settle-all: one task's failure
// never cancels the others, it just becomes a warning.
func (e *Engine) fanOut(ctx context.Context, q string, expansions []string) ([]map[string]any, []string) {
	type task struct {
		label string
		run   func(context.Context) ([]map[string]any, error)
	}

	var tasks []task
	for _, term := range expansions {
		term := term
		tasks = append(tasks, task{
			label: fmt.Sprintf("search %q", term),
			run: func(ctx context.Context) ([]map[string]any, error) {
				return e.upstream.Search(ctx, term)
			},
		})
	}
	if from, to, ok := numericBounds(q); ok {
		tasks = append(tasks, task{
			label: fmt.Sprintf("numeric lookup %s-%s", from, to),
			run: func(ctx context.Context) ([]map[string]any, error) {
				return e.upstream.Range(ctx, from, to)
			},
		})
	}
	if e.alias != nil {
		tasks = append(tasks, task{
			label: "alias source",
			run: func(ctx context.Context) ([]map[string]any, error) {
				return e.alias.Candidates(ctx, expansions)
			},
		})
	}

	records := make([][]map[string]any, len(tasks))
	errs := make([]error, len(tasks))

	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t task) {
			defer wg.Done()
			records[i], errs[i] = t.run(ctx)
		}(i, t)
	}
	wg.Wait()

	var merged []map[string]any
	var warnings []string
	for i, t := range tasks {
		if errs[i] != nil {
			warnings = append(warnings, fmt.Sprintf("%s failed: %v", t.label, errs[i]))
			continue
		}
		merged = append(merged, records[i]...)
	}
	return merged, warnings
}

// rankAndDedupe normalizes, filters, scores, sorts and deduplicates by
// (code10, lowercased description), keeping the highest-ranked occurrence.
func (e *Engine) rankAndDedupe(raw []map[string]any, q string, expansions []string, opts Options) []tariff.Item {
	tokenSets := make([][]string, 0, len(expansions))
	for _, term := range expansions {
		tokenSets = append(tokenSets, rank.Tokenize(term))
	}
	rankOpts := rank.Options{FuzzyEdits: opts.FuzzyEdits, ChapterBoosts: opts.ChapterBoosts}

	type scored struct {
		item  tariff.Item
		score float64
	}
	var kept []scored
	for _, rec := range raw {
		item := tariff.Normalize(rec)
		if opts.TenDigitOnly && !item.IsTenDigit {
			continue
		}
		if opts.Chapter != "" && item.Chapter() != opts.Chapter {
			continue
		}
		kept = append(kept, scored{
			item:  item,
			score: rank.Score(item, q, tokenSets, rankOpts),
		})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].score > kept[j].score
	})

	seen := make(map[string]struct{}, len(kept))
	out := make([]tariff.Item, 0, len(kept))
	for _, s := range kept {
		dk := s.item.Code10 + "|" + strings.ToLower(s.item.Description)
		if _, dup := seen[dk]; dup {
			continue
		}
		seen[dk] = struct{}{}
		out = append(out, s.item)
	}
	return out
}

// degradedFromCache serves the last good result for a key when live data is
// unobtainable: memory first, then the durable snapshot store.
func (e *Engine) degradedFromCache(key string, opts Options, warnings []string) (*Result, bool) {
	cachedRes, ok := e.cache.Get(key)
	if !ok && e.snapshots != nil {
		payload, found, err := e.snapshots.Get(key)
		if err == nil && found {
			if json.Unmarshal(payload, &cachedRes) == nil {
				ok = true
				e.cache.Set(key, cachedRes)
			}
		}
	}
	if !ok {
		return nil, false
	}

	warnings = append(warnings, "degraded: live tariff data unavailable, serving last cached result")
	return &Result{
		Items: paginate(cachedRes.Items, opts.Offset, opts.Limit),
		Meta: Meta{
			TotalFound: len(cachedRes.Items),
			UsedCache:  true,
			Degraded:   true,
			Warnings:   warnings,
		},
	}, true
}

func (e *Engine) persistSnapshot(key string, items []tariff.Item) {
	if e.snapshots == nil {
		return
	}
	payload, err := json.Marshal(cachedResult{Items: items})
	if err != nil {
		e.log.Warn("snapshot encode failed", zap.Error(err))
		return
	}
	if err := e.snapshots.Put(key, payload); err != nil {
		e.log.Warn("snapshot write failed", zap.Error(err))
	}
}

func paginate(items []tariff.Item, offset, limit int) []tariff.Item {
	if offset >= len(items) {
		return []tariff.Item{}
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// GetByCode resolves a numeric code (6, 8 or 10 digits) to its tariff lines
// via the numeric range endpoint.
func (e *Engine) GetByCode(ctx context.Context, code string, opts Options) ([]tariff.Item, error) {
	from, to, ok := numericBounds(code)
	if !ok {
		return nil, errors.Input("code must contain at least 6 digits")
	}

	records, err := e.upstream.Range(ctx, from, to)
	if err != nil {
		return nil, errors.Resolution(code, err)
	}

	items := make([]tariff.Item, 0, len(records))
	for _, rec := range records {
		item := tariff.Normalize(rec)
		if opts.TenDigitOnly && !item.IsTenDigit {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Code10 < items[j].Code10 })
	return items, nil
}
