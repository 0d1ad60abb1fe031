package taxonomy

import (
	"context"
	"fmt"
	"shopify-uploader/internal/logging"
	"shopify-uploader/internal/state"
	"sort"
	"strings"
	"sync"
)

// CacheStore persists resolved queries between runs.
type CacheStore interface {
	LoadTaxonomyCache(ctx context.Context) (state.TaxonomyCache, error)
	SaveTaxonomyCache(ctx context.Context, cache state.TaxonomyCache) error
}

var keywordSeparators = []string{" > ", " - ", " / ", " & ", " and "}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {},
}

// Resolver maps free-text categories to taxonomy ids. Candidates are loaded
// once on the first cache miss; every answer, including a miss, is cached.
type Resolver struct {
	source Source
	store  CacheStore
	logger logging.LoggerService

	mu         sync.Mutex
	cache      state.TaxonomyCache
	categories []Category
	loaded     bool
	loadErr    error
}

func NewResolver(source Source, store CacheStore, logger logging.LoggerService) *Resolver {
	return &Resolver{source: source, store: store, logger: logger}
}

// Resolve returns the taxonomy id for query. ok is false when nothing
// matched. An error means the candidates could not be loaded; that outcome
// is not cached, but the failed load is not retried for the rest of the run.
func (r *Resolver) Resolve(ctx context.Context, query string) (string, bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadCache(ctx); err != nil {
		return "", false, err
	}
	if id, resolved, cached := r.cache.Lookup(query); cached {
		r.logInfo(fmt.Sprintf("taxonomy cache %q -> %s", query, displayID(id)))
		return id, resolved, nil
	}

	if err := r.loadCategories(ctx); err != nil {
		return "", false, err
	}

	match, found := Resolve(r.categories, query)
	id := ""
	if found {
		id = match.ID
		r.logInfo(fmt.Sprintf("taxonomy resolved %q -> %s (%s)", query, match.FullName, match.ID))
	} else {
		r.logWarning(fmt.Sprintf("taxonomy unresolved %q", query))
	}

	r.cache.Store(query, id)
	if r.store != nil {
		if err := r.store.SaveTaxonomyCache(ctx, r.cache); err != nil {
			r.logWarning(fmt.Sprintf("taxonomy cache save failed: %v", err))
		}
	}
	return id, found, nil
}

// Warm loads the candidate list ahead of the first lookup.
func (r *Resolver) Warm(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadCache(ctx); err != nil {
		return err
	}
	return r.loadCategories(ctx)
}

func (r *Resolver) loadCache(ctx context.Context) error {
	if r.cache != nil {
		return nil
	}
	if r.store == nil {
		r.cache = state.TaxonomyCache{}
		return nil
	}
	cache, err := r.store.LoadTaxonomyCache(ctx)
	if err != nil {
		return fmt.Errorf("load taxonomy cache: %w", err)
	}
	if cache == nil {
		cache = state.TaxonomyCache{}
	}
	r.cache = cache
	return nil
}

func (r *Resolver) loadCategories(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	if r.loadErr != nil {
		return r.loadErr
	}
	categories, err := r.source.Categories(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.loadErr = fmt.Errorf("taxonomy unavailable: %w", err)
		}
		return err
	}
	r.categories = categories
	r.loaded = true
	return nil
}

// Resolve runs every strategy against categories: the full query, then each
// ">" segment from the rightmost, then the final word.
func Resolve(categories []Category, query string) (Category, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Category{}, false
	}
	if c, ok := Match(categories, query); ok {
		return c, true
	}

	if strings.Contains(query, ">") {
		parts := strings.Split(query, ">")
		for i := len(parts) - 1; i >= 0; i-- {
			part := strings.TrimSpace(parts[i])
			if part == "" {
				continue
			}
			if c, ok := Match(categories, part); ok {
				return c, true
			}
		}
	}

	if words := strings.Fields(query); len(words) > 1 {
		if c, ok := Match(categories, words[len(words)-1]); ok {
			return c, true
		}
	}
	return Category{}, false
}

// Match tries exact, substring and keyword matching in that order.
func Match(categories []Category, query string) (Category, bool) {
	lower := strings.ToLower(strings.TrimSpace(query))
	if lower == "" {
		return Category{}, false
	}

	for _, c := range categories {
		if strings.ToLower(c.FullName) == lower {
			return c, true
		}
	}

	best := -1
	for i, c := range categories {
		if !strings.Contains(strings.ToLower(c.FullName), lower) {
			continue
		}
		if best < 0 || len(c.FullName) < len(categories[best].FullName) {
			best = i
		}
	}
	if best >= 0 {
		return categories[best], true
	}

	keywords := Keywords(query)
	if len(keywords) == 0 {
		return Category{}, false
	}
	type scored struct {
		category Category
		hits     int
	}
	var matches []scored
	for _, c := range categories {
		name := strings.ToLower(c.FullName)
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				hits++
			}
		}
		if hits > 0 {
			matches = append(matches, scored{category: c, hits: hits})
		}
	}
	if len(matches) == 0 {
		return Category{}, false
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].hits != matches[j].hits {
			return matches[i].hits > matches[j].hits
		}
		return len(matches[i].category.FullName) < len(matches[j].category.FullName)
	})
	return matches[0].category, true
}

// Keywords splits on the first separator present, or else keeps the
// non-stop words longer than two letters.
func Keywords(query string) []string {
	var keywords []string
	for _, sep := range keywordSeparators {
		if !strings.Contains(query, sep) {
			continue
		}
		for _, part := range strings.Split(query, sep) {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				keywords = append(keywords, part)
			}
		}
		break
	}
	if len(keywords) > 0 {
		return keywords
	}
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if _, stop := stopWords[w]; stop || len(w) <= 2 {
			continue
		}
		keywords = append(keywords, w)
	}
	return keywords
}

func displayID(id string) string {
	if id == "" {
		return "unresolved"
	}
	return id
}

func (r *Resolver) logInfo(message string) {
	if r.logger != nil {
		r.logger.Log(message)
	}
}

func (r *Resolver) logWarning(message string) {
	if r.logger != nil {
		r.logger.LogWarning(message)
	}
}
