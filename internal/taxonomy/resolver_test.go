package taxonomy

import (
	"context"
	"errors"
	"shopify-uploader/internal/state"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	categories []Category
	err        error
	calls      int
}

func (s *staticSource) Categories(context.Context) ([]Category, error) {
	s.calls++
	return s.categories, s.err
}

type memoryCache struct {
	cache state.TaxonomyCache
	saves int
}

func (m *memoryCache) LoadTaxonomyCache(context.Context) (state.TaxonomyCache, error) {
	out := state.TaxonomyCache{}
	for k, v := range m.cache {
		out[k] = v
	}
	return out, nil
}

func (m *memoryCache) SaveTaxonomyCache(_ context.Context, c state.TaxonomyCache) error {
	m.saves++
	m.cache = state.TaxonomyCache{}
	for k, v := range c {
		m.cache[k] = v
	}
	return nil
}

var sampleCategories = []Category{
	{ID: "gid://shopify/TaxonomyCategory/hg", FullName: "Home & Garden"},
	{ID: "gid://shopify/TaxonomyCategory/hg-1", FullName: "Home & Garden > Lawn & Garden"},
	{ID: "gid://shopify/TaxonomyCategory/hg-1-2", FullName: "Home & Garden > Lawn & Garden > Outdoor Living"},
	{ID: "gid://shopify/TaxonomyCategory/slabs", FullName: "Slabs"},
	{ID: "gid://shopify/TaxonomyCategory/ha-1", FullName: "Hardware > Building Materials > Pavers"},
	{ID: "gid://shopify/TaxonomyCategory/ha-2", FullName: "Hardware > Building Materials > Pavers & Stepping Stones"},
	{ID: "gid://shopify/TaxonomyCategory/vp-1", FullName: "Vehicles & Parts > Go Karts"},
}

func TestMatchStrategies(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		wantID string
		found  bool
	}{
		{name: "exact ignores case", query: "home & garden > lawn & garden", wantID: "gid://shopify/TaxonomyCategory/hg-1", found: true},
		{name: "substring picks shortest", query: "pavers", wantID: "gid://shopify/TaxonomyCategory/ha-1", found: true},
		{name: "keywords rank by hits", query: "Stepping Pavers Stones", wantID: "gid://shopify/TaxonomyCategory/ha-2", found: true},
		{name: "nothing", query: "Quantum Widgets", found: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Match(sampleCategories, tt.query)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestResolveFallbacks(t *testing.T) {
	got, ok := Resolve(sampleCategories, "Outdoor Patio Slabs")
	require.True(t, ok)
	assert.Equal(t, "gid://shopify/TaxonomyCategory/slabs", got.ID)

	got, ok = Resolve(sampleCategories, "Unknowns > Zzz > Slabs")
	require.True(t, ok)
	assert.Equal(t, "gid://shopify/TaxonomyCategory/slabs", got.ID)

	got, ok = Resolve(sampleCategories, "The Go")
	require.True(t, ok)
	assert.Equal(t, "gid://shopify/TaxonomyCategory/vp-1", got.ID)

	_, ok = Resolve(sampleCategories, "  ")
	assert.False(t, ok)
}

func TestKeywords(t *testing.T) {
	assert.Equal(t, []string{"pavers", "slabs"}, Keywords("Pavers - Slabs"))
	assert.Equal(t, []string{"outdoor", "patio", "slabs"}, Keywords("The Outdoor Patio of Slabs"))
	assert.Equal(t, []string{"tables", "chairs"}, Keywords("Tables and Chairs"))
	assert.Empty(t, Keywords("to be or"))
}

func TestResolverCachesHitsAndMisses(t *testing.T) {
	src := &staticSource{categories: sampleCategories}
	store := &memoryCache{}
	r := NewResolver(src, store, nil)
	ctx := context.Background()

	id, ok, err := r.Resolve(ctx, "Slabs")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "gid://shopify/TaxonomyCategory/slabs", id)

	_, ok, err = r.Resolve(ctx, "Quantum Widgets")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 2, store.saves)
	require.Contains(t, store.cache, "Quantum Widgets")
	assert.Nil(t, store.cache["Quantum Widgets"])

	fresh := &staticSource{err: errors.New("should not be called")}
	r2 := NewResolver(fresh, store, nil)
	id, ok, err = r2.Resolve(ctx, "Slabs")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "gid://shopify/TaxonomyCategory/slabs", id)
	_, ok, err = r2.Resolve(ctx, "Quantum Widgets")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, fresh.calls)
}

func TestResolverSourceErrorNotCached(t *testing.T) {
	src := &staticSource{err: errors.New("boom")}
	store := &memoryCache{}
	r := NewResolver(src, store, nil)

	_, _, err := r.Resolve(context.Background(), "Slabs")
	require.Error(t, err)
	assert.Equal(t, 0, store.saves)

	_, ok, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolverDoesNotReloadAfterFailure(t *testing.T) {
	src := &staticSource{err: errors.New("graphql down")}
	r := NewResolver(src, &memoryCache{}, nil)
	ctx := context.Background()

	require.Error(t, r.Warm(ctx))
	for _, q := range []string{"Slabs", "Pavers", "Steps"} {
		_, ok, err := r.Resolve(ctx, q)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "graphql down")
		assert.False(t, ok)
	}
	assert.Equal(t, 1, src.calls)
}

func TestResolverRetriesAfterCancelledLoad(t *testing.T) {
	src := &staticSource{err: context.Canceled}
	r := NewResolver(src, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, r.Warm(ctx))

	src.err = nil
	src.categories = sampleCategories
	id, ok, err := r.Resolve(context.Background(), "Slabs")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "gid://shopify/TaxonomyCategory/slabs", id)
	assert.Equal(t, 2, src.calls)
}

func TestFallbackSource(t *testing.T) {
	failing := &staticSource{err: errors.New("graphql down")}
	empty := &staticSource{}
	good := &staticSource{categories: sampleCategories[:1]}

	got, err := NewFallbackSource(nil, failing, empty, good).Categories(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = NewFallbackSource(nil, failing, empty).Categories(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graphql down")
}
