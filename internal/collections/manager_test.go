package collections

import (
	"context"
	"errors"
	"fmt"
	"shopify-uploader/internal/adapters/shopify"
	"shopify-uploader/internal/adapters/shopify/dto"
	"shopify-uploader/internal/domain/model"
	"shopify-uploader/internal/state"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	existing  map[string]dto.ShopifyCollection
	created   []shopify.CollectionInput
	published []string
	searches  []string
	failOn    string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{existing: map[string]dto.ShopifyCollection{}}
}

func (f *fakeRemote) FindCollectionByTitle(_ context.Context, title string) (*dto.ShopifyCollection, error) {
	f.searches = append(f.searches, title)
	if c, ok := f.existing[strings.ToLower(title)]; ok {
		return &c, nil
	}
	return nil, nil
}

func (f *fakeRemote) CreateSmartCollection(_ context.Context, input shopify.CollectionInput) (dto.ShopifyCollection, error) {
	if input.Title == f.failOn {
		return dto.ShopifyCollection{}, errors.New("collectionCreate: title is invalid")
	}
	f.created = append(f.created, input)
	c := dto.ShopifyCollection{
		ID:      fmt.Sprintf("gid://shopify/Collection/%d", len(f.created)),
		Title:   input.Title,
		Handle:  strings.ToLower(strings.ReplaceAll(input.Title, " ", "-")),
		RuleSet: &dto.CollectionRuleSet{},
	}
	for _, r := range input.Rules {
		c.RuleSet.Rules = append(c.RuleSet.Rules, dto.CollectionRule{Column: r.Column, Relation: "EQUALS", Condition: r.Condition})
	}
	f.existing[strings.ToLower(input.Title)] = c
	return c, nil
}

func (f *fakeRemote) DeleteCollection(context.Context, string) error { return nil }

func (f *fakeRemote) SalesChannelIDs(context.Context, []string) ([]string, error) { return nil, nil }

func (f *fakeRemote) Publish(_ context.Context, id string, _ []string) error {
	f.published = append(f.published, id)
	return nil
}

type memoryRegistry struct {
	registry *state.Registry
	saves    int
}

func (m *memoryRegistry) LoadRegistry(context.Context) (*state.Registry, error) {
	if m.registry == nil {
		return state.NewRegistry(), nil
	}
	return m.registry, nil
}

func (m *memoryRegistry) SaveRegistry(_ context.Context, r *state.Registry) error {
	m.saves++
	m.registry = r
	return nil
}

type statusCounter map[string]int

func (s statusCounter) ObserveCollection(status string) { s[status]++ }

type stubDescriber struct{ samples []string }

func (d *stubDescriber) CollectionDescription(_ context.Context, title, _ string, samples []string) (string, error) {
	d.samples = samples
	return "<p>" + title + "</p>", nil
}

func paverProducts() []model.Product {
	return []model.Product{
		{Title: "Grey Slab", ProductType: "Hardscape", Tags: model.Tags{"Pavers", "Slabs"}, BodyHTML: "<p>slab</p>"},
		{Title: "Tan Step", ProductType: "Hardscape", Tags: model.Tags{"Pavers", "Steps"}, BodyHTML: "<p>step</p>"},
		{Title: "Loose Paver", ProductType: "hardscape", Tags: model.Tags{"pavers"}},
	}
}

func TestEnsureCreatesEachCollectionOnce(t *testing.T) {
	remote := newFakeRemote()
	store := &memoryRegistry{}
	counter := statusCounter{}
	mgr := NewManager(remote, store, nil, Options{PublicationIDs: []string{"pub-1"}, Observer: counter})

	report, err := mgr.Ensure(context.Background(), paverProducts())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Created)
	assert.Equal(t, 0, report.Existing)
	assert.Equal(t, 4, store.saves)
	assert.Len(t, remote.published, 4)
	assert.Equal(t, 4, counter[StatusCreated])

	titles := make([]string, 0, len(remote.created))
	for _, c := range remote.created {
		titles = append(titles, c.Title)
	}
	assert.Equal(t, []string{"Hardscape", "Pavers", "Slabs", "Steps"}, titles)

	assert.Equal(t, []shopify.CollectionRule{{Column: shopify.RuleColumnType, Condition: "Hardscape"}}, remote.created[0].Rules)
	assert.Equal(t, []shopify.CollectionRule{{Column: shopify.RuleColumnTag, Condition: "Pavers"}}, remote.created[1].Rules)
	assert.Equal(t, []shopify.CollectionRule{
		{Column: shopify.RuleColumnTag, Condition: "Pavers"},
		{Column: shopify.RuleColumnTag, Condition: "Slabs"},
	}, remote.created[2].Rules)

	ref, ok := store.registry.Subcategory("pavers", "steps")
	require.True(t, ok)
	assert.Equal(t, "gid://shopify/Collection/4", ref.ID)

	again, err := NewManager(remote, store, nil, Options{}).Ensure(context.Background(), paverProducts())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 4, again.Existing)
	assert.Len(t, remote.created, 4)
}

func TestEnsureAdoptsRemoteCollection(t *testing.T) {
	remote := newFakeRemote()
	remote.existing["pavers"] = dto.ShopifyCollection{ID: "gid://shopify/Collection/77", Title: "Pavers", Handle: "pavers"}
	store := &memoryRegistry{}

	report, err := NewManager(remote, store, nil, Options{}).Ensure(context.Background(), paverProducts()[:1])
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 1, report.Existing)

	ref, ok := store.registry.Category("Pavers")
	require.True(t, ok)
	assert.Equal(t, "gid://shopify/Collection/77", ref.ID)
}

func TestEnsureQualifiesSharedSubcategoryTitle(t *testing.T) {
	remote := newFakeRemote()
	store := &memoryRegistry{}
	products := []model.Product{
		{Title: "A", ProductType: "Hardscape", Tags: model.Tags{"Pavers", "Steps"}},
		{Title: "B", ProductType: "Hardscape", Tags: model.Tags{"Walls", "Steps"}},
	}

	_, err := NewManager(remote, store, nil, Options{}).Ensure(context.Background(), products)
	require.NoError(t, err)

	ref, ok := store.registry.Subcategory("Walls", "Steps")
	require.True(t, ok)
	assert.Equal(t, "Walls Steps", ref.Title)
	ref, ok = store.registry.Subcategory("Pavers", "Steps")
	require.True(t, ok)
	assert.Equal(t, "Steps", ref.Title)
}

func TestEnsureSeparatesCategoryNamedLikeDepartment(t *testing.T) {
	remote := newFakeRemote()
	store := &memoryRegistry{}
	products := []model.Product{
		{Title: "Cedar Mulch", ProductType: "Mulch", Tags: model.Tags{"Mulch", "Bagged"}},
	}

	report, err := NewManager(remote, store, nil, Options{}).Ensure(context.Background(), products)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Created)

	require.Len(t, remote.created, 3)
	assert.Equal(t, "Mulch", remote.created[0].Title)
	assert.Equal(t, []shopify.CollectionRule{{Column: shopify.RuleColumnType, Condition: "Mulch"}}, remote.created[0].Rules)
	assert.Equal(t, "Mulch Products", remote.created[1].Title)
	assert.Equal(t, []shopify.CollectionRule{{Column: shopify.RuleColumnTag, Condition: "Mulch"}}, remote.created[1].Rules)
	assert.Equal(t, "Bagged", remote.created[2].Title)

	dept, ok := store.registry.Department("Mulch")
	require.True(t, ok)
	cat, ok := store.registry.Category("Mulch")
	require.True(t, ok)
	assert.NotEqual(t, dept.ID, cat.ID)
}

func TestEnsureSkipsRemoteCollectionWithOtherRules(t *testing.T) {
	remote := newFakeRemote()
	remote.existing["mulch"] = dto.ShopifyCollection{
		ID:    "gid://shopify/Collection/90",
		Title: "Mulch",
		RuleSet: &dto.CollectionRuleSet{Rules: []dto.CollectionRule{
			{Column: "TYPE", Relation: "EQUALS", Condition: "Mulch"},
		}},
	}
	store := &memoryRegistry{}
	products := []model.Product{{Title: "Cedar Mulch", ProductType: "Garden", Tags: model.Tags{"Mulch"}}}

	_, err := NewManager(remote, store, nil, Options{}).Ensure(context.Background(), products)
	require.NoError(t, err)

	assert.Equal(t, []string{"Garden", "Mulch", "Garden Mulch"}, remote.searches)
	cat, ok := store.registry.Category("Mulch")
	require.True(t, ok)
	assert.Equal(t, "Garden Mulch", cat.Title)
	assert.NotEqual(t, "gid://shopify/Collection/90", cat.ID)
}

func TestEnsurePublishesRegisteredCollections(t *testing.T) {
	remote := newFakeRemote()
	store := &memoryRegistry{}
	_, err := NewManager(remote, store, nil, Options{}).Ensure(context.Background(), paverProducts())
	require.NoError(t, err)
	require.Empty(t, remote.published)

	report, err := NewManager(remote, store, nil, Options{PublicationIDs: []string{"pub-1"}}).Ensure(context.Background(), paverProducts())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Existing)
	assert.Equal(t, []string{
		"gid://shopify/Collection/1",
		"gid://shopify/Collection/2",
		"gid://shopify/Collection/3",
		"gid://shopify/Collection/4",
	}, remote.published)
}

func TestEnsureStopsOnCreateFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.failOn = "Pavers"
	store := &memoryRegistry{}
	counter := statusCounter{}

	report, err := NewManager(remote, store, nil, Options{Observer: counter}).Ensure(context.Background(), paverProducts())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `create collection "Pavers"`)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, counter[StatusFailed])
	assert.Len(t, remote.created, 1)

	_, ok := store.registry.Department("Hardscape")
	assert.True(t, ok)
}

func TestEnsureUsesDescriber(t *testing.T) {
	remote := newFakeRemote()
	describer := &stubDescriber{}

	_, err := NewManager(remote, &memoryRegistry{}, nil, Options{Describer: describer}).Ensure(context.Background(), paverProducts()[:1])
	require.NoError(t, err)
	assert.Equal(t, "<p>Hardscape</p>", remote.created[0].DescriptionHTML)
	assert.Equal(t, []string{"<p>slab</p>"}, describer.samples)
}

func TestRequirementsSkipsEmptySubcategory(t *testing.T) {
	reqs := requirements(paverProducts())
	require.Len(t, reqs, 4)
	assert.Equal(t, state.LevelDepartment, reqs[0].level)
	assert.Equal(t, state.LevelCategory, reqs[1].level)
	assert.Equal(t, []string{"<p>slab</p>", "<p>step</p>"}, reqs[1].samples)
	assert.Equal(t, "Slabs", reqs[2].subcategory)
	assert.Equal(t, "Steps", reqs[3].subcategory)
}
