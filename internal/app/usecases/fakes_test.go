package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"shopify-uploader/internal/adapters/ai"
	"shopify-uploader/internal/adapters/shopify"
	"shopify-uploader/internal/adapters/shopify/dto"
	"shopify-uploader/internal/domain/model"
	"shopify-uploader/internal/state"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// opencensus starts its stats worker from init; it arrives through genai.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type fakeShopify struct {
	mu sync.Mutex

	nextID       int
	created      []string
	categoryIDs  map[string]string
	failCreate   map[string]error
	failVariants map[string]error
	variantCalls []string
	published    []string
	deleted      []string
	failDelete   error

	collections        map[string]dto.ShopifyCollection
	createdCollections []shopify.CollectionInput
	deletedCollections []string

	definitions []shopify.MetafieldDefinition
	taxonomy    []dto.TaxonomyCategoryNode
	channels    []string
	channelErr  error
}

func newFakeShopify() *fakeShopify {
	return &fakeShopify{
		categoryIDs:  map[string]string{},
		failCreate:   map[string]error{},
		failVariants: map[string]error{},
		collections:  map[string]dto.ShopifyCollection{},
	}
}

func (f *fakeShopify) CreateProduct(_ context.Context, product model.Product, categoryID string) (shopify.CreatedProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failCreate[product.Title]; err != nil {
		return shopify.CreatedProduct{}, err
	}
	f.nextID++
	f.created = append(f.created, product.Title)
	f.categoryIDs[product.Title] = categoryID
	return shopify.CreatedProduct{
		ID:     fmt.Sprintf("gid://shopify/Product/%d", f.nextID),
		Handle: strings.ToLower(strings.ReplaceAll(product.Title, " ", "-")),
	}, nil
}

func (f *fakeShopify) CreateVariants(_ context.Context, productID string, product model.Product) ([]dto.ShopifyVariant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.variantCalls = append(f.variantCalls, productID)
	if err := f.failVariants[product.Title]; err != nil {
		return nil, err
	}
	out := make([]dto.ShopifyVariant, 0, len(product.Variants))
	for i, v := range product.Variants {
		out = append(out, dto.ShopifyVariant{ID: fmt.Sprintf("%s/v%d", productID, i), SKU: v.SKU})
	}
	return out, nil
}

func (f *fakeShopify) DeleteProduct(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeShopify) DeleteProducts(_ context.Context, ids []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return nil, f.failDelete
	}
	f.deleted = append(f.deleted, ids...)
	return append([]string(nil), ids...), nil
}

func (f *fakeShopify) DeleteCollections(_ context.Context, ids []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedCollections = append(f.deletedCollections, ids...)
	return append([]string(nil), ids...), nil
}

func (f *fakeShopify) FindCollectionByTitle(_ context.Context, title string) (*dto.ShopifyCollection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.collections[strings.ToLower(title)]; ok {
		return &c, nil
	}
	return nil, nil
}

func (f *fakeShopify) CreateSmartCollection(_ context.Context, input shopify.CollectionInput) (dto.ShopifyCollection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdCollections = append(f.createdCollections, input)
	c := dto.ShopifyCollection{
		ID:     fmt.Sprintf("gid://shopify/Collection/%d", len(f.createdCollections)),
		Title:  input.Title,
		Handle: strings.ToLower(strings.ReplaceAll(input.Title, " ", "-")),
	}
	f.collections[strings.ToLower(input.Title)] = c
	return c, nil
}

func (f *fakeShopify) DeleteCollection(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedCollections = append(f.deletedCollections, id)
	return nil
}

func (f *fakeShopify) SalesChannelIDs(context.Context, []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels, f.channelErr
}

func (f *fakeShopify) Publish(_ context.Context, id string, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, id)
	return nil
}

func (f *fakeShopify) TaxonomyCategories(context.Context) ([]dto.TaxonomyCategoryNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.taxonomy) == 0 {
		return nil, errors.New("taxonomy unavailable")
	}
	return f.taxonomy, nil
}

func (f *fakeShopify) EnsureMetafieldDefinition(_ context.Context, def shopify.MetafieldDefinition) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.definitions = append(f.definitions, def)
	return true, nil
}

var _ shopify.Service = (*fakeShopify)(nil)

// recordingStore keeps a copy of every checkpoint written.
type recordingStore struct {
	*state.FileStore
	saved []state.Checkpoint
}

func newRecordingStore(t *testing.T) *recordingStore {
	t.Helper()
	fs, err := state.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	return &recordingStore{FileStore: fs}
}

func (s *recordingStore) SaveProgress(ctx context.Context, cp *state.Checkpoint, snap *state.RestoreSnapshot) error {
	clone := *cp
	clone.Results = append([]model.ItemResult(nil), cp.Results...)
	s.saved = append(s.saved, clone)
	return s.FileStore.SaveProgress(ctx, cp, snap)
}

type recordingObserver struct {
	results   []model.ItemResult
	summaries []model.Summary
	onItem    func(index int)
}

func (o *recordingObserver) OnItemResult(index int, result model.ItemResult) {
	o.results = append(o.results, result)
	if o.onItem != nil {
		o.onItem(index)
	}
}

func (o *recordingObserver) OnSummary(summary model.Summary) {
	o.summaries = append(o.summaries, summary)
}

type stubResolver struct {
	ids     map[string]string
	queries []string
}

func (r *stubResolver) Resolve(_ context.Context, query string) (string, bool, error) {
	r.queries = append(r.queries, query)
	id, ok := r.ids[query]
	return id, ok, nil
}

func (r *stubResolver) Warm(context.Context) error { return nil }

type stubEnhancer struct {
	calls int
	err   error
}

func (e *stubEnhancer) EnhanceProduct(_ context.Context, in ai.EnhanceInput) (ai.EnhanceOutput, error) {
	e.calls++
	if e.err != nil {
		return ai.EnhanceOutput{}, e.err
	}
	return ai.EnhanceOutput{BodyHTML: "<p>Enhanced " + in.Title + "</p>", ProductCategory: "Pavers"}, nil
}

func (e *stubEnhancer) CollectionDescription(_ context.Context, title, _ string, _ []string) (string, error) {
	return "<p>" + title + "</p>", nil
}

type countingMetrics struct {
	items       map[string]int
	collections map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{items: map[string]int{}, collections: map[string]int{}}
}

func (m *countingMetrics) ObserveItem(status string, _ time.Duration) { m.items[status]++ }
func (m *countingMetrics) ObserveCollection(status string)             { m.collections[status]++ }

func productJSON(title string, sku string) map[string]any {
	return map[string]any{
		"title":        title,
		"body_html":    "<p>" + title + "</p>",
		"vendor":       "Stoneworks",
		"product_type": "Hardscape",
		"tags":         []string{"Pavers", "Slabs"},
		"variants": []map[string]any{
			{"sku": sku, "price": "19.99", "option1": "Default"},
		},
	}
}

func batchFrom(t *testing.T, items ...map[string]any) *Batch {
	t.Helper()
	data, err := json.Marshal(items)
	require.NoError(t, err)
	batch, err := ParseBatch(data)
	require.NoError(t, err)
	return batch
}

func threeItemBatch(t *testing.T) *Batch {
	return batchFrom(t,
		productJSON("Granite Slab", "GS-1"),
		productJSON("Basalt Slab", "BS-1"),
		productJSON("Marble Slab", "MS-1"),
	)
}

func userError(message string) error {
	return &shopify.UserErrorsError{
		Action: "productCreate",
		Errors: []dto.ShopifyUserError{{Field: []string{"title"}, Message: message}},
	}
}
