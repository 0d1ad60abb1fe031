// Package state persists the uploader's resumable progress: the upload
// checkpoint, the collection registry, the product restore snapshot and the
// taxonomy lookup cache.
package state

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"shopify-uploader/internal/domain/model"
)

const (
	CheckpointName    = "upload_state.json"
	RegistryName      = "collections.json"
	RestoreName       = "products.json"
	TaxonomyCacheName = "product_taxonomy.json"
)

var ErrNotFound = errors.New("state document not found")

// Store keeps four independent documents. Loads return a fresh value rather
// than an error when a document is absent or unreadable.
type Store interface {
	LoadCheckpoint(ctx context.Context) (*Checkpoint, error)
	SaveCheckpoint(ctx context.Context, cp *Checkpoint) error
	DeleteCheckpoint(ctx context.Context) error

	LoadRegistry(ctx context.Context) (*Registry, error)
	SaveRegistry(ctx context.Context, r *Registry) error

	LoadRestore(ctx context.Context) (*RestoreSnapshot, error)
	SaveRestore(ctx context.Context, s *RestoreSnapshot) error
	DeleteRestore(ctx context.Context) error

	LoadTaxonomyCache(ctx context.Context) (TaxonomyCache, error)
	SaveTaxonomyCache(ctx context.Context, c TaxonomyCache) error

	// SaveProgress persists the checkpoint and the restore snapshot after an
	// item. Backends without transactions write them one after the other.
	SaveProgress(ctx context.Context, cp *Checkpoint, s *RestoreSnapshot) error
}

// Checkpoint is the resume cursor for one input batch.
type Checkpoint struct {
	LastProcessedIndex int                `json:"last_processed_index"`
	Results            []model.ItemResult `json:"results"`
	RunID              string             `json:"run_id,omitempty"`
	UpdatedAt          time.Time          `json:"updated_at,omitempty"`
}

func NewCheckpoint(runID string) *Checkpoint {
	return &Checkpoint{LastProcessedIndex: -1, Results: []model.ItemResult{}, RunID: runID}
}

// Record appends a result and advances the cursor. The cursor never moves
// backwards.
func (c *Checkpoint) Record(r model.ItemResult) {
	c.Results = append(c.Results, r)
	if r.Index > c.LastProcessedIndex {
		c.LastProcessedIndex = r.Index
	}
	c.UpdatedAt = r.Timestamp
}

func (c *Checkpoint) NextIndex() int {
	if c == nil {
		return 0
	}
	return c.LastProcessedIndex + 1
}

// Latest returns the most recent result per index.
func (c *Checkpoint) Latest() map[int]model.ItemResult {
	out := make(map[int]model.ItemResult)
	if c == nil {
		return out
	}
	for _, r := range c.Results {
		out[r.Index] = r
	}
	return out
}

// CreatedRemoteIDs lists remote ids of successful results, ordered by index.
func (c *Checkpoint) CreatedRemoteIDs() []string {
	latest := c.Latest()
	indexes := make([]int, 0, len(latest))
	for i, r := range latest {
		if r.Success && r.RemoteID != nil && *r.RemoteID != "" {
			indexes = append(indexes, i)
		}
	}
	sort.Ints(indexes)
	ids := make([]string, 0, len(indexes))
	for _, i := range indexes {
		ids = append(ids, *latest[i].RemoteID)
	}
	return ids
}

const (
	RestoreCompleted = "completed"
	RestoreFailed    = "failed"
	RestoreDeleted   = "deleted"
)

// RestoreSnapshot records, per product title, what exists remotely so a run
// can be rolled back.
type RestoreSnapshot struct {
	Products    map[string]RestoreEntry `json:"products_dict"`
	LastUpdated time.Time               `json:"last_updated,omitempty"`
}

type RestoreEntry struct {
	Title       string    `json:"title"`
	RemoteID    string    `json:"shopify_id,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	FailedStage string    `json:"failed_stage,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewRestoreSnapshot() *RestoreSnapshot {
	return &RestoreSnapshot{Products: map[string]RestoreEntry{}}
}

func restoreKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func (s *RestoreSnapshot) Get(title string) (RestoreEntry, bool) {
	if s == nil || s.Products == nil {
		return RestoreEntry{}, false
	}
	e, ok := s.Products[restoreKey(title)]
	return e, ok
}

func (s *RestoreSnapshot) Put(e RestoreEntry) {
	if s.Products == nil {
		s.Products = map[string]RestoreEntry{}
	}
	s.Products[restoreKey(e.Title)] = e
	s.LastUpdated = e.UpdatedAt
}

// RemoteIDs returns every recorded remote product id, sorted by title key.
func (s *RestoreSnapshot) RemoteIDs() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.Products))
	for k, e := range s.Products {
		if e.RemoteID != "" && e.Status != RestoreDeleted {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, s.Products[k].RemoteID)
	}
	return ids
}

// TaxonomyCache maps a free-text category to a taxonomy id. A nil value
// records a lookup that found nothing.
type TaxonomyCache map[string]*string

// Lookup reports the cached id and whether the query was cached at all.
func (c TaxonomyCache) Lookup(query string) (id string, resolved bool, cached bool) {
	v, ok := c[query]
	if !ok {
		return "", false, false
	}
	if v == nil || *v == "" {
		return "", false, true
	}
	return *v, true, true
}

func (c TaxonomyCache) Store(query, id string) {
	if id == "" {
		c[query] = nil
		return
	}
	c[query] = &id
}
