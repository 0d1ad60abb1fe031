package usecases

import (
	"encoding/json"
	"fmt"
	"shopify-uploader/internal/domain/model"
	"shopify-uploader/internal/state"
	"time"
)

const processingStatusKey = "_processing_status"

type ProcessingStatus struct {
	Success     bool      `json:"success"`
	Skipped     bool      `json:"skipped,omitempty"`
	ShopifyID   *string   `json:"shopify_id"`
	Error       *string   `json:"error"`
	ProcessedAt time.Time `json:"processed_at"`
}

type OutputDocument struct {
	ProcessedAt   time.Time         `json:"processed_at"`
	TotalProducts int               `json:"total_products"`
	Successful    int               `json:"successful"`
	Skipped       int               `json:"skipped"`
	Failed        int               `json:"failed"`
	Products      []json.RawMessage `json:"products"`
}

type CollectionsDocument struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Total       int                  `json:"total"`
	Collections []state.RegistryItem `json:"collections"`
}

// BuildOutput echoes every input item with its processing status attached.
func BuildOutput(batch *Batch, results map[int]model.ItemResult, summary model.Summary, at time.Time) (OutputDocument, error) {
	doc := OutputDocument{
		ProcessedAt:   at,
		TotalProducts: summary.Total,
		Successful:    summary.Successful,
		Skipped:       summary.Skipped,
		Failed:        summary.Failed,
		Products:      make([]json.RawMessage, 0, len(batch.Raw)),
	}
	for i, raw := range batch.Raw {
		item, err := decodeObject(raw)
		if err != nil {
			return doc, fmt.Errorf("item %d: %w", i, err)
		}
		if r, ok := results[i]; ok {
			status, err := json.Marshal(ProcessingStatus{
				Success:     r.Success,
				Skipped:     r.Skipped,
				ShopifyID:   r.RemoteID,
				Error:       r.Error,
				ProcessedAt: r.Timestamp,
			})
			if err != nil {
				return doc, err
			}
			item[processingStatusKey] = status
		}
		encoded, err := json.Marshal(item)
		if err != nil {
			return doc, fmt.Errorf("item %d: %w", i, err)
		}
		doc.Products = append(doc.Products, encoded)
	}
	return doc, nil
}

func WriteOutput(path string, batch *Batch, results map[int]model.ItemResult, summary model.Summary, at time.Time) error {
	doc, err := BuildOutput(batch, results, summary, at)
	if err != nil {
		return err
	}
	return writeJSON(path, doc)
}

func WriteCollectionsOutput(path string, registry *state.Registry, at time.Time) error {
	items := registry.Items()
	if items == nil {
		items = []state.RegistryItem{}
	}
	return writeJSON(path, CollectionsDocument{GeneratedAt: at, Total: len(items), Collections: items})
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return state.WriteFileAtomic(path, append(data, '\n'))
}

// decodeObject returns the item as a key/value map. Items that are not JSON
// objects are wrapped so the status can still be attached.
func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var item map[string]json.RawMessage
	if err := json.Unmarshal(raw, &item); err == nil && item != nil {
		return item, nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("item is not valid json")
	}
	return map[string]json.RawMessage{"item": raw}, nil
}

// Patch overwrites one top-level field of an item's raw form so the output
// document reflects in-memory changes.
func (b *Batch) Patch(index int, key string, value any) error {
	item, err := decodeObject(b.Raw[index])
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	item[key] = encoded
	raw, err := json.Marshal(item)
	if err != nil {
		return err
	}
	b.Raw[index] = raw
	return nil
}
