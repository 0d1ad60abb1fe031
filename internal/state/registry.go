package state

import (
	"sort"
	"strings"
	"time"
)

type CollectionLevel string

const (
	LevelDepartment  CollectionLevel = "department"
	LevelCategory    CollectionLevel = "category"
	LevelSubcategory CollectionLevel = "subcategory"
)

type CollectionRef struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	Title     string    `json:"title,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Registry is the local record of remote collections. Categories are keyed
// by category alone; subcategories live under their category.
type Registry struct {
	Departments map[string]CollectionRef `json:"departments"`
	Categories  map[string]CategoryEntry `json:"categories"`
}

type CategoryEntry struct {
	Collection    *CollectionRef           `json:"collection,omitempty"`
	Subcategories map[string]CollectionRef `json:"subcategories,omitempty"`
}

func NewRegistry() *Registry {
	return &Registry{
		Departments: map[string]CollectionRef{},
		Categories:  map[string]CategoryEntry{},
	}
}

func registryKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (r *Registry) ensure() {
	if r.Departments == nil {
		r.Departments = map[string]CollectionRef{}
	}
	if r.Categories == nil {
		r.Categories = map[string]CategoryEntry{}
	}
}

func (r *Registry) Department(name string) (CollectionRef, bool) {
	if r == nil {
		return CollectionRef{}, false
	}
	ref, ok := r.Departments[registryKey(name)]
	return ref, ok
}

func (r *Registry) SetDepartment(name string, ref CollectionRef) {
	r.ensure()
	r.Departments[registryKey(name)] = ref
}

func (r *Registry) Category(name string) (CollectionRef, bool) {
	if r == nil {
		return CollectionRef{}, false
	}
	entry, ok := r.Categories[registryKey(name)]
	if !ok || entry.Collection == nil {
		return CollectionRef{}, false
	}
	return *entry.Collection, true
}

func (r *Registry) SetCategory(name string, ref CollectionRef) {
	r.ensure()
	key := registryKey(name)
	entry := r.Categories[key]
	entry.Collection = &ref
	r.Categories[key] = entry
}

func (r *Registry) Subcategory(category, subcategory string) (CollectionRef, bool) {
	if r == nil {
		return CollectionRef{}, false
	}
	entry, ok := r.Categories[registryKey(category)]
	if !ok {
		return CollectionRef{}, false
	}
	ref, ok := entry.Subcategories[registryKey(subcategory)]
	return ref, ok
}

func (r *Registry) SetSubcategory(category, subcategory string, ref CollectionRef) {
	r.ensure()
	key := registryKey(category)
	entry := r.Categories[key]
	if entry.Subcategories == nil {
		entry.Subcategories = map[string]CollectionRef{}
	}
	entry.Subcategories[registryKey(subcategory)] = ref
	r.Categories[key] = entry
}

// TitleOwnedElsewhere reports whether a collection other than the one for
// category/subcategory already uses title. An empty subcategory names the
// category collection itself.
func (r *Registry) TitleOwnedElsewhere(title, category, subcategory string) bool {
	if r == nil {
		return false
	}
	for _, ref := range r.Departments {
		if strings.EqualFold(ref.Title, title) {
			return true
		}
	}
	for catKey, entry := range r.Categories {
		own := subcategory == "" && catKey == registryKey(category)
		if !own && entry.Collection != nil && strings.EqualFold(entry.Collection.Title, title) {
			return true
		}
		for subKey, ref := range entry.Subcategories {
			if catKey == registryKey(category) && subKey == registryKey(subcategory) {
				continue
			}
			if strings.EqualFold(ref.Title, title) {
				return true
			}
		}
	}
	return false
}

type RegistryItem struct {
	Level       CollectionLevel `json:"level"`
	Department  string          `json:"department,omitempty"`
	Category    string          `json:"category,omitempty"`
	Subcategory string          `json:"subcategory,omitempty"`
	Collection  CollectionRef   `json:"collection"`
}

// Items flattens the registry in a stable order.
func (r *Registry) Items() []RegistryItem {
	if r == nil {
		return nil
	}
	var items []RegistryItem
	for _, k := range sortedKeys(r.Departments) {
		items = append(items, RegistryItem{Level: LevelDepartment, Department: k, Collection: r.Departments[k]})
	}
	catKeys := make([]string, 0, len(r.Categories))
	for k := range r.Categories {
		catKeys = append(catKeys, k)
	}
	sort.Strings(catKeys)
	for _, k := range catKeys {
		entry := r.Categories[k]
		if entry.Collection != nil {
			items = append(items, RegistryItem{Level: LevelCategory, Category: k, Collection: *entry.Collection})
		}
		for _, sub := range sortedKeys(entry.Subcategories) {
			items = append(items, RegistryItem{Level: LevelSubcategory, Category: k, Subcategory: sub, Collection: entry.Subcategories[sub]})
		}
	}
	return items
}

func sortedKeys(m map[string]CollectionRef) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
