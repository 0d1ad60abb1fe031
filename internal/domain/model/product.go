package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type Product struct {
	Title             string      `json:"title" validate:"required"`
	BodyHTML          string      `json:"body_html,omitempty"`
	Vendor            string      `json:"vendor,omitempty"`
	ProductType       string      `json:"product_type,omitempty"`
	Tags              Tags        `json:"tags,omitempty"`
	ProductCategory   string      `json:"product_category,omitempty"`
	ShopifyCategoryID string      `json:"shopify_category_id,omitempty"`
	Options           []Option    `json:"options,omitempty" validate:"max=3,dive"`
	Variants          []Variant   `json:"variants" validate:"required,min=1,dive"`
	Images            []Image     `json:"images,omitempty" validate:"dive"`
	Metafields        []Metafield `json:"metafields,omitempty" validate:"dive"`
}

type Option struct {
	Name   string   `json:"name" validate:"required"`
	Values []string `json:"values,omitempty"`
}

type Variant struct {
	SKU               string           `json:"sku" validate:"required"`
	Price             *decimal.Decimal `json:"price" validate:"required"`
	CompareAtPrice    *decimal.Decimal `json:"compare_at_price,omitempty"`
	Option1           string           `json:"option1" validate:"required"`
	Option2           string           `json:"option2,omitempty"`
	Option3           string           `json:"option3,omitempty"`
	Barcode           string           `json:"barcode,omitempty"`
	Taxable           *bool            `json:"taxable,omitempty"`
	Weight            *decimal.Decimal `json:"weight,omitempty"`
	WeightUnit        string           `json:"weight_unit,omitempty"`
	InventoryQuantity *int             `json:"inventory_quantity,omitempty"`
	Metafields        []Metafield      `json:"metafields,omitempty" validate:"dive"`
}

type Image struct {
	Src      string `json:"src" validate:"required"`
	Alt      string `json:"alt,omitempty"`
	Position int    `json:"position,omitempty"`
}

type Metafield struct {
	Namespace string         `json:"namespace" validate:"required"`
	Key       string         `json:"key" validate:"required"`
	Value     MetafieldValue `json:"value"`
	Type      string         `json:"type" validate:"required"`
}

// Tags accepts either a JSON array or a comma separated string.
type Tags []string

func (t *Tags) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = nil
		return nil
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*t = splitTags(raw)
		return nil
	}
	var list []any
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("tags: %w", err)
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s != "" {
			out = append(out, s)
		}
	}
	*t = out
	return nil
}

func splitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MetafieldValue holds the string form Shopify expects. Non-string JSON
// values (lists, objects, numbers) are kept as compact JSON text.
type MetafieldValue string

func (v *MetafieldValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = MetafieldValue(s)
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*v = MetafieldValue(buf.String())
	return nil
}

func (v Variant) OptionValues() []string {
	return []string{v.Option1, v.Option2, v.Option3}
}

func (v Variant) IsTaxable() bool {
	return v.Taxable == nil || *v.Taxable
}

// OptionNames returns declared option names in order. Products that declare
// no options but carry option1 values get the platform default "Title".
func (p Product) OptionNames() []string {
	names := make([]string, 0, len(p.Options))
	for _, o := range p.Options {
		if n := strings.TrimSpace(o.Name); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 && len(p.Variants) > 0 {
		names = append(names, "Title")
	}
	return names
}

// UniqueOptionValues collects, per option name, the sorted distinct values
// used by the variants.
func (p Product) UniqueOptionValues() map[string][]string {
	names := p.OptionNames()
	seen := make(map[string]map[string]struct{}, len(names))
	for _, v := range p.Variants {
		values := v.OptionValues()
		for i, name := range names {
			if i >= len(values) {
				break
			}
			val := strings.TrimSpace(values[i])
			if val == "" {
				continue
			}
			if seen[name] == nil {
				seen[name] = make(map[string]struct{})
			}
			seen[name][val] = struct{}{}
		}
	}
	out := make(map[string][]string, len(seen))
	for name, set := range seen {
		list := make([]string, 0, len(set))
		for val := range set {
			list = append(list, val)
		}
		sort.Strings(list)
		out[name] = list
	}
	return out
}

// CheckOptionValues reports the first variant whose option selections are not
// declared in the product options. Options without declared values accept
// any selection.
func (p Product) CheckOptionValues() error {
	for vi, v := range p.Variants {
		values := v.OptionValues()
		for oi, opt := range p.Options {
			if oi >= len(values) || len(opt.Values) == 0 {
				continue
			}
			selected := strings.TrimSpace(values[oi])
			if selected == "" {
				continue
			}
			if !containsFold(opt.Values, selected) {
				return fmt.Errorf("variant %d (sku %s): value %q is not declared for option %q", vi+1, v.SKU, selected, opt.Name)
			}
		}
		for oi := len(p.Options); oi < len(values); oi++ {
			if len(p.Options) > 0 && strings.TrimSpace(values[oi]) != "" {
				return fmt.Errorf("variant %d (sku %s): option%d set but product declares %d options", vi+1, v.SKU, oi+1, len(p.Options))
			}
		}
	}
	return nil
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), value) {
			return true
		}
	}
	return false
}
