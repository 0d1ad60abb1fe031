package model

import "strings"

// Triple is the Department/Category/Subcategory classification of a product.
type Triple struct {
	Department  string
	Category    string
	Subcategory string
}

const (
	categoryMetafieldKey    = "product_category"
	subcategoryMetafieldKey = "product_subcategory"
	hierarchySeparator      = ">"
)

// ExtractTriple derives the classification from product_type plus, in order
// of preference, the custom category metafields, a "Category > Subcategory"
// tag, or the first two tags.
func ExtractTriple(p Product) Triple {
	t := Triple{Department: strings.TrimSpace(p.ProductType)}

	for _, mf := range p.Metafields {
		if mf.Namespace != "custom" {
			continue
		}
		switch mf.Key {
		case categoryMetafieldKey:
			t.Category = strings.TrimSpace(string(mf.Value))
		case subcategoryMetafieldKey:
			t.Subcategory = strings.TrimSpace(string(mf.Value))
		}
	}
	if t.Category != "" {
		return t
	}

	for _, tag := range p.Tags {
		if !strings.Contains(tag, hierarchySeparator) {
			continue
		}
		parts := strings.SplitN(tag, hierarchySeparator, 2)
		t.Category = strings.TrimSpace(parts[0])
		t.Subcategory = strings.TrimSpace(parts[1])
		if t.Category != "" {
			return t
		}
	}

	if len(p.Tags) > 0 {
		t.Category = strings.TrimSpace(p.Tags[0])
	}
	if len(p.Tags) > 1 {
		t.Subcategory = strings.TrimSpace(p.Tags[1])
	}
	return t
}

// SubcategoryKey identifies a subcategory collection. Subcategories are
// scoped to their category.
func (t Triple) SubcategoryKey() string {
	return strings.ToLower(t.Category) + "_" + strings.ToLower(t.Subcategory)
}
