package shopify

import (
	"context"
	"errors"
	"fmt"
	"shopify-uploader/internal/adapters/shopify/dto"
	"shopify-uploader/internal/domain/model"
	"sort"
	"strings"
)

type ProductService interface {
	CreateProduct(ctx context.Context, product model.Product, categoryID string) (CreatedProduct, error)
	CreateVariants(ctx context.Context, productID string, product model.Product) ([]dto.ShopifyVariant, error)
	DeleteProduct(ctx context.Context, productID string) error
}

type CreatedProduct struct {
	ID     string
	Handle string
}

const (
	productStatusActive    = "ACTIVE"
	variantsStrategy       = "REMOVE_STANDALONE_VARIANT"
	defaultInventoryPolicy = "DENY"
	mediaContentTypeImage  = "IMAGE"
)

func (c *Client) CreateProduct(ctx context.Context, product model.Product, categoryID string) (CreatedProduct, error) {
	title := strings.TrimSpace(product.Title)
	if title == "" {
		return CreatedProduct{}, errors.New("shopify product title is required")
	}

	query := `
mutation productCreate($product: ProductCreateInput!, $media: [CreateMediaInput!]) {
	productCreate(product: $product, media: $media) {
		product { id handle title }
		userErrors { field message }
	}
}`

	variables := map[string]any{
		"product": buildProductInput(product, categoryID),
	}
	if media := buildMediaInput(product); len(media) > 0 {
		variables["media"] = media
	}

	var data dto.ProductCreateData
	if err := c.graphqlRequest(ctx, query, variables, &data); err != nil {
		return CreatedProduct{}, err
	}
	if err := userErrorsToError("productCreate", data.ProductCreate.UserErrors); err != nil {
		return CreatedProduct{}, err
	}
	if data.ProductCreate.Product == nil || strings.TrimSpace(data.ProductCreate.Product.ID) == "" {
		return CreatedProduct{}, errors.New("shopify product create returned empty product id")
	}
	return CreatedProduct{
		ID:     data.ProductCreate.Product.ID,
		Handle: data.ProductCreate.Product.Handle,
	}, nil
}

// CreateVariants creates every variant of product in one bulk call,
// replacing the placeholder variant the platform adds on product create.
func (c *Client) CreateVariants(ctx context.Context, productID string, product model.Product) ([]dto.ShopifyVariant, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, errors.New("shopify product id is required")
	}
	if len(product.Variants) == 0 {
		return nil, errors.New("product has no variants")
	}

	locationID := ""
	if hasInventoryQuantities(product) {
		id, err := c.primaryLocationID(ctx)
		if err != nil {
			c.logWarning(fmt.Sprintf("shopify locations lookup failed, inventory quantities skipped: %v", err))
		}
		locationID = id
	}

	query := `
mutation productVariantsBulkCreate($productId: ID!, $strategy: ProductVariantsBulkCreateStrategy, $variants: [ProductVariantsBulkInput!]!) {
	productVariantsBulkCreate(productId: $productId, strategy: $strategy, variants: $variants) {
		productVariants { id sku }
		userErrors { field message }
	}
}`

	var data dto.ProductVariantsBulkCreateData
	err := c.graphqlRequest(ctx, query, map[string]any{
		"productId": productID,
		"strategy":  variantsStrategy,
		"variants":  buildVariantInputs(product, locationID),
	}, &data)
	if err != nil {
		return nil, err
	}
	if err := userErrorsToError("productVariantsBulkCreate", data.ProductVariantsBulkCreate.UserErrors); err != nil {
		return nil, err
	}
	return data.ProductVariantsBulkCreate.ProductVariants, nil
}

// DeleteProduct removes a product. A product that no longer exists counts as
// deleted.
func (c *Client) DeleteProduct(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return errors.New("shopify product id is required")
	}

	query := `
mutation productDelete($input: ProductDeleteInput!) {
	productDelete(input: $input) {
		deletedProductId
		userErrors { field message }
	}
}`

	var data dto.ProductDeleteData
	if err := c.graphqlRequest(ctx, query, map[string]any{
		"input": map[string]any{"id": productID},
	}, &data); err != nil {
		return err
	}
	err := userErrorsToError("productDelete", data.ProductDelete.UserErrors)
	if err != nil && IsNotFound(err) {
		c.logInfo(fmt.Sprintf("shopify product already absent id=%s", productID))
		return nil
	}
	return err
}

func (c *Client) primaryLocationID(ctx context.Context) (string, error) {
	if c.locationID != "" {
		return c.locationID, nil
	}

	query := `
query locations($first: Int!) {
	locations(first: $first) {
		nodes { id name isActive }
	}
}`

	var data dto.LocationsQueryData
	if err := c.graphqlRequest(ctx, query, map[string]any{"first": 10}, &data); err != nil {
		return "", err
	}
	for _, node := range data.Locations.Nodes {
		if node.IsActive && strings.TrimSpace(node.ID) != "" {
			c.locationID = node.ID
			return c.locationID, nil
		}
	}
	return "", errors.New("shopify store has no active location")
}

func buildProductInput(product model.Product, categoryID string) map[string]any {
	input := map[string]any{
		"title":           strings.TrimSpace(product.Title),
		"descriptionHtml": product.BodyHTML,
		"vendor":          product.Vendor,
		"productType":     product.ProductType,
		"status":          productStatusActive,
	}
	if categoryID = strings.TrimSpace(categoryID); categoryID != "" {
		input["category"] = categoryID
	}
	if len(product.Tags) > 0 {
		input["tags"] = []string(product.Tags)
	}

	optionValues := product.UniqueOptionValues()
	if len(optionValues) > 0 {
		options := make([]map[string]any, 0, len(optionValues))
		for _, name := range product.OptionNames() {
			values, ok := optionValues[name]
			if !ok {
				continue
			}
			entries := make([]map[string]any, 0, len(values))
			for _, v := range values {
				entries = append(entries, map[string]any{"name": v})
			}
			options = append(options, map[string]any{"name": name, "values": entries})
		}
		input["productOptions"] = options
	}

	if metafields := buildMetafieldInputs(product.Metafields, productMetafieldKeys); len(metafields) > 0 {
		input["metafields"] = metafields
	}
	return input
}

func buildMediaInput(product model.Product) []map[string]any {
	images := append([]model.Image(nil), product.Images...)
	sort.SliceStable(images, func(i, j int) bool {
		return images[i].Position < images[j].Position
	})
	media := make([]map[string]any, 0, len(images))
	for _, img := range images {
		src := strings.TrimSpace(img.Src)
		if src == "" {
			continue
		}
		media = append(media, map[string]any{
			"originalSource":   src,
			"alt":              img.Alt,
			"mediaContentType": mediaContentTypeImage,
		})
	}
	return media
}

func buildVariantInputs(product model.Product, locationID string) []map[string]any {
	optionNames := product.OptionNames()
	inputs := make([]map[string]any, 0, len(product.Variants))
	for _, variant := range product.Variants {
		input := map[string]any{
			"inventoryPolicy": defaultInventoryPolicy,
			"taxable":         variant.IsTaxable(),
		}
		if variant.Price != nil {
			input["price"] = variant.Price.StringFixed(2)
		}
		if variant.Barcode != "" {
			input["barcode"] = variant.Barcode
		}
		if variant.CompareAtPrice != nil && variant.CompareAtPrice.IsPositive() {
			input["compareAtPrice"] = variant.CompareAtPrice.StringFixed(2)
		}

		item := map[string]any{
			"tracked":          true,
			"requiresShipping": true,
		}
		if sku := strings.TrimSpace(variant.SKU); sku != "" {
			item["sku"] = sku
		}
		if variant.Weight != nil && variant.Weight.IsPositive() {
			item["measurement"] = map[string]any{
				"weight": map[string]any{
					"value": variant.Weight.InexactFloat64(),
					"unit":  WeightUnit(variant.WeightUnit),
				},
			}
		}
		input["inventoryItem"] = item

		if locationID != "" && variant.InventoryQuantity != nil {
			input["inventoryQuantities"] = []map[string]any{{
				"availableQuantity": *variant.InventoryQuantity,
				"locationId":        locationID,
			}}
		}

		values := variant.OptionValues()
		optionInputs := make([]map[string]any, 0, len(optionNames))
		for i, name := range optionNames {
			if i >= len(values) {
				break
			}
			if v := strings.TrimSpace(values[i]); v != "" {
				optionInputs = append(optionInputs, map[string]any{"optionName": name, "name": v})
			}
		}
		if len(optionInputs) > 0 {
			input["optionValues"] = optionInputs
		}

		if metafields := buildMetafieldInputs(variant.Metafields, variantMetafieldKeys); len(metafields) > 0 {
			input["metafields"] = metafields
		}
		inputs = append(inputs, input)
	}
	return inputs
}

func hasInventoryQuantities(product model.Product) bool {
	for _, v := range product.Variants {
		if v.InventoryQuantity != nil {
			return true
		}
	}
	return false
}

// WeightUnit maps the loose units found in product feeds onto the Admin API
// enum. Unknown units fall back to pounds.
func WeightUnit(unit string) string {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "kg", "kgs", "kilogram", "kilograms":
		return "KILOGRAMS"
	case "g", "gram", "grams":
		return "GRAMS"
	case "oz", "ounce", "ounces":
		return "OUNCES"
	default:
		return "POUNDS"
	}
}
