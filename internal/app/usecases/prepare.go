package usecases

import (
	"context"
	"fmt"
	"shopify-uploader/internal/adapters/ai"
	"shopify-uploader/internal/adapters/shopify"
	"shopify-uploader/internal/domain/model"
	"shopify-uploader/internal/logging"
	"sort"
	"strings"
)

const customNamespace = "custom"

// MetafieldDefinitions lists one definition per custom metafield key the
// batch uses, after input keys are mapped to store keys.
func MetafieldDefinitions(products []model.Product) []shopify.MetafieldDefinition {
	seen := map[string]shopify.MetafieldDefinition{}
	add := func(owner, key, typ string) {
		key = strings.TrimSpace(key)
		if key == "" || strings.TrimSpace(typ) == "" {
			return
		}
		id := owner + "/" + key
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = shopify.MetafieldDefinition{Namespace: customNamespace, Key: key, Type: typ, OwnerType: owner}
	}
	for _, p := range products {
		for _, mf := range p.Metafields {
			if mf.Namespace == customNamespace {
				add(shopify.MetafieldOwnerProduct, shopify.ProductMetafieldKey(mf.Key), mf.Type)
			}
		}
		for _, v := range p.Variants {
			for _, mf := range v.Metafields {
				if mf.Namespace == customNamespace {
					add(shopify.MetafieldOwnerVariant, shopify.VariantMetafieldKey(mf.Key), mf.Type)
				}
			}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	defs := make([]shopify.MetafieldDefinition, 0, len(ids))
	for _, id := range ids {
		defs = append(defs, seen[id])
	}
	return defs
}

// EnsureMetafieldDefinitions creates missing definitions. A definition that
// cannot be created is reported and the upload goes on without it.
func EnsureMetafieldDefinitions(ctx context.Context, remote shopify.MetafieldService, products []model.Product, logger logging.LoggerService) (int, error) {
	defs := MetafieldDefinitions(products)
	created := 0
	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		ok, err := remote.EnsureMetafieldDefinition(ctx, def)
		if err != nil {
			logWarning(logger, fmt.Sprintf("metafield definition %s.%s (%s): %s", def.Namespace, def.Key, def.OwnerType, shopify.ErrorMessage(err)))
			continue
		}
		if ok {
			created++
		}
	}
	logInfo(logger, fmt.Sprintf("metafield definitions checked=%d created=%d", len(defs), created))
	return created, nil
}

// EnhanceBatch rewrites descriptions and fills taxonomy fields for every
// valid item. The first failure stops the batch before anything is
// uploaded.
func EnhanceBatch(ctx context.Context, enhancer ai.Enhancer, batch *Batch, logger logging.LoggerService) error {
	enhanced := 0
	total := len(batch.ValidProducts())
	for i := range batch.Products {
		if !batch.Valid(i) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		p := &batch.Products[i]
		out, err := enhancer.EnhanceProduct(ctx, ai.EnhanceInput{
			Title:       p.Title,
			BodyHTML:    p.BodyHTML,
			ProductType: p.ProductType,
			Tags:        p.Tags,
		})
		if err != nil {
			return fmt.Errorf("enhance item %d (%s): %w", i, p.Title, err)
		}
		if err := applyEnhancement(batch, i, out); err != nil {
			return fmt.Errorf("enhance item %d (%s): %w", i, p.Title, err)
		}
		enhanced++
		logInfo(logger, fmt.Sprintf("enhanced %d/%d title=%s", enhanced, total, p.Title))
	}
	logSuccess(logger, fmt.Sprintf("ai enhancement finished items=%d", enhanced))
	return nil
}

func applyEnhancement(batch *Batch, index int, out ai.EnhanceOutput) error {
	p := &batch.Products[index]
	fields := map[string]string{}
	if out.BodyHTML != "" && out.BodyHTML != p.BodyHTML {
		p.BodyHTML = out.BodyHTML
		fields["body_html"] = out.BodyHTML
	}
	if out.ProductCategory != "" {
		p.ProductCategory = out.ProductCategory
		fields["product_category"] = out.ProductCategory
	}
	if out.ShopifyCategoryID != "" {
		p.ShopifyCategoryID = out.ShopifyCategoryID
		fields["shopify_category_id"] = out.ShopifyCategoryID
	}
	for key, value := range fields {
		if err := batch.Patch(index, key, value); err != nil {
			return err
		}
	}
	return nil
}
