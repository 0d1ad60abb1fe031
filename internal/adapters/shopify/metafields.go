package shopify

import (
	"context"
	"errors"
	"fmt"
	"shopify-uploader/internal/adapters/shopify/dto"
	"shopify-uploader/internal/domain/model"
	"strings"
)

type MetafieldService interface {
	EnsureMetafieldDefinition(ctx context.Context, def MetafieldDefinition) (bool, error)
}

const (
	MetafieldOwnerProduct = "PRODUCT"
	MetafieldOwnerVariant = "PRODUCTVARIANT"

	userErrorCodeTaken = "TAKEN"
)

type MetafieldDefinition struct {
	Namespace string
	Key       string
	Type      string
	OwnerType string
}

// Input keys that differ from the store's definition keys. Keys not listed
// are sent unchanged.
var productMetafieldKeys = map[string]string{
	"laying_patterns": "layout_possibilities",
}

var variantMetafieldKeys = map[string]string{}

var metafieldLabels = map[string]string{
	"whats_included":          "What's Included",
	"nutritional_information": "Nutritional Information",
}

func ProductMetafieldKey(key string) string {
	return mappedKey(productMetafieldKeys, key)
}

func VariantMetafieldKey(key string) string {
	return mappedKey(variantMetafieldKeys, key)
}

func mappedKey(mapping map[string]string, key string) string {
	key = strings.TrimSpace(key)
	if mapped, ok := mapping[key]; ok {
		return mapped
	}
	return key
}

// KeyToLabel turns a snake_case key into the definition's display name.
func KeyToLabel(key string) string {
	if label, ok := metafieldLabels[key]; ok {
		return label
	}
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// EnsureMetafieldDefinition creates a pinned definition. It reports false
// without error when the definition already exists.
func (c *Client) EnsureMetafieldDefinition(ctx context.Context, def MetafieldDefinition) (bool, error) {
	namespace := strings.TrimSpace(def.Namespace)
	key := strings.TrimSpace(def.Key)
	if namespace == "" || key == "" || strings.TrimSpace(def.Type) == "" {
		return false, errors.New("metafield definition needs namespace, key and type")
	}
	owner := def.OwnerType
	if owner == "" {
		owner = MetafieldOwnerProduct
	}

	query := `
mutation metafieldDefinitionCreate($definition: MetafieldDefinitionInput!) {
	metafieldDefinitionCreate(definition: $definition) {
		createdDefinition { id name namespace key }
		userErrors { field message code }
	}
}`

	payload := map[string]any{
		"definition": map[string]any{
			"name":      KeyToLabel(key),
			"namespace": namespace,
			"key":       key,
			"type":      def.Type,
			"ownerType": owner,
			"pin":       true,
		},
	}

	var data dto.MetafieldDefinitionCreateData
	if err := c.graphqlRequest(ctx, query, payload, &data); err != nil {
		return false, err
	}
	err := userErrorsToError("metafieldDefinitionCreate", data.MetafieldDefinitionCreate.UserErrors)
	if err != nil {
		var ue *UserErrorsError
		if errors.As(err, &ue) && (ue.hasCode(userErrorCodeTaken) || ue.messageContains("already exists") || ue.messageContains("already been taken")) {
			c.logInfo(fmt.Sprintf("shopify metafield definition exists %s.%s owner=%s", namespace, key, owner))
			return false, nil
		}
		return false, err
	}
	c.logSuccess(fmt.Sprintf("shopify metafield definition created %s.%s owner=%s", namespace, key, owner))
	return true, nil
}

func buildMetafieldInputs(metafields []model.Metafield, mapping map[string]string) []map[string]any {
	inputs := make([]map[string]any, 0, len(metafields))
	for _, mf := range metafields {
		value := strings.TrimSpace(string(mf.Value))
		if mf.Namespace == "" || mf.Key == "" || value == "" {
			continue
		}
		inputs = append(inputs, map[string]any{
			"namespace": mf.Namespace,
			"key":       mappedKey(mapping, mf.Key),
			"type":      mf.Type,
			"value":     string(mf.Value),
		})
	}
	return inputs
}
