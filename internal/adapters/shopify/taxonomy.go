package shopify

import (
	"context"
	"fmt"
	"shopify-uploader/internal/adapters/shopify/dto"
	"strings"
)

type TaxonomyService interface {
	TaxonomyCategories(ctx context.Context) ([]dto.TaxonomyCategoryNode, error)
}

const (
	taxonomyPageSize = 250
	taxonomyMaxPages = 20
)

// TaxonomyCategories pages through the standard product taxonomy.
func (c *Client) TaxonomyCategories(ctx context.Context) ([]dto.TaxonomyCategoryNode, error) {
	query := `
query taxonomyCategories($first: Int!, $after: String) {
	taxonomy {
		categories(first: $first, after: $after) {
			nodes { id fullName name isLeaf }
			pageInfo { hasNextPage endCursor }
		}
	}
}`

	var categories []dto.TaxonomyCategoryNode
	after := ""
	for page := 0; page < taxonomyMaxPages; page++ {
		variables := map[string]any{"first": taxonomyPageSize}
		if after != "" {
			variables["after"] = after
		}
		var data dto.TaxonomyCategoriesData
		if err := c.graphqlRequest(ctx, query, variables, &data); err != nil {
			return nil, err
		}
		conn := data.Taxonomy.Categories
		categories = append(categories, conn.Nodes...)
		if !conn.PageInfo.HasNextPage || strings.TrimSpace(conn.PageInfo.EndCursor) == "" {
			break
		}
		after = conn.PageInfo.EndCursor
	}
	c.logInfo(fmt.Sprintf("shopify taxonomy loaded categories=%d", len(categories)))
	return categories, nil
}
