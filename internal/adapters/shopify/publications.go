package shopify

import (
	"context"
	"errors"
	"fmt"
	"shopify-uploader/internal/adapters/shopify/dto"
	"strings"
)

type PublicationService interface {
	SalesChannelIDs(ctx context.Context, names []string) ([]string, error)
	Publish(ctx context.Context, resourceID string, publicationIDs []string) error
}

// DefaultSalesChannels are the channels new products and collections are
// published to.
var DefaultSalesChannels = []string{"Online Store", "Point of Sale"}

// SalesChannelIDs returns the publication ids whose names match names,
// ignoring case. Unknown names are logged and skipped.
func (c *Client) SalesChannelIDs(ctx context.Context, names []string) ([]string, error) {
	query := `
query publications($first: Int!) {
	publications(first: $first) {
		nodes { id name }
	}
}`

	var data dto.PublicationsQueryData
	if err := c.graphqlRequest(ctx, query, map[string]any{"first": 20}, &data); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		found := false
		for _, node := range data.Publications.Nodes {
			if strings.EqualFold(strings.TrimSpace(node.Name), strings.TrimSpace(name)) && node.ID != "" {
				ids = append(ids, node.ID)
				found = true
				break
			}
		}
		if !found {
			c.logWarning(fmt.Sprintf("shopify sales channel not found name=%s", name))
		}
	}
	return ids, nil
}

func (c *Client) Publish(ctx context.Context, resourceID string, publicationIDs []string) error {
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return errors.New("shopify resource id is required")
	}
	if len(publicationIDs) == 0 {
		return nil
	}

	query := `
mutation publishablePublish($id: ID!, $input: [PublicationInput!]!) {
	publishablePublish(id: $id, input: $input) {
		userErrors { field message }
	}
}`

	input := make([]map[string]any, 0, len(publicationIDs))
	for _, id := range publicationIDs {
		input = append(input, map[string]any{"publicationId": id})
	}

	var data dto.PublishablePublishData
	if err := c.graphqlRequest(ctx, query, map[string]any{
		"id":    resourceID,
		"input": input,
	}, &data); err != nil {
		return err
	}
	return userErrorsToError("publishablePublish", data.PublishablePublish.UserErrors)
}
