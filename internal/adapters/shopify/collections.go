package shopify

import (
	"context"
	"errors"
	"fmt"
	"shopify-uploader/internal/adapters/shopify/dto"
	"strings"
)

type CollectionService interface {
	FindCollectionByTitle(ctx context.Context, title string) (*dto.ShopifyCollection, error)
	CreateSmartCollection(ctx context.Context, input CollectionInput) (dto.ShopifyCollection, error)
	DeleteCollection(ctx context.Context, collectionID string) error
}

const (
	RuleColumnType = "TYPE"
	RuleColumnTag  = "TAG"

	ruleRelationEquals = "EQUALS"

	collectionSearchLimit = 5
)

// CollectionRule matches products whose Column equals Condition.
type CollectionRule struct {
	Column    string
	Condition string
}

// CollectionInput describes an automated collection. All rules must match.
type CollectionInput struct {
	Title           string
	DescriptionHTML string
	Rules           []CollectionRule
}

// FindCollectionByTitle searches by title and keeps only an exact
// case-insensitive match. It returns nil when nothing matches.
func (c *Client) FindCollectionByTitle(ctx context.Context, title string) (*dto.ShopifyCollection, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}

	query := `
query collections($first: Int!, $query: String!) {
	collections(first: $first, query: $query) {
		nodes { id title handle ruleSet { appliedDisjunctively rules { column relation condition } } }
	}
}`

	var data dto.CollectionsQueryData
	if err := c.graphqlRequest(ctx, query, map[string]any{
		"first": collectionSearchLimit,
		"query": buildSearchQuery("title", title),
	}, &data); err != nil {
		return nil, err
	}
	for _, node := range data.Collections.Nodes {
		if strings.EqualFold(strings.TrimSpace(node.Title), title) && strings.TrimSpace(node.ID) != "" {
			found := node
			return &found, nil
		}
	}
	return nil, nil
}

func (c *Client) CreateSmartCollection(ctx context.Context, input CollectionInput) (dto.ShopifyCollection, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return dto.ShopifyCollection{}, errors.New("shopify collection title is required")
	}
	if len(input.Rules) == 0 {
		return dto.ShopifyCollection{}, fmt.Errorf("shopify collection %q has no rules", title)
	}

	query := `
mutation collectionCreate($input: CollectionInput!) {
	collectionCreate(input: $input) {
		collection { id title handle }
		userErrors { field message }
	}
}`

	rules := make([]map[string]any, 0, len(input.Rules))
	for _, rule := range input.Rules {
		rules = append(rules, map[string]any{
			"column":    rule.Column,
			"relation":  ruleRelationEquals,
			"condition": rule.Condition,
		})
	}

	payload := map[string]any{
		"title": title,
		"ruleSet": map[string]any{
			"appliedDisjunctively": false,
			"rules":                rules,
		},
	}
	if strings.TrimSpace(input.DescriptionHTML) != "" {
		payload["descriptionHtml"] = input.DescriptionHTML
	}

	var data dto.CollectionCreateData
	if err := c.graphqlRequest(ctx, query, map[string]any{"input": payload}, &data); err != nil {
		return dto.ShopifyCollection{}, err
	}
	if err := userErrorsToError("collectionCreate", data.CollectionCreate.UserErrors); err != nil {
		return dto.ShopifyCollection{}, err
	}
	if data.CollectionCreate.Collection == nil || strings.TrimSpace(data.CollectionCreate.Collection.ID) == "" {
		return dto.ShopifyCollection{}, errors.New("shopify collection create returned empty id")
	}
	c.logSuccess(fmt.Sprintf("shopify collection created title=%s id=%s", title, data.CollectionCreate.Collection.ID))
	return *data.CollectionCreate.Collection, nil
}

func (c *Client) DeleteCollection(ctx context.Context, collectionID string) error {
	collectionID = strings.TrimSpace(collectionID)
	if collectionID == "" {
		return errors.New("shopify collection id is required")
	}

	query := `
mutation collectionDelete($input: CollectionDeleteInput!) {
	collectionDelete(input: $input) {
		deletedCollectionId
		userErrors { field message }
	}
}`

	var data dto.CollectionDeleteData
	if err := c.graphqlRequest(ctx, query, map[string]any{
		"input": map[string]any{"id": collectionID},
	}, &data); err != nil {
		return err
	}
	err := userErrorsToError("collectionDelete", data.CollectionDelete.UserErrors)
	if err != nil && IsNotFound(err) {
		return nil
	}
	return err
}

func buildSearchQuery(field, value string) string {
	queryValue := strings.TrimSpace(value)
	if strings.ContainsAny(queryValue, " \"") {
		queryValue = strings.ReplaceAll(queryValue, `"`, `\"`)
		queryValue = fmt.Sprintf(`"%s"`, queryValue)
	}
	return fmt.Sprintf("%s:%s", field, queryValue)
}

// RulesMatch reports whether c selects products with exactly rules. A
// collection without a rule set is curated by hand and is accepted as is.
func RulesMatch(c dto.ShopifyCollection, rules []CollectionRule) bool {
	if c.RuleSet == nil {
		return true
	}
	if c.RuleSet.AppliedDisjunctively && len(rules) > 1 {
		return false
	}
	if len(c.RuleSet.Rules) != len(rules) {
		return false
	}
	remaining := make([]dto.CollectionRule, len(c.RuleSet.Rules))
	copy(remaining, c.RuleSet.Rules)
	for _, want := range rules {
		matched := -1
		for i, got := range remaining {
			if got.Relation != "" && !strings.EqualFold(got.Relation, ruleRelationEquals) {
				continue
			}
			if strings.EqualFold(got.Column, want.Column) && strings.EqualFold(strings.TrimSpace(got.Condition), strings.TrimSpace(want.Condition)) {
				matched = i
				break
			}
		}
		if matched < 0 {
			return false
		}
		remaining = append(remaining[:matched], remaining[matched+1:]...)
	}
	return true
}
