package dto

type ShopifyCollection struct {
	ID      string             `json:"id,omitempty"`
	Title   string             `json:"title,omitempty"`
	Handle  string             `json:"handle,omitempty"`
	RuleSet *CollectionRuleSet `json:"ruleSet,omitempty"`
}

// CollectionRuleSet is nil for manually curated collections.
type CollectionRuleSet struct {
	AppliedDisjunctively bool             `json:"appliedDisjunctively"`
	Rules                []CollectionRule `json:"rules"`
}

type CollectionRule struct {
	Column    string `json:"column"`
	Relation  string `json:"relation"`
	Condition string `json:"condition"`
}

type CollectionsQueryData struct {
	Collections struct {
		Nodes    []ShopifyCollection `json:"nodes,omitempty"`
		PageInfo ShopifyPageInfo     `json:"pageInfo,omitempty"`
	} `json:"collections"`
}

type CollectionCreateData struct {
	CollectionCreate struct {
		Collection *ShopifyCollection `json:"collection"`
		UserErrors []ShopifyUserError `json:"userErrors,omitempty"`
	} `json:"collectionCreate"`
}

type CollectionDeleteData struct {
	CollectionDelete struct {
		DeletedCollectionID string             `json:"deletedCollectionId,omitempty"`
		UserErrors          []ShopifyUserError `json:"userErrors,omitempty"`
	} `json:"collectionDelete"`
}

type PublicationNode struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type PublicationsQueryData struct {
	Publications struct {
		Nodes []PublicationNode `json:"nodes,omitempty"`
	} `json:"publications"`
}

type PublishablePublishData struct {
	PublishablePublish struct {
		UserErrors []ShopifyUserError `json:"userErrors,omitempty"`
	} `json:"publishablePublish"`
}
