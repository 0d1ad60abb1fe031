package dto

type TaxonomyCategoryNode struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Name     string `json:"name,omitempty"`
	IsLeaf   bool   `json:"isLeaf,omitempty"`
}

type TaxonomyCategoriesData struct {
	Taxonomy struct {
		Categories struct {
			Nodes    []TaxonomyCategoryNode `json:"nodes,omitempty"`
			PageInfo ShopifyPageInfo        `json:"pageInfo,omitempty"`
		} `json:"categories"`
	} `json:"taxonomy"`
}
