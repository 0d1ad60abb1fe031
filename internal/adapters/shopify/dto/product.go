package dto

type ShopifyProduct struct {
	ID     string `json:"id,omitempty"`
	Title  string `json:"title,omitempty"`
	Handle string `json:"handle,omitempty"`
}

type ShopifyVariant struct {
	ID  string `json:"id,omitempty"`
	SKU string `json:"sku,omitempty"`
}

type ProductCreateData struct {
	ProductCreate struct {
		Product    *ShopifyProduct    `json:"product"`
		UserErrors []ShopifyUserError `json:"userErrors,omitempty"`
	} `json:"productCreate"`
}

type ProductVariantsBulkCreateData struct {
	ProductVariantsBulkCreate struct {
		ProductVariants []ShopifyVariant   `json:"productVariants,omitempty"`
		UserErrors      []ShopifyUserError `json:"userErrors,omitempty"`
	} `json:"productVariantsBulkCreate"`
}

type ProductDeleteData struct {
	ProductDelete struct {
		DeletedProductID string             `json:"deletedProductId,omitempty"`
		UserErrors       []ShopifyUserError `json:"userErrors,omitempty"`
	} `json:"productDelete"`
}

type LocationNode struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	IsActive bool   `json:"isActive,omitempty"`
}

type LocationsQueryData struct {
	Locations struct {
		Nodes []LocationNode `json:"nodes,omitempty"`
	} `json:"locations"`
}
