package dto

type MetafieldDefinitionNode struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Key       string `json:"key,omitempty"`
}

type MetafieldDefinitionCreateData struct {
	MetafieldDefinitionCreate struct {
		CreatedDefinition *MetafieldDefinitionNode `json:"createdDefinition,omitempty"`
		UserErrors        []ShopifyUserError       `json:"userErrors,omitempty"`
	} `json:"metafieldDefinitionCreate"`
}
