package ecommerce

import (
	"encoding/json"
	"strings"
)

// ShopifyInventoryLevelsResponse is the response of GET /inventory_levels.json
type ShopifyInventoryLevelsResponse struct {
	InventoryLevels []ShopifyInventoryLevel `json:"inventory_levels"`
}

// ShopifyInventoryLevel is the stock of one inventory item at one location
type ShopifyInventoryLevel struct {
	InventoryItemID int64 `json:"inventory_item_id"`
	LocationID      int64 `json:"location_id"`
	Available       *int  `json:"available"`
}

// ShopifySetInventoryRequest is the body of POST /inventory_levels/set.json
type ShopifySetInventoryRequest struct {
	LocationID      int64 `json:"location_id"`
	InventoryItemID int64 `json:"inventory_item_id"`
	Available       int   `json:"available"`
}

// ShopifyVariant is the REST representation of a product variant
type ShopifyVariant struct {
	ID              int64  `json:"id"`
	ProductID       int64  `json:"product_id,omitempty"`
	SKU             string `json:"sku,omitempty"`
	Price           string `json:"price,omitempty"`
	InventoryItemID int64  `json:"inventory_item_id,omitempty"`
}

// ShopifyVariantEnvelope wraps a variant in REST requests and responses
type ShopifyVariantEnvelope struct {
	Variant ShopifyVariant `json:"variant"`
}

// ShopifyGraphQLRequest is a GraphQL Admin API request
type ShopifyGraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// ShopifyVariantSearchResponse is the response of the variant-by-SKU query
type ShopifyVariantSearchResponse struct {
	Data struct {
		ProductVariants struct {
			Edges []struct {
				Node struct {
					ID      string `json:"id"`
					SKU     string `json:"sku"`
					Product struct {
						ID string `json:"id"`
					} `json:"product"`
					InventoryItem struct {
						ID string `json:"id"`
					} `json:"inventoryItem"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"productVariants"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// shopifyVariantBySKUQuery looks up variants by exact SKU
const shopifyVariantBySKUQuery = `query variantBySKU($query: String!) {
  productVariants(first: 5, query: $query) {
    edges { node { id sku product { id } inventoryItem { id } } }
  }
}`

// shopifyErrorDetail renders a REST error body; "errors" is either a string, a list or a map
func shopifyErrorDetail(body []byte) string {
	var e struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &e); err != nil || len(e.Errors) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Errors, &s); err == nil {
		return s
	}
	return string(e.Errors)
}

// gidID returns the numeric suffix of a GraphQL global id ("gid://shopify/ProductVariant/123")
func gidID(gid string) string {
	if i := strings.LastIndexByte(gid, '/'); i >= 0 {
		return gid[i+1:]
	}
	return gid
}
