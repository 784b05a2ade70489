package ecommerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storelink/backend/internal/domain/integration"
)

// ShopifyAdapter implements the platform ports for the Shopify Admin API.
// Stock lives on PlatformRef.InventoryID at PlatformRef.LocationID, price on PlatformRef.VariantID.
type ShopifyAdapter struct {
	config     *ShopifyConfig
	httpClient *http.Client
	caller     *RemoteCaller
}

// NewShopifyAdapter creates a Shopify adapter
func NewShopifyAdapter(config *ShopifyConfig, caller *RemoteCaller, httpClient *http.Client) (*ShopifyAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(config.TimeoutSeconds) * time.Second}
	}
	return &ShopifyAdapter{
		config:     config,
		httpClient: httpClient,
		caller:     caller,
	}, nil
}

// Code returns the platform code this adapter handles
func (a *ShopifyAdapter) Code() integration.PlatformCode {
	return integration.PlatformShopify
}

// ---------------------------------------------------------------------------
// Inventory
// ---------------------------------------------------------------------------

// GetStock reads the available quantity of the inventory item at its location
func (a *ShopifyAdapter) GetStock(ctx context.Context, ref integration.PlatformRef) (int, error) {
	itemID, locationID, err := a.inventoryKeys(ref)
	if err != nil {
		return 0, err
	}

	params := url.Values{}
	params.Set("inventory_item_ids", strconv.FormatInt(itemID, 10))
	params.Set("location_ids", strconv.FormatInt(locationID, 10))

	var resp ShopifyInventoryLevelsResponse
	err = a.caller.Do(ctx, "get stock", func(ctx context.Context, token string) error {
		return doJSON(ctx, a.httpClient, integration.PlatformShopify, "get stock", apiRequest{
			method:  http.MethodGet,
			url:     a.config.APIBaseURL + "/inventory_levels.json?" + params.Encode(),
			headers: shopifyAuth(token),
		}, shopifyErrorDetail, &resp)
	})
	if err != nil {
		return 0, err
	}

	for _, level := range resp.InventoryLevels {
		if level.InventoryItemID == itemID && level.LocationID == locationID {
			if level.Available == nil {
				return 0, nil
			}
			return *level.Available, nil
		}
	}
	return 0, fmt.Errorf("%w: inventory item %d is not stocked at location %d", integration.ErrMappingNotFound, itemID, locationID)
}

// SetStock writes an absolute available quantity
func (a *ShopifyAdapter) SetStock(ctx context.Context, ref integration.PlatformRef, quantity int) error {
	if quantity < 0 {
		return integration.NewValidationError("quantity", "must not be negative")
	}
	itemID, locationID, err := a.inventoryKeys(ref)
	if err != nil {
		return err
	}

	return a.caller.Do(ctx, "set stock", func(ctx context.Context, token string) error {
		return doJSON(ctx, a.httpClient, integration.PlatformShopify, "set stock", apiRequest{
			method: http.MethodPost,
			url:    a.config.APIBaseURL + "/inventory_levels/set.json",
			body: ShopifySetInventoryRequest{
				LocationID:      locationID,
				InventoryItemID: itemID,
				Available:       quantity,
			},
			headers: shopifyAuth(token),
		}, shopifyErrorDetail, nil)
	})
}

func (a *ShopifyAdapter) inventoryKeys(ref integration.PlatformRef) (int64, int64, error) {
	itemID, err := strconv.ParseInt(ref.InventoryID, 10, 64)
	if err != nil || itemID <= 0 {
		return 0, 0, integration.NewValidationError("inventory_id", "must be a numeric inventory item id")
	}
	location := ref.LocationID
	if location == "" {
		location = a.config.LocationID
	}
	locationID, err := strconv.ParseInt(location, 10, 64)
	if err != nil || locationID <= 0 {
		return 0, 0, integration.NewValidationError("location_id", "must be a numeric location id")
	}
	return itemID, locationID, nil
}

// ---------------------------------------------------------------------------
// Price
// ---------------------------------------------------------------------------

// GetPrice reads the variant price
func (a *ShopifyAdapter) GetPrice(ctx context.Context, ref integration.PlatformRef) (decimal.Decimal, error) {
	variantID, err := parseVariantID(ref)
	if err != nil {
		return decimal.Zero, err
	}

	var resp ShopifyVariantEnvelope
	err = a.caller.Do(ctx, "get price", func(ctx context.Context, token string) error {
		return doJSON(ctx, a.httpClient, integration.PlatformShopify, "get price", apiRequest{
			method:  http.MethodGet,
			url:     fmt.Sprintf("%s/variants/%d.json", a.config.APIBaseURL, variantID),
			headers: shopifyAuth(token),
		}, shopifyErrorDetail, &resp)
	})
	if err != nil {
		return decimal.Zero, err
	}

	price, err := decimal.NewFromString(resp.Variant.Price)
	if err != nil {
		return decimal.Zero, &integration.RemoteError{
			Platform: integration.PlatformShopify,
			Op:       "get price",
			Err:      fmt.Errorf("%w: invalid price %q", integration.ErrRemoteRejected, resp.Variant.Price),
		}
	}
	return price, nil
}

// SetPrice writes the variant price with two decimal places
func (a *ShopifyAdapter) SetPrice(ctx context.Context, ref integration.PlatformRef, price decimal.Decimal) error {
	if !price.IsPositive() {
		return integration.NewValidationError("price", "must be positive")
	}
	variantID, err := parseVariantID(ref)
	if err != nil {
		return err
	}

	return a.caller.Do(ctx, "set price", func(ctx context.Context, token string) error {
		return doJSON(ctx, a.httpClient, integration.PlatformShopify, "set price", apiRequest{
			method:  http.MethodPut,
			url:     fmt.Sprintf("%s/variants/%d.json", a.config.APIBaseURL, variantID),
			body:    ShopifyVariantEnvelope{Variant: ShopifyVariant{ID: variantID, Price: price.StringFixed(2)}},
			headers: shopifyAuth(token),
		}, shopifyErrorDetail, nil)
	})
}

func parseVariantID(ref integration.PlatformRef) (int64, error) {
	id, err := strconv.ParseInt(ref.VariantID, 10, 64)
	if err != nil || id <= 0 {
		return 0, integration.NewValidationError("variant_id", "must be a numeric variant id")
	}
	return id, nil
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// FindBySKU looks up the variant carrying the SKU through the GraphQL Admin API
func (a *ShopifyAdapter) FindBySKU(ctx context.Context, sku string) (*integration.PlatformRef, error) {
	req := ShopifyGraphQLRequest{
		Query:     shopifyVariantBySKUQuery,
		Variables: map[string]any{"query": "sku:" + strconv.Quote(sku)},
	}

	var resp ShopifyVariantSearchResponse
	err := a.caller.Do(ctx, "search variant", func(ctx context.Context, token string) error {
		return doJSON(ctx, a.httpClient, integration.PlatformShopify, "search variant", apiRequest{
			method:  http.MethodPost,
			url:     a.config.APIBaseURL + "/graphql.json",
			body:    req,
			headers: shopifyAuth(token),
		}, shopifyErrorDetail, &resp)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, &integration.RemoteError{
			Platform: integration.PlatformShopify,
			Op:       "search variant",
			Err:      fmt.Errorf("%w: %s", integration.ErrRemoteRejected, resp.Errors[0].Message),
		}
	}

	for _, edge := range resp.Data.ProductVariants.Edges {
		node := edge.Node
		if !strings.EqualFold(strings.TrimSpace(node.SKU), sku) {
			continue
		}
		return &integration.PlatformRef{
			ProductID:   gidID(node.Product.ID),
			VariantID:   gidID(node.ID),
			InventoryID: gidID(node.InventoryItem.ID),
			LocationID:  a.config.LocationID,
		}, nil
	}
	return nil, fmt.Errorf("%w: no Shopify variant with SKU %s", integration.ErrMappingNotFound, sku)
}

func shopifyAuth(token string) map[string]string {
	return map[string]string{"X-Shopify-Access-Token": token}
}

// Ensure ShopifyAdapter implements EcommercePlatform interface
var _ integration.EcommercePlatform = (*ShopifyAdapter)(nil)
