package ecommerce

import (
	"errors"
	"strings"
)

// ShopifyConfig holds configuration for the Shopify Admin API
type ShopifyConfig struct {
	// ShopDomain is the myshopify.com domain of the store
	ShopDomain string
	// AccessToken is the Admin API access token of the custom app
	AccessToken string
	// APIVersion is the dated Admin API version
	APIVersion string
	// LocationID is the inventory location used when a mapping does not name one
	LocationID string
	// APIBaseURL overrides https://{ShopDomain}/admin/api/{APIVersion}
	APIBaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// ShopifyDefaultAPIVersion is the Admin API version used when none is configured
const ShopifyDefaultAPIVersion = "2025-01"

// Errors for Shopify configuration
var (
	ErrShopifyConfigMissingShopDomain  = errors.New("shopify: shop domain is required")
	ErrShopifyConfigMissingAccessToken = errors.New("shopify: access token is required")
)

// NewShopifyConfig creates a Shopify configuration with defaults
func NewShopifyConfig(shopDomain, accessToken, locationID string) *ShopifyConfig {
	return &ShopifyConfig{
		ShopDomain:     shopDomain,
		AccessToken:    accessToken,
		APIVersion:     ShopifyDefaultAPIVersion,
		LocationID:     locationID,
		TimeoutSeconds: 30,
	}
}

// Validate validates the configuration and fills defaults
func (c *ShopifyConfig) Validate() error {
	if c.ShopDomain == "" && c.APIBaseURL == "" {
		return ErrShopifyConfigMissingShopDomain
	}
	if c.AccessToken == "" {
		return ErrShopifyConfigMissingAccessToken
	}
	if c.APIVersion == "" {
		c.APIVersion = ShopifyDefaultAPIVersion
	}
	if c.APIBaseURL == "" {
		domain := strings.TrimSuffix(strings.TrimPrefix(c.ShopDomain, "https://"), "/")
		c.APIBaseURL = "https://" + domain + "/admin/api/" + c.APIVersion
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
