package ecommerce

import (
	"encoding/json"
	"time"
)

// smartStoreTimeLayout is the ISO-8601 layout used by the commerce API (KST offset)
const smartStoreTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// SmartStoreTokenResponse is the response of POST /v1/oauth2/token
type SmartStoreTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// SmartStoreErrorResponse is the common error body
type SmartStoreErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"traceId"`
}

// SmartStoreChannelProductResponse is the response of GET /v2/products/channel-products/{no}
type SmartStoreChannelProductResponse struct {
	OriginProduct struct {
		StatusType    string `json:"statusType"`
		Name          string `json:"name"`
		SalePrice     int64  `json:"salePrice"`
		StockQuantity int    `json:"stockQuantity"`
	} `json:"originProduct"`
}

// SmartStoreSalePrice is the price block of an option-stock update
type SmartStoreSalePrice struct {
	SalePrice int64 `json:"salePrice"`
}

// SmartStoreOptionStockRequest is the body of PUT /v1/products/origin-products/{no}/option-stock
type SmartStoreOptionStockRequest struct {
	ProductSalePrice *SmartStoreSalePrice `json:"productSalePrice,omitempty"`
	StockQuantity    *int                 `json:"stockQuantity,omitempty"`
}

// SmartStoreProductSearchRequest is the body of POST /v1/products/search
type SmartStoreProductSearchRequest struct {
	SearchKeywordType     string   `json:"searchKeywordType"`
	SellerManagementCodes []string `json:"sellerManagementCodes"`
	Page                  int      `json:"page"`
	Size                  int      `json:"size"`
}

// SmartStoreProductSearchResponse is the response of POST /v1/products/search
type SmartStoreProductSearchResponse struct {
	Contents []struct {
		OriginProductNo int64 `json:"originProductNo"`
		ChannelProducts []struct {
			ChannelProductNo     int64  `json:"channelProductNo"`
			SellerManagementCode string `json:"sellerManagementCode"`
			StatusType           string `json:"statusType"`
		} `json:"channelProducts"`
	} `json:"contents"`
	TotalElements int `json:"totalElements"`
}

// SmartStoreProductOrderListResponse is the response of GET /v1/pay-order/seller/product-orders
type SmartStoreProductOrderListResponse struct {
	Data struct {
		Contents   []SmartStoreProductOrderContent `json:"contents"`
		Pagination struct {
			Page    int  `json:"page"`
			Size    int  `json:"size"`
			HasNext bool `json:"hasNext"`
		} `json:"pagination"`
	} `json:"data"`
}

// SmartStoreProductOrderContent is one product order row
type SmartStoreProductOrderContent struct {
	ProductOrderID string `json:"productOrderId"`
	Content        struct {
		Order struct {
			OrderID     string `json:"orderId"`
			OrderDate   string `json:"orderDate"`
			PaymentDate string `json:"paymentDate"`
		} `json:"order"`
		ProductOrder struct {
			ProductOrderID     string `json:"productOrderId"`
			ProductOrderStatus string `json:"productOrderStatus"`
			ClaimType          string `json:"claimType"`
			Quantity           int    `json:"quantity"`
			SellerProductCode  string `json:"sellerProductCode"`
			ProductName        string `json:"productName"`
			PlaceOrderStatus   string `json:"placeOrderStatus"`
		} `json:"productOrder"`
	} `json:"content"`
	LastChangedDate string `json:"lastChangedDate"`
}

// SmartStoreConfirmRequest is the body of POST /v1/pay-order/seller/product-orders/confirm
type SmartStoreConfirmRequest struct {
	ProductOrderIDs []string `json:"productOrderIds"`
}

// SmartStoreConfirmResponse lists per product order confirmation results
type SmartStoreConfirmResponse struct {
	Data struct {
		SuccessProductOrderInfos []struct {
			ProductOrderID string `json:"productOrderId"`
		} `json:"successProductOrderInfos"`
		FailProductOrderInfos []struct {
			ProductOrderID string `json:"productOrderId"`
			Code           string `json:"code"`
			Message        string `json:"message"`
		} `json:"failProductOrderInfos"`
	} `json:"data"`
}

// smartStoreErrorDetail renders a commerce API error body
func smartStoreErrorDetail(body []byte) string {
	var e SmartStoreErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Code == "" {
		return ""
	}
	if e.TraceID != "" {
		return e.Code + ": " + e.Message + " (trace " + e.TraceID + ")"
	}
	return e.Code + ": " + e.Message
}

// parseSmartStoreTime parses API timestamps, returning the zero time when empty or malformed
func parseSmartStoreTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(smartStoreTimeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
