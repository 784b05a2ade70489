package ecommerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storelink/backend/internal/domain/integration"
)

// ErrSmartStoreInvalidProductID indicates an invalid product number
var ErrSmartStoreInvalidProductID = errors.New("smartstore: invalid product number")

// SmartStoreAdapter implements the platform ports for the Naver Commerce API.
// PlatformRef.ProductID is the origin product number and PlatformRef.VariantID
// the channel product number.
type SmartStoreAdapter struct {
	config     *SmartStoreConfig
	httpClient *http.Client
	caller     *RemoteCaller
}

// NewSmartStoreAdapter creates a SmartStore adapter
func NewSmartStoreAdapter(config *SmartStoreConfig, caller *RemoteCaller, httpClient *http.Client) (*SmartStoreAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(config.TimeoutSeconds) * time.Second}
	}
	return &SmartStoreAdapter{
		config:     config,
		httpClient: httpClient,
		caller:     caller,
	}, nil
}

// Code returns the platform code this adapter handles
func (a *SmartStoreAdapter) Code() integration.PlatformCode {
	return integration.PlatformSmartStore
}

// validateProductNo validates that a string is a numeric product number
func validateProductNo(id string) error {
	if id == "" {
		return ErrSmartStoreInvalidProductID
	}
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return fmt.Errorf("%w: %s", ErrSmartStoreInvalidProductID, id)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Inventory and price
// ---------------------------------------------------------------------------

// GetStock reads the stock quantity of the channel product
func (a *SmartStoreAdapter) GetStock(ctx context.Context, ref integration.PlatformRef) (int, error) {
	product, err := a.channelProduct(ctx, ref, "get stock")
	if err != nil {
		return 0, err
	}
	return product.OriginProduct.StockQuantity, nil
}

// SetStock writes an absolute stock quantity on the origin product
func (a *SmartStoreAdapter) SetStock(ctx context.Context, ref integration.PlatformRef, quantity int) error {
	if quantity < 0 {
		return integration.NewValidationError("quantity", "must not be negative")
	}
	return a.updateOptionStock(ctx, ref, "set stock", SmartStoreOptionStockRequest{StockQuantity: &quantity})
}

// GetPrice reads the sale price (KRW) of the channel product
func (a *SmartStoreAdapter) GetPrice(ctx context.Context, ref integration.PlatformRef) (decimal.Decimal, error) {
	product, err := a.channelProduct(ctx, ref, "get price")
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(product.OriginProduct.SalePrice), nil
}

// SetPrice writes the sale price. KRW has no minor unit, so the price is rounded to a whole won.
func (a *SmartStoreAdapter) SetPrice(ctx context.Context, ref integration.PlatformRef, price decimal.Decimal) error {
	if !price.IsPositive() {
		return integration.NewValidationError("price", "must be positive")
	}
	body := SmartStoreOptionStockRequest{
		ProductSalePrice: &SmartStoreSalePrice{SalePrice: price.Round(0).IntPart()},
	}
	return a.updateOptionStock(ctx, ref, "set price", body)
}

func (a *SmartStoreAdapter) channelProduct(ctx context.Context, ref integration.PlatformRef, op string) (*SmartStoreChannelProductResponse, error) {
	if err := validateProductNo(ref.VariantID); err != nil {
		return nil, integration.NewValidationError("channel_product_no", err.Error())
	}

	var resp SmartStoreChannelProductResponse
	err := a.caller.Do(ctx, op, func(ctx context.Context, token string) error {
		return doJSON(ctx, a.httpClient, integration.PlatformSmartStore, op, apiRequest{
			method:  http.MethodGet,
			url:     a.config.APIBaseURL + "/v2/products/channel-products/" + ref.VariantID,
			headers: bearer(token),
		}, smartStoreErrorDetail, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *SmartStoreAdapter) updateOptionStock(ctx context.Context, ref integration.PlatformRef, op string, body SmartStoreOptionStockRequest) error {
	if err := validateProductNo(ref.ProductID); err != nil {
		return integration.NewValidationError("origin_product_no", err.Error())
	}
	return a.caller.Do(ctx, op, func(ctx context.Context, token string) error {
		return doJSON(ctx, a.httpClient, integration.PlatformSmartStore, op, apiRequest{
			method:  http.MethodPut,
			url:     a.config.APIBaseURL + "/v1/products/origin-products/" + ref.ProductID + "/option-stock",
			body:    body,
			headers: bearer(token),
		}, smartStoreErrorDetail, nil)
	})
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// FindBySKU searches products by seller management code
func (a *SmartStoreAdapter) FindBySKU(ctx context.Context, sku string) (*integration.PlatformRef, error) {
	req := SmartStoreProductSearchRequest{
		SearchKeywordType:     "SELLER_CODE",
		SellerManagementCodes: []string{sku},
		Page:                  1,
		Size:                  10,
	}

	var resp SmartStoreProductSearchResponse
	err := a.caller.Do(ctx, "search product", func(ctx context.Context, token string) error {
		return doJSON(ctx, a.httpClient, integration.PlatformSmartStore, "search product", apiRequest{
			method:  http.MethodPost,
			url:     a.config.APIBaseURL + "/v1/products/search",
			body:    req,
			headers: bearer(token),
		}, smartStoreErrorDetail, &resp)
	})
	if err != nil {
		return nil, err
	}

	for _, content := range resp.Contents {
		for _, channel := range content.ChannelProducts {
			if !strings.EqualFold(strings.TrimSpace(channel.SellerManagementCode), sku) {
				continue
			}
			return &integration.PlatformRef{
				ProductID: strconv.FormatInt(content.OriginProductNo, 10),
				VariantID: strconv.FormatInt(channel.ChannelProductNo, 10),
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: no SmartStore product with seller code %s", integration.ErrMappingNotFound, sku)
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// ListOrders fetches one page of product orders changed in the query window.
// Product order rows are grouped into orders in the order they were returned.
func (a *SmartStoreAdapter) ListOrders(ctx context.Context, query integration.OrderQuery) (*integration.OrderPage, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("from", query.From.Format(smartStoreTimeLayout))
	params.Set("to", query.To.Format(smartStoreTimeLayout))
	params.Set("rangeType", "PAYED_DATETIME")
	params.Set("page", strconv.Itoa(query.Page))
	params.Set("pageSize", strconv.Itoa(query.PageSize))
	if len(query.Statuses) > 0 {
		statuses := make([]string, len(query.Statuses))
		for i, s := range query.Statuses {
			statuses[i] = string(s)
		}
		params.Set("productOrderStatuses", strings.Join(statuses, ","))
	}

	var resp SmartStoreProductOrderListResponse
	err := a.caller.Do(ctx, "list orders", func(ctx context.Context, token string) error {
		return doJSON(ctx, a.httpClient, integration.PlatformSmartStore, "list orders", apiRequest{
			method:  http.MethodGet,
			url:     a.config.APIBaseURL + "/v1/pay-order/seller/product-orders?" + params.Encode(),
			headers: bearer(token),
		}, smartStoreErrorDetail, &resp)
	})
	if err != nil {
		return nil, err
	}

	return &integration.OrderPage{
		Orders:   groupProductOrders(resp.Data.Contents),
		Page:     query.Page,
		PageSize: query.PageSize,
		Fetched:  len(resp.Data.Contents),
	}, nil
}

// ConfirmOrders acknowledges product orders on the platform
func (a *SmartStoreAdapter) ConfirmOrders(ctx context.Context, lineIDs []string) error {
	if len(lineIDs) == 0 {
		return nil
	}

	var resp SmartStoreConfirmResponse
	err := a.caller.Do(ctx, "confirm orders", func(ctx context.Context, token string) error {
		return doJSON(ctx, a.httpClient, integration.PlatformSmartStore, "confirm orders", apiRequest{
			method:  http.MethodPost,
			url:     a.config.APIBaseURL + "/v1/pay-order/seller/product-orders/confirm",
			body:    SmartStoreConfirmRequest{ProductOrderIDs: lineIDs},
			headers: bearer(token),
		}, smartStoreErrorDetail, &resp)
	})
	if err != nil {
		return err
	}

	if failed := resp.Data.FailProductOrderInfos; len(failed) > 0 {
		ids := make([]string, len(failed))
		for i, f := range failed {
			ids[i] = f.ProductOrderID + " (" + f.Code + ")"
		}
		return &integration.RemoteError{
			Platform: integration.PlatformSmartStore,
			Op:       "confirm orders",
			Err:      fmt.Errorf("%w: %s", integration.ErrRemoteRejected, strings.Join(ids, ", ")),
		}
	}
	return nil
}

func groupProductOrders(rows []SmartStoreProductOrderContent) []integration.RemoteOrder {
	orders := make([]integration.RemoteOrder, 0, len(rows))
	index := make(map[string]int, len(rows))

	for _, row := range rows {
		po := row.Content.ProductOrder
		lineID := po.ProductOrderID
		if lineID == "" {
			lineID = row.ProductOrderID
		}
		orderID := row.Content.Order.OrderID
		if orderID == "" {
			orderID = lineID
		}

		line := integration.OrderLine{
			LineID:    lineID,
			SKU:       strings.TrimSpace(po.SellerProductCode),
			Quantity:  po.Quantity,
			Status:    integration.OrderStatus(po.ProductOrderStatus),
			ClaimType: mapSmartStoreClaimType(po.ClaimType),
		}

		i, ok := index[orderID]
		if !ok {
			changedAt := parseSmartStoreTime(row.LastChangedDate)
			if changedAt.IsZero() {
				changedAt = parseSmartStoreTime(row.Content.Order.PaymentDate)
			}
			orders = append(orders, integration.RemoteOrder{
				OrderID:   orderID,
				Status:    line.Status,
				ChangedAt: changedAt,
			})
			i = len(orders) - 1
			index[orderID] = i
		}
		orders[i].Lines = append(orders[i].Lines, line)
	}
	return orders
}

// mapSmartStoreClaimType maps the API claim type; only pending cancel/return/exchange claims exclude a line
func mapSmartStoreClaimType(claim string) integration.ClaimType {
	switch claim {
	case "CANCEL", "ADMIN_CANCEL":
		return integration.ClaimCancel
	case "RETURN":
		return integration.ClaimReturn
	case "EXCHANGE":
		return integration.ClaimExchange
	default:
		return integration.ClaimNone
	}
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// Ensure SmartStoreAdapter implements the platform ports
var (
	_ integration.EcommercePlatform = (*SmartStoreAdapter)(nil)
	_ integration.OrderSource       = (*SmartStoreAdapter)(nil)
)
