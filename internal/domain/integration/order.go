package integration

import (
	"time"
)

// OrderStatus is the remote status of an order line
type OrderStatus string

const (
	OrderStatusPaymentWaiting   OrderStatus = "PAYMENT_WAITING"
	OrderStatusPayed            OrderStatus = "PAYED"
	OrderStatusDelivering       OrderStatus = "DELIVERING"
	OrderStatusDelivered        OrderStatus = "DELIVERED"
	OrderStatusPurchaseDecided  OrderStatus = "PURCHASE_DECIDED"
	OrderStatusExchanged        OrderStatus = "EXCHANGED"
	OrderStatusCanceled         OrderStatus = "CANCELED"
	OrderStatusReturned         OrderStatus = "RETURNED"
	OrderStatusCanceledNoPaying OrderStatus = "CANCELED_BY_NOPAYMENT"
)

// IsNegativeTerminal returns true for canceled, returned and exchanged orders.
// Such orders are acknowledged but never decrement stock.
func (s OrderStatus) IsNegativeTerminal() bool {
	switch s {
	case OrderStatusCanceled, OrderStatusReturned, OrderStatusExchanged, OrderStatusCanceledNoPaying:
		return true
	}
	return false
}

// ClaimType is a pending after-sale claim on an order line
type ClaimType string

const (
	ClaimNone     ClaimType = ""
	ClaimCancel   ClaimType = "CANCEL"
	ClaimReturn   ClaimType = "RETURN"
	ClaimExchange ClaimType = "EXCHANGE"
)

// OrderLine is one line item of a remote order
type OrderLine struct {
	LineID    string
	SKU       string
	Quantity  int
	Status    OrderStatus
	ClaimType ClaimType
}

// IsExcluded returns true if the line must not decrement stock
func (l OrderLine) IsExcluded() bool {
	return l.Status.IsNegativeTerminal() || l.ClaimType != ClaimNone
}

// RemoteOrder is an order changed on the marketplace
type RemoteOrder struct {
	OrderID   string
	Status    OrderStatus
	ChangedAt time.Time
	Lines     []OrderLine
}

// IsExcluded returns true if the whole order is in a negative terminal state
func (o RemoteOrder) IsExcluded() bool {
	if o.Status.IsNegativeTerminal() {
		return true
	}
	for _, l := range o.Lines {
		if !l.IsExcluded() {
			return false
		}
	}
	return len(o.Lines) > 0
}

// Order list paging limits
const (
	DefaultOrderPageSize = 100
	MaxOrderPageSize     = 300
)

// OrderQuery requests one page of orders changed in [From, To)
type OrderQuery struct {
	From     time.Time
	To       time.Time
	Statuses []OrderStatus
	Page     int
	PageSize int
}

// Validate checks the window and applies paging defaults
func (q *OrderQuery) Validate() error {
	if q.From.IsZero() || q.To.IsZero() {
		return NewValidationError("window", "from and to are required")
	}
	if !q.From.Before(q.To) {
		return NewValidationError("window", "from must be before to")
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultOrderPageSize
	}
	if q.PageSize > MaxOrderPageSize {
		q.PageSize = MaxOrderPageSize
	}
	return nil
}

// OrderPage is one page of the remote order list.
// Fetched counts raw remote rows; a page is the last one when Fetched < PageSize.
type OrderPage struct {
	Orders   []RemoteOrder
	Page     int
	PageSize int
	Fetched  int
}

// IsLast returns true if no further page should be requested
func (p *OrderPage) IsLast() bool {
	return p.Fetched < p.PageSize
}
