package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	appintegration "github.com/storelink/backend/internal/application/integration"
	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/interfaces/http/dto"
	"github.com/storelink/backend/internal/interfaces/http/router"
)

// InventoryService adjusts stock and reads the transaction log
type InventoryService interface {
	Adjust(ctx context.Context, cmd appintegration.AdjustCommand) (*appintegration.AdjustResult, error)
	TransactionHistory(ctx context.Context, sku string, page, pageSize int) ([]integration.InventoryTransaction, int64, error)
}

// InventoryHandler handles manual stock adjustments
type InventoryHandler struct {
	BaseHandler
	service InventoryService
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(service InventoryService) *InventoryHandler {
	return &InventoryHandler{service: service}
}

// RegisterRoutes mounts the inventory routes under /inventory
func (h *InventoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	inventory := router.NewDomainGroup("inventory", "/inventory")
	inventory.POST("/adjust", h.Adjust)
	inventory.GET("/:sku/transactions", h.Transactions)
	inventory.RegisterRoutes(rg)
}

// Adjust applies a manual adjustment on one or both platforms.
// Full success answers 200, success on some platforms 207 and failure on
// every platform the status of the failure class. Per-platform outcomes are
// returned in data in every case.
func (h *InventoryHandler) Adjust(c *gin.Context) {
	var req appintegration.AdjustInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.service.Adjust(c.Request.Context(), req.ToCommand())
	if err != nil {
		if result == nil {
			h.HandleError(c, err)
			return
		}
		// remote stock may already have changed
		h.adjustFailed(c, err, appintegration.ToAdjustResponse(result), "Adjustment applied but could not be recorded")
		return
	}

	resp := appintegration.ToAdjustResponse(result)
	failure := result.Err()
	switch {
	case failure == nil:
		h.Success(c, resp)
	case errors.Is(failure, integration.ErrPartialFailure):
		h.Partial(c, resp, failure)
	default:
		h.adjustFailed(c, failure, resp, "Adjustment failed on every platform")
	}
}

// adjustFailed answers the status of err with the per-platform outcomes in data
func (h *InventoryHandler) adjustFailed(c *gin.Context, err error, resp any, internalMessage string) {
	_ = c.Error(err)
	code := dto.CodeForError(err)
	message := err.Error()
	if code == dto.ErrCodeInternal {
		message = internalMessage
	}
	out := dto.NewErrorResponseWithRequestID(code, message, getRequestID(c))
	out.Data = resp
	c.JSON(dto.GetHTTPStatus(code), out)
}

// Transactions returns a page of the SKU's inventory transactions, newest first
func (h *InventoryHandler) Transactions(c *gin.Context) {
	var page dto.ListRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		h.BindingError(c, err)
		return
	}
	page.Normalize()

	txs, total, err := h.service.TransactionHistory(c.Request.Context(), c.Param("sku"), page.Page, page.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, appintegration.ToTransactionResponses(txs), total, page.Page, page.PageSize)
}
