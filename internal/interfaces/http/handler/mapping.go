package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	appintegration "github.com/storelink/backend/internal/application/integration"
	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/interfaces/http/dto"
	"github.com/storelink/backend/internal/interfaces/http/router"
)

// MappingService manages product mappings
type MappingService interface {
	CreateMapping(ctx context.Context, req appintegration.CreateMappingRequest) (*integration.ProductMapping, error)
	GetMapping(ctx context.Context, sku string) (*integration.ProductMapping, error)
	ListMappings(ctx context.Context, filter appintegration.MappingFilter) ([]integration.ProductMapping, int64, error)
	UpdatePolicies(ctx context.Context, sku string, req appintegration.UpdatePoliciesRequest) (*integration.ProductMapping, error)
	DeleteMapping(ctx context.Context, sku string) error
	DiscoverMapping(ctx context.Context, sku string) (*integration.ProductMapping, error)
}

// MappingHandler handles product mapping endpoints
type MappingHandler struct {
	BaseHandler
	service MappingService
}

// NewMappingHandler creates a new MappingHandler
func NewMappingHandler(service MappingService) *MappingHandler {
	return &MappingHandler{service: service}
}

// RegisterRoutes mounts the mapping routes under /mappings
func (h *MappingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	mappings := router.NewDomainGroup("mappings", "/mappings")
	mappings.GET("", h.List)
	mappings.POST("", h.Create)
	mappings.GET("/:sku", h.Get)
	mappings.DELETE("/:sku", h.Delete)
	mappings.PUT("/:sku/policies", h.UpdatePolicies)
	mappings.POST("/:sku/discover", h.Discover)
	mappings.RegisterRoutes(rg)
}

// Create links a SKU to its platform listings by hand
func (h *MappingHandler) Create(c *gin.Context) {
	var req appintegration.CreateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	mapping, err := h.service.CreateMapping(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, appintegration.ToMappingResponse(mapping))
}

// Get returns one mapping by SKU
func (h *MappingHandler) Get(c *gin.Context) {
	mapping, err := h.service.GetMapping(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToMappingResponse(mapping))
}

// List returns a page of mappings filtered by status and SKU/name search
func (h *MappingHandler) List(c *gin.Context) {
	var filter appintegration.MappingFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindingError(c, err)
		return
	}
	page := dto.ListRequest{Page: filter.Page, PageSize: filter.PageSize}
	page.Normalize()
	filter.Page, filter.PageSize = page.Page, page.PageSize

	mappings, total, err := h.service.ListMappings(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]appintegration.MappingResponse, len(mappings))
	for i := range mappings {
		out[i] = appintegration.ToMappingResponse(&mappings[i])
	}
	h.SuccessWithMeta(c, out, total, filter.Page, filter.PageSize)
}

// UpdatePolicies replaces the pricing and inventory policies of a mapping
func (h *MappingHandler) UpdatePolicies(c *gin.Context) {
	var req appintegration.UpdatePoliciesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	mapping, err := h.service.UpdatePolicies(c.Request.Context(), c.Param("sku"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToMappingResponse(mapping))
}

// Delete soft-deletes a mapping
func (h *MappingHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteMapping(c.Request.Context(), c.Param("sku")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Discover searches both platforms for the SKU and links what it finds
func (h *MappingHandler) Discover(c *gin.Context) {
	mapping, err := h.service.DiscoverMapping(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToMappingResponse(mapping))
}
