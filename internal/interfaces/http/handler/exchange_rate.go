package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/interfaces/http/router"
)

// RateService serves currency conversion rates
type RateService interface {
	Current(ctx context.Context, base, quote string) (decimal.Decimal, error)
	Refresh(ctx context.Context) ([]integration.ExchangeRate, error)
}

// ExchangeRateResponse is one conversion rate
type ExchangeRateResponse struct {
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	Rate      decimal.Decimal `json:"rate"`
	Source    string          `json:"source,omitempty"`
	FetchedAt *time.Time      `json:"fetched_at,omitempty"`
}

// ExchangeRateHandler exposes the exchange rate service
type ExchangeRateHandler struct {
	BaseHandler
	rates RateService
}

// NewExchangeRateHandler creates a new ExchangeRateHandler
func NewExchangeRateHandler(rates RateService) *ExchangeRateHandler {
	return &ExchangeRateHandler{rates: rates}
}

// RegisterRoutes mounts the rate routes under /exchange-rates
func (h *ExchangeRateHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rates := router.NewDomainGroup("exchange-rates", "/exchange-rates")
	rates.GET("/:base/:quote", h.Current)
	rates.POST("/refresh", h.Refresh)
	rates.RegisterRoutes(rg)
}

// Current returns the rate used to convert base into quote
func (h *ExchangeRateHandler) Current(c *gin.Context) {
	base, quote := strings.ToUpper(c.Param("base")), strings.ToUpper(c.Param("quote"))
	for field, code := range map[string]string{"base": base, "quote": quote} {
		if !isCurrencyCode(code) {
			h.HandleError(c, integration.NewValidationError(field, "must be a 3-letter currency code"))
			return
		}
	}

	rate, err := h.rates.Current(c.Request.Context(), base, quote)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ExchangeRateResponse{Base: base, Quote: quote, Rate: rate})
}

// Refresh fetches every configured pair now. Pairs that failed are reported
// as a partial failure next to the ones that were stored.
func (h *ExchangeRateHandler) Refresh(c *gin.Context) {
	stored, err := h.rates.Refresh(c.Request.Context())

	out := make([]ExchangeRateResponse, len(stored))
	for i, r := range stored {
		fetched := r.FetchedAt
		out[i] = ExchangeRateResponse{Base: r.Base, Quote: r.Quote, Rate: r.Rate, Source: r.Source, FetchedAt: &fetched}
	}

	switch {
	case err == nil:
		h.Success(c, out)
	case len(stored) > 0:
		_ = c.Error(err)
		h.Partial(c, out, err)
	default:
		h.HandleError(c, err)
	}
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
