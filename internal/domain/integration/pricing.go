package integration

import (
	"github.com/shopspring/decimal"
)

// RoundingStrategy controls how a derived price is rounded to the rounding unit
type RoundingStrategy string

const (
	RoundingNone   RoundingStrategy = "none"
	RoundingHalfUp RoundingStrategy = "half_up"
	RoundingCeil   RoundingStrategy = "ceil"
	RoundingFloor  RoundingStrategy = "floor"
	// RoundingCharm rounds up to the unit and subtracts one cent (e.g. 12.99)
	RoundingCharm RoundingStrategy = "charm"
)

// IsValid returns true if the strategy is supported
func (r RoundingStrategy) IsValid() bool {
	switch r {
	case RoundingNone, RoundingHalfUp, RoundingCeil, RoundingFloor, RoundingCharm:
		return true
	}
	return false
}

var (
	hundred = decimal.NewFromInt(100)
	cent    = decimal.NewFromFloat(0.01)
)

// PricingPolicy derives the storefront price from the marketplace price.
// Zero MinPrice/MaxPrice means no clamp.
type PricingPolicy struct {
	MarginPercent decimal.Decimal  `json:"margin_percent"`
	Rounding      RoundingStrategy `json:"rounding"`
	RoundingUnit  decimal.Decimal  `json:"rounding_unit"`
	MinPrice      decimal.Decimal  `json:"min_price"`
	MaxPrice      decimal.Decimal  `json:"max_price"`
}

// DefaultPricingPolicy returns a policy with no margin and cent rounding
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		MarginPercent: decimal.Zero,
		Rounding:      RoundingHalfUp,
		RoundingUnit:  cent,
	}
}

// Validate checks the policy values
func (p PricingPolicy) Validate() error {
	if p.MarginPercent.LessThanOrEqual(hundred.Neg()) {
		return NewValidationError("pricing.margin_percent", "must be greater than -100")
	}
	if p.Rounding != "" && !p.Rounding.IsValid() {
		return NewValidationError("pricing.rounding", "unsupported rounding strategy")
	}
	if p.RoundingUnit.IsNegative() {
		return NewValidationError("pricing.rounding_unit", "must not be negative")
	}
	if p.MinPrice.IsNegative() || p.MaxPrice.IsNegative() {
		return NewValidationError("pricing.min_max", "must not be negative")
	}
	if p.MaxPrice.IsPositive() && p.MinPrice.GreaterThan(p.MaxPrice) {
		return NewValidationError("pricing.min_max", "min price exceeds max price")
	}
	return nil
}

// Derive converts a source price with the exchange rate, applies the margin,
// rounds, and clamps to [MinPrice, MaxPrice].
func (p PricingPolicy) Derive(source, rate decimal.Decimal) (decimal.Decimal, error) {
	if source.IsNegative() {
		return decimal.Zero, NewValidationError("price", "must not be negative")
	}
	if !rate.IsPositive() {
		return decimal.Zero, NewValidationError("exchange_rate", "must be positive")
	}

	price := source.Mul(rate)
	price = price.Mul(decimal.NewFromInt(1).Add(p.MarginPercent.Div(hundred)))
	price = p.round(price)

	if p.MinPrice.IsPositive() && price.LessThan(p.MinPrice) {
		price = p.MinPrice
	}
	if p.MaxPrice.IsPositive() && price.GreaterThan(p.MaxPrice) {
		price = p.MaxPrice
	}
	return price, nil
}

func (p PricingPolicy) round(price decimal.Decimal) decimal.Decimal {
	unit := p.RoundingUnit
	if !unit.IsPositive() {
		unit = cent
	}
	steps := price.Div(unit)

	switch p.Rounding {
	case RoundingCeil:
		return steps.Ceil().Mul(unit)
	case RoundingFloor:
		return steps.Floor().Mul(unit)
	case RoundingCharm:
		charmed := steps.Ceil().Mul(unit).Sub(cent)
		if !charmed.IsPositive() {
			return price.Round(2)
		}
		return charmed
	case RoundingNone:
		return price.Round(2)
	default:
		return steps.Round(0).Mul(unit)
	}
}
