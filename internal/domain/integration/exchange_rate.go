package integration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExchangeRate is a fetched conversion rate from Base to Quote currency
type ExchangeRate struct {
	ID        uuid.UUID
	Base      string
	Quote     string
	Rate      decimal.Decimal
	Source    string
	FetchedAt time.Time
}

// NewExchangeRate validates and creates a rate
func NewExchangeRate(base, quote string, rate decimal.Decimal, source string, at time.Time) (*ExchangeRate, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if len(base) != 3 || len(quote) != 3 {
		return nil, NewValidationError("currency", "must be a 3-letter code")
	}
	if !rate.IsPositive() {
		return nil, NewValidationError("exchange_rate", "must be positive")
	}
	return &ExchangeRate{
		ID:        uuid.New(),
		Base:      base,
		Quote:     quote,
		Rate:      rate,
		Source:    source,
		FetchedAt: at,
	}, nil
}

// ExchangeRateRepository stores fetched rates
type ExchangeRateRepository interface {
	Save(ctx context.Context, rate *ExchangeRate) error
	// Latest returns ErrExchangeRateNotFound when no rate was stored
	Latest(ctx context.Context, base, quote string) (*ExchangeRate, error)
}

// ExchangeRateProvider fetches live rates from an external source
type ExchangeRateProvider interface {
	FetchRate(ctx context.Context, base, quote string) (decimal.Decimal, error)
	Name() string
}
