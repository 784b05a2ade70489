package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/storelink/backend/internal/domain/integration"
)

// CurrencyPair is a base/quote pair kept fresh by the refresh job
type CurrencyPair struct {
	Base  string
	Quote string
}

func (p CurrencyPair) String() string {
	return p.Base + "/" + p.Quote
}

// ExchangeRateService refreshes and serves conversion rates
type ExchangeRateService struct {
	repo      integration.ExchangeRateRepository
	provider  integration.ExchangeRateProvider
	pairs     []CurrencyPair
	fallbacks map[string]decimal.Decimal
	now       func() time.Time
	logger    *zap.Logger
}

// NewExchangeRateService creates the service. fallbacks maps "KRW/USD" style keys
// to configured rates used until a live rate was stored.
func NewExchangeRateService(
	repo integration.ExchangeRateRepository,
	provider integration.ExchangeRateProvider,
	pairs []CurrencyPair,
	fallbacks map[string]decimal.Decimal,
	logger *zap.Logger,
) *ExchangeRateService {
	normalized := make(map[string]decimal.Decimal, len(fallbacks))
	for k, v := range fallbacks {
		normalized[strings.ToUpper(k)] = v
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExchangeRateService{
		repo:      repo,
		provider:  provider,
		pairs:     pairs,
		fallbacks: normalized,
		now:       time.Now,
		logger:    logger,
	}
}

// Refresh fetches and stores every configured pair. Each pair is attempted even
// when an earlier one failed; the failures are joined.
func (s *ExchangeRateService) Refresh(ctx context.Context) ([]integration.ExchangeRate, error) {
	var (
		stored []integration.ExchangeRate
		errs   []error
	)
	for _, pair := range s.pairs {
		rate, err := s.provider.FetchRate(ctx, pair.Base, pair.Quote)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pair, err))
			continue
		}
		record, err := integration.NewExchangeRate(pair.Base, pair.Quote, rate, s.provider.Name(), s.now())
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pair, err))
			continue
		}
		if err := s.repo.Save(ctx, record); err != nil {
			errs = append(errs, fmt.Errorf("%s: failed to save rate: %w", pair, err))
			continue
		}
		stored = append(stored, *record)
		s.logger.Info("Exchange rate refreshed",
			zap.String("pair", pair.String()),
			zap.String("rate", rate.String()),
			zap.String("source", record.Source),
		)
	}
	return stored, errors.Join(errs...)
}

// Current returns the latest stored rate, falling back to the configured rate
func (s *ExchangeRateService) Current(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	base, quote = strings.ToUpper(base), strings.ToUpper(quote)
	if base == quote {
		return decimal.NewFromInt(1), nil
	}

	latest, err := s.repo.Latest(ctx, base, quote)
	if err == nil {
		return latest.Rate, nil
	}
	if !errors.Is(err, integration.ErrExchangeRateNotFound) {
		return decimal.Zero, err
	}

	if rate, ok := s.fallbacks[base+"/"+quote]; ok && rate.IsPositive() {
		return rate, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s/%s", integration.ErrExchangeRateNotFound, base, quote)
}
