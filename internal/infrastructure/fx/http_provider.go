// Package fx fetches currency exchange rates from an HTTP rates API.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/infrastructure/retry"
)

const maxResponseSize = 1 << 20

// ratesResponse is the payload of GET {base_url}?base=KRW&symbols=USD
type ratesResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// HTTPProvider reads rates from a JSON API shaped like {"base":"KRW","rates":{"USD":0.00075}}
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	policy     *retry.Policy
}

// NewHTTPProvider creates a provider. apiKey is sent as a bearer token when set.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration, policy *retry.Policy) *HTTPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		policy:     policy,
	}
}

// Name identifies the provider in stored rates
func (p *HTTPProvider) Name() string {
	u, err := url.Parse(p.baseURL)
	if err != nil || u.Host == "" {
		return "http"
	}
	return u.Host
}

// FetchRate returns how many units of quote one unit of base buys
func (p *HTTPProvider) FetchRate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	base, quote = strings.ToUpper(base), strings.ToUpper(quote)
	rate, _, err := retry.DoValue(ctx, p.policy, "fx fetch rate", func(ctx context.Context) (decimal.Decimal, error) {
		return p.fetch(ctx, base, quote)
	})
	return rate, err
}

func (p *HTTPProvider) fetch(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("base", base)
	params.Set("symbols", quote)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fx: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fx: %w: %w", integration.ErrTransientRemote, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return decimal.Zero, fmt.Errorf("fx: %w: %w", integration.ErrTransientRemote, err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return decimal.Zero, fmt.Errorf("fx: %w: HTTP %d", integration.ErrTransientRemote, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return decimal.Zero, fmt.Errorf("fx: %w: HTTP %d", integration.ErrRemoteRejected, resp.StatusCode)
	}

	var payload ratesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("fx: %w: invalid response: %v", integration.ErrRemoteRejected, err)
	}
	if payload.Base != "" && !strings.EqualFold(payload.Base, base) {
		return decimal.Zero, fmt.Errorf("fx: %w: asked for base %s, got %s", integration.ErrRemoteRejected, base, payload.Base)
	}
	rate, ok := payload.Rates[quote]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s/%s", integration.ErrExchangeRateNotFound, base, quote)
	}
	return rate, nil
}

var _ integration.ExchangeRateProvider = (*HTTPProvider)(nil)
