package ecommerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/infrastructure/auth"
	"github.com/storelink/backend/internal/infrastructure/retry"
)

// SmartStoreTokenSource mints access tokens with the client_credentials grant
type SmartStoreTokenSource struct {
	config     *SmartStoreConfig
	httpClient *http.Client
	now        func() time.Time
	policy     *retry.Policy
}

// NewSmartStoreTokenSource creates a token source. now and policy may be nil;
// without a policy a failed token request is not retried.
func NewSmartStoreTokenSource(config *SmartStoreConfig, httpClient *http.Client, now func() time.Time, policy *retry.Policy) *SmartStoreTokenSource {
	if now == nil {
		now = time.Now
	}
	return &SmartStoreTokenSource{config: config, httpClient: httpClient, now: now, policy: policy}
}

// FetchToken requests a new token from POST /v1/oauth2/token.
// Each attempt is signed with a fresh timestamp.
func (s *SmartStoreTokenSource) FetchToken(ctx context.Context) (*auth.Token, error) {
	if s.policy == nil {
		return s.fetchOnce(ctx)
	}
	tok, _, err := retry.DoValue(ctx, s.policy, "SMARTSTORE issue token", s.fetchOnce)
	return tok, err
}

func (s *SmartStoreTokenSource) fetchOnce(ctx context.Context) (*auth.Token, error) {
	timestamp := s.now().UnixMilli()
	sign, err := s.config.Sign(timestamp)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("client_id", s.config.ClientID)
	form.Set("timestamp", strconv.FormatInt(timestamp, 10))
	form.Set("client_secret_sign", sign)
	form.Set("grant_type", "client_credentials")
	form.Set("type", "SELF")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("smartstore: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var resp SmartStoreTokenResponse
	if err := doRaw(s.httpClient, req, integration.PlatformSmartStore, "issue token", smartStoreErrorDetail, &resp); err != nil {
		return nil, fmt.Errorf("client %s: %w", s.config.ClientID, err)
	}

	return &auth.Token{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		ExpiresIn:   time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}
