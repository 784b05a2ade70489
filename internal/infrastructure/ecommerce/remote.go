package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/infrastructure/ratelimit"
	"github.com/storelink/backend/internal/infrastructure/retry"
	"github.com/storelink/backend/internal/infrastructure/telemetry"
)

// maxResponseSize is the maximum allowed response size from a platform API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Authorizer supplies an access token to an outbound call and handles 401 responses
type Authorizer interface {
	Call(ctx context.Context, op func(ctx context.Context, token string) error) error
}

// CallObserver is notified once per remote operation with the attempt count
type CallObserver func(ctx context.Context, platform integration.PlatformCode, op string, attempts int, err error)

// RemoteCaller runs every outbound platform call through the same chain:
// retry policy, then credentials (with the single 401 refresh), then the rate limiter.
type RemoteCaller struct {
	platform integration.PlatformCode
	auth     Authorizer
	limiter  *ratelimit.Limiter
	policy   *retry.Policy
	observer CallObserver
}

// RemoteCallerOption configures a RemoteCaller
type RemoteCallerOption func(*RemoteCaller)

// WithCallObserver registers an observer for completed calls
func WithCallObserver(o CallObserver) RemoteCallerOption {
	return func(c *RemoteCaller) {
		c.observer = o
	}
}

// NewRemoteCaller creates the call chain for one platform
func NewRemoteCaller(platform integration.PlatformCode, auth Authorizer, limiter *ratelimit.Limiter, policy *retry.Policy, opts ...RemoteCallerOption) *RemoteCaller {
	c := &RemoteCaller{
		platform: platform,
		auth:     auth,
		limiter:  limiter,
		policy:   policy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do runs fn under retry, credentials and rate limiting
func (c *RemoteCaller) Do(ctx context.Context, op string, fn func(ctx context.Context, token string) error) error {
	ctx, span := telemetry.StartClientSpan(ctx, string(c.platform), op)
	defer span.End()

	attempts, err := c.policy.Do(ctx, string(c.platform)+" "+op, func(ctx context.Context) error {
		return c.auth.Call(ctx, func(ctx context.Context, token string) error {
			if err := c.limiter.Consume(ctx, string(c.platform)); err != nil {
				return err
			}
			return fn(ctx, token)
		})
	})
	telemetry.SetAttributes(span, "attempts", attempts)
	telemetry.RecordError(span, err)
	if c.observer != nil {
		c.observer(ctx, c.platform, op, attempts, err)
	}
	return err
}

// Remaining reports the current rate limit headroom of the platform
func (c *RemoteCaller) Remaining(ctx context.Context) (int, error) {
	return c.limiter.Remaining(ctx, string(c.platform))
}

// Platform returns the platform this caller talks to
func (c *RemoteCaller) Platform() integration.PlatformCode {
	return c.platform
}

// apiRequest describes one JSON call against a platform API
type apiRequest struct {
	method  string
	url     string
	body    any
	headers map[string]string
}

// errorDetailer extracts a readable message from a platform error body
type errorDetailer func(body []byte) string

// doJSON executes the request, classifies failures and decodes a JSON response into out
func doJSON(ctx context.Context, client *http.Client, platform integration.PlatformCode, op string, r apiRequest, detail errorDetailer, out any) error {
	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return integration.NewValidationError("request", err.Error())
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, reader)
	if err != nil {
		return fmt.Errorf("%s %s: failed to create request: %w", platform, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	return doRaw(client, req, platform, op, detail, out)
}

// doRaw sends a prepared request, classifies failures and decodes a JSON response into out
func doRaw(client *http.Client, req *http.Request, platform integration.PlatformCode, op string, detail errorDetailer, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return integration.NewTransportError(platform, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return integration.NewTransportError(platform, op, err)
	}

	if resp.StatusCode >= 400 {
		msg := ""
		if detail != nil {
			msg = detail(body)
		}
		return integration.NewHTTPError(platform, op, resp.StatusCode, msg)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &integration.RemoteError{
			Platform: platform,
			Op:       op,
			Err:      fmt.Errorf("%w: invalid response: %v", integration.ErrRemoteRejected, err),
		}
	}
	return nil
}
