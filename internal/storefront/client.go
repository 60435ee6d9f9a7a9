// Package storefront implements the remote query executor for the commerce
// backend's GraphQL API: request execution, bounded fixed-interval retry, and
// the typed cart/catalog operations built on top of it.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"sidecart-proxy/internal/model"
	"sidecart-proxy/internal/transport"
)

// accessTokenHeader authenticates Storefront API requests.
const accessTokenHeader = "X-Shopify-Storefront-Access-Token"

// RetryPolicy bounds the executor's retry behaviour. MaxAttempts includes the
// first attempt; Delay is a fixed interval between attempts (no backoff).
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy matches the widget's observed behaviour: three attempts
// total with one second between them.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Delay: time.Second}

// Config holds executor configuration.
type Config struct {
	// Endpoint is the full Storefront GraphQL URL.
	Endpoint string
	// AccessToken is sent on every request via the access token header.
	AccessToken string
	// Retry defaults to DefaultRetryPolicy when zero.
	Retry RetryPolicy
	// Timeout bounds each transport attempt. Defaults to 30s.
	Timeout time.Duration
	// HTTPClient overrides the default fingerprinted client (tests).
	HTTPClient *http.Client
}

// Client executes queries and mutations against the Storefront API.
// Purely functional from the caller's perspective: no state beyond the
// connection pool, safe for concurrent use.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	retry      RetryPolicy

	// sleep is the inter-attempt delay, injectable for retry tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Storefront client. A missing endpoint or token is a fatal
// configuration error: every remote call requires both, and failing here
// beats issuing malformed requests later.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, model.NewConfigurationError("storefront endpoint is required")
	}
	if cfg.AccessToken == "" {
		return nil, model.NewConfigurationError("storefront access token is required")
	}

	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: transport.New(timeout),
		}
	}

	return &Client{
		httpClient: httpClient,
		endpoint:   cfg.Endpoint,
		token:      cfg.AccessToken,
		retry:      retry,
		sleep:      sleepContext,
	}, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SetSleep overrides the inter-attempt delay function. Test hook.
func (c *Client) SetSleep(f func(ctx context.Context, d time.Duration) error) {
	c.sleep = f
}

// Execute runs one GraphQL operation and unmarshals the data payload into out.
//
// Transport failures, timeouts, and non-2xx statuses are retried up to
// MaxAttempts total attempts with a fixed delay, then surfaced as a
// NetworkError wrapping the last cause. A 2xx response whose body carries a
// GraphQL errors collection fails immediately with a protocol error:
// those indicate a malformed request, not transience, and retrying them
// cannot help.
func (c *Client) Execute(ctx context.Context, operation string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: operation, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.retry.Delay); err != nil {
				return model.NewNetworkError(err)
			}
		}

		data, err := c.doRequest(ctx, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(data, out); err != nil {
				return model.NewProtocolError(fmt.Sprintf("unexpected response shape: %v", err))
			}
			return nil
		}

		// Protocol errors are terminal regardless of remaining attempts.
		if errors.Is(err, model.ErrProtocol) {
			return err
		}
		lastErr = err
	}

	return model.NewNetworkError(lastErr)
}

// doRequest performs a single POST attempt and returns the raw data payload.
func (c *Client) doRequest(ctx context.Context, body []byte) (json.RawMessage, error) {
	// Cache-busting: a uniquely valued query parameter per attempt so
	// intermediate caches can never serve a stale cart for what must be
	// read-your-writes-consistent operations.
	url := c.endpoint
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	url = url + sep + "nocache=" + uuid.NewString()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(accessTokenHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		// Garbled bodies from intermediaries are treated as transient.
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	if len(envelope.Errors) > 0 {
		return nil, model.NewProtocolError(envelope.Errors[0].Message)
	}

	return envelope.Data, nil
}

// truncate bounds error detail taken from response bodies.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// === Typed operations ===

// FetchCart reads the full cart by identifier. Returns (nil, nil) when the
// backend reports no cart for the identifier: the caller decides whether
// that means self-heal or hard failure.
func (c *Client) FetchCart(ctx context.Context, cartID string) (*CartPayload, error) {
	var data cartData
	if err := c.Execute(ctx, queryCart, map[string]any{"cartId": cartID}, &data); err != nil {
		return nil, err
	}
	return data.Cart, nil
}

// CreateCart creates a remote cart seeded with the given lines and returns
// the new cart identifier.
func (c *Client) CreateCart(ctx context.Context, lines []model.CartLineInput) (string, error) {
	var data cartCreateData
	vars := map[string]any{"lines": lineInputs(lines)}
	if err := c.Execute(ctx, mutationCartCreate, vars, &data); err != nil {
		return "", err
	}
	if data.CartCreate.Cart == nil || data.CartCreate.Cart.ID == "" {
		return "", model.NewProtocolError("cartCreate returned no cart")
	}
	return data.CartCreate.Cart.ID, nil
}

// AddLines adds lines to an existing cart.
func (c *Client) AddLines(ctx context.Context, cartID string, lines []model.CartLineInput) error {
	vars := map[string]any{"cartId": cartID, "lines": lineInputs(lines)}
	var data cartLinesAddData
	return c.Execute(ctx, mutationCartLinesAdd, vars, &data)
}

// UpdateLine sets the quantity of one cart line. Quantity must be positive;
// removal is a distinct operation.
func (c *Client) UpdateLine(ctx context.Context, cartID, lineID string, quantity int) error {
	vars := map[string]any{
		"cartId": cartID,
		"lines":  []map[string]any{{"id": lineID, "quantity": quantity}},
	}
	var data cartLinesUpdateData
	return c.Execute(ctx, mutationCartLinesUpdate, vars, &data)
}

// RemoveLines removes lines from the cart.
func (c *Client) RemoveLines(ctx context.Context, cartID string, lineIDs []string) error {
	vars := map[string]any{"cartId": cartID, "lineIds": lineIDs}
	var data cartLinesRemoveData
	return c.Execute(ctx, mutationCartLinesRemove, vars, &data)
}

// ListProducts fetches up to first catalog products sorted by popularity.
func (c *Client) ListProducts(ctx context.Context, first int) ([]ProductNode, error) {
	var data productsData
	if err := c.Execute(ctx, queryProducts, map[string]any{"first": first}, &data); err != nil {
		return nil, err
	}
	return data.Products.Nodes(), nil
}

// lineInputs converts line inputs to GraphQL variable form.
func lineInputs(lines []model.CartLineInput) []map[string]any {
	out := make([]map[string]any, len(lines))
	for i, l := range lines {
		m := map[string]any{
			"merchandiseId": l.MerchandiseID,
			"quantity":      l.Quantity,
		}
		if len(l.Attributes) > 0 {
			attrs := make([]map[string]string, len(l.Attributes))
			for j, a := range l.Attributes {
				attrs[j] = map[string]string{"key": a.Key, "value": a.Value}
			}
			m["attributes"] = attrs
		}
		out[i] = m
	}
	return out
}
