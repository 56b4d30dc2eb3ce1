// Package checkout hands a cart over to the remote Order API, which answers
// with the payment gateway URL the shopper is sent to.
package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/winestore/internal/domain"
	apperrors "github.com/utafrali/winestore/pkg/errors"
	"github.com/utafrali/winestore/pkg/httpclient"
)

const createCheckoutPath = "/api/orders/create-checkout"

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Creator creates a hosted checkout for a cart.
type Creator interface {
	CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error)
}

// Client talks to the Order API.
type Client struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates an Order API client rooted at baseURL.
func NewClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// CircuitOpenFallback answers while the Order API breaker is open.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("checkout is temporarily unavailable, please retry in a few seconds")
}

// CreateCheckout posts the cart and customer to the Order API. The
// response must carry at least one redirect URL.
func (c *Client) CreateCheckout(ctx context.Context, body domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	var out domain.CheckoutResponse

	payload, err := json.Marshal(body)
	if err != nil {
		return out, fmt.Errorf("marshal checkout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createCheckoutPath, bytes.NewReader(payload))
	if err != nil {
		return out, fmt.Errorf("create checkout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return out, fmt.Errorf("call order api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, httpclient.ParseResponseError(resp, "order api")
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return out, fmt.Errorf("read order api response: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		c.logger.WarnContext(ctx, "unreadable order api response", slog.String("error", err.Error()))
		return out, apperrors.BadGateway("order api returned an unreadable response")
	}
	if out.URL() == "" {
		c.logger.WarnContext(ctx, "order api response has no redirect url", slog.Int("bytes", len(data)))
		return out, apperrors.BadGateway("order api did not return a payment url")
	}

	return out, nil
}
