// Package catalog reads products from the remote Product API.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/utafrali/winestore/internal/domain"
	apperrors "github.com/utafrali/winestore/pkg/errors"
	"github.com/utafrali/winestore/pkg/httpclient"
	"github.com/utafrali/winestore/pkg/pagination"
)

const upstreamName = "product api"

// maxBodySize caps how much of a Product API response is read.
const maxBodySize = 8 << 20

// HTTPDoer executes HTTP requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// ListQuery selects one page of published products.
type ListQuery struct {
	pagination.Params
	Category string
	Search   string
}

// Reader is the read side of the catalog used by the storefront.
type Reader interface {
	List(ctx context.Context, q ListQuery) ([]domain.Product, error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
}

// Client talks to the Product API.
type Client struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a Product API client rooted at baseURL.
func NewClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// CircuitOpenFallback answers while the Product API breaker is open.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("product catalog is temporarily unavailable")
}

// List fetches one page of products. Only published products are ever
// requested.
func (c *Client) List(ctx context.Context, q ListQuery) ([]domain.Product, error) {
	values := url.Values{}
	q.Params.Apply(values)
	values.Set("published", "true")
	if q.Category != "" {
		values.Set("category", q.Category)
	}
	if q.Search != "" {
		values.Set("search", q.Search)
	}

	var products []domain.Product
	if err := c.get(ctx, "/api/products?"+values.Encode(), &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// Get fetches a single product.
func (c *Client) Get(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	if err := c.get(ctx, "/api/products/"+strconv.FormatInt(id, 10), &p); err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, apperrors.NotFound("product", strconv.FormatInt(id, 10))
	}
	return &p, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create product api request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call product api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, upstreamName)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read product api response: %w", err)
	}
	if err := decodeBody(body, dst); err != nil {
		c.logger.WarnContext(ctx, "unreadable product api response",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return apperrors.BadGateway("product api returned an unreadable response")
	}
	return nil
}

// decodeBody accepts both a bare payload and one wrapped in {"data": ...}.
func decodeBody(body []byte, dst any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err == nil && len(envelope.Data) > 0 && !bytes.Equal(envelope.Data, []byte("null")) {
			trimmed = envelope.Data
		}
	}
	return json.Unmarshal(trimmed, dst)
}
