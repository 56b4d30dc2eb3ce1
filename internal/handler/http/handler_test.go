package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/winestore/internal/catalog"
	"github.com/utafrali/winestore/internal/domain"
	"github.com/utafrali/winestore/internal/event"
	"github.com/utafrali/winestore/internal/repository/memory"
	"github.com/utafrali/winestore/internal/service"
	apperrors "github.com/utafrali/winestore/pkg/errors"
	"github.com/utafrali/winestore/pkg/health"
	pkgkafka "github.com/utafrali/winestore/pkg/kafka"
	"github.com/utafrali/winestore/pkg/middleware"
)

const testSession = "0f8fad5b-d9cb-469f-a165-70867728950e"

// ============================================================================
// Mocks
// ============================================================================

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) List(ctx context.Context, q catalog.ListQuery) ([]domain.Product, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *mockCatalog) Get(ctx context.Context, id int64) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

type mockCreator struct {
	mock.Mock
}

func (m *mockCreator) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.CheckoutResponse), args.Error(1)
}

// ============================================================================
// Test helpers
// ============================================================================

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
	Notifications []struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	} `json:"notifications"`
}

type testServer struct {
	handler  http.Handler
	catalog  *mockCatalog
	creator  *mockCreator
	sessions *memory.SessionStore
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := testLogger()
	ts := &testServer{
		catalog:  new(mockCatalog),
		creator:  new(mockCreator),
		sessions: memory.NewSessionStore(),
	}
	events := event.NewProducer(pkgkafka.NoopPublisher{}, logger)

	ts.handler = NewRouter(
		service.NewCartService(ts.sessions, ts.catalog, events, "pt", logger),
		service.NewCatalogService(ts.catalog, "pt", logger),
		service.NewCheckoutService(ts.sessions, ts.creator, events, logger),
		health.NewHandler(),
		logger,
		RouterOptions{
			CORS:          middleware.DefaultCORSConfig(),
			Session:       middleware.DefaultSessionConfig(),
			CatalogMaxAge: 60,
		},
	)
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(middleware.SessionIDHeader, testSession)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decodeCart(t *testing.T, env envelope) domain.Cart {
	t.Helper()
	var c domain.Cart
	require.NoError(t, json.Unmarshal(env.Data, &c))
	return c
}

func priced(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func malbec() *domain.Product {
	return &domain.Product{
		ID:         7,
		Name:       domain.Localized{"pt": "Malbec Gran Reserva"},
		Images:     []domain.Image{{Src: "https://cdn.example.com/7.jpg"}},
		Categories: []domain.Category{{Name: domain.Localized{"pt": "Tintos"}}},
		Variants:   []domain.Variant{{ID: 70, Price: priced("120.00"), Stock: 3}},
		Published:  true,
	}
}

// ============================================================================
// Cart
// ============================================================================

func TestCartFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.catalog.On("Get", mock.Anything, int64(7)).Return(malbec(), nil)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, testSession, rec.Header().Get(middleware.SessionIDHeader))
	assert.True(t, decodeCart(t, env).IsEmpty())

	rec, env = ts.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":7}`)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decodeCart(t, env)
	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(70), c.Items[0].VariantID)
	require.Len(t, env.Notifications, 1)
	assert.Equal(t, "success", env.Notifications[0].Level)

	rec, env = ts.do(t, http.MethodPost, "/api/v1/cart/items/7/increment", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeCart(t, env).ItemCount)

	rec, env = ts.do(t, http.MethodPost, "/api/v1/cart/items/7/decrement", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeCart(t, env).ItemCount)

	rec, env = ts.do(t, http.MethodDelete, "/api/v1/cart/items/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeCart(t, env).IsEmpty())

	rec, _ = ts.do(t, http.MethodDelete, "/api/v1/cart/items/7", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = ts.do(t, http.MethodDelete, "/api/v1/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeCart(t, env).IsEmpty())
}

func TestCart_NewSessionIsIssued(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", http.NoBody)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	issued := rec.Header().Get(middleware.SessionIDHeader)
	assert.NotEmpty(t, issued)
	assert.NotEqual(t, testSession, issued)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "storefront_session="+issued)
}

func TestAddItem_Errors(t *testing.T) {
	ts := newTestServer(t)
	unpriced := malbec()
	unpriced.Variants[0].Price = nil
	ts.catalog.On("Get", mock.Anything, int64(8)).Return(unpriced, nil)
	ts.catalog.On("Get", mock.Anything, int64(9)).Return(nil, apperrors.NotFound("product", "9"))

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
		notified bool
	}{
		{"malformed body", `{"product_id":`, http.StatusBadRequest, "INVALID_INPUT", false},
		{"missing product", `{}`, http.StatusBadRequest, "VALIDATION_ERROR", false},
		{"too many", `{"product_id":7,"quantity":100}`, http.StatusBadRequest, "VALIDATION_ERROR", false},
		{"negative quantity", `{"product_id":7,"quantity":-1}`, http.StatusBadRequest, "VALIDATION_ERROR", false},
		{"negative variant", `{"product_id":7,"variant_id":-2}`, http.StatusBadRequest, "VALIDATION_ERROR", false},
		{"no price", `{"product_id":8}`, http.StatusBadRequest, "INVALID_INPUT", true},
		{"unknown product", `{"product_id":9}`, http.StatusNotFound, "NOT_FOUND", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := ts.do(t, http.MethodPost, "/api/v1/cart/items", tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantErr, env.Error.Code)
			assert.Equal(t, tt.notified, len(env.Notifications) > 0)
		})
	}
}

func TestAddItem_RejectedByCart(t *testing.T) {
	ts := newTestServer(t)
	legacy := malbec()
	legacy.Variants[0].ID = 0
	ts.catalog.On("Get", mock.Anything, int64(7)).Return(legacy, nil)

	rec, env := ts.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":7}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CART_ITEM_REJECTED", env.Error.Code)
	assert.Equal(t, "missing_variant", env.Error.Message)
	require.Len(t, env.Notifications, 1)
	assert.Equal(t, "error", env.Notifications[0].Level)
}

func TestAddItem_RejectsNonJSON(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewBufferString("product_id=7"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestIncrement_BadID(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodPost, "/api/v1/cart/items/abc/increment", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", env.Error.Code)

	rec, env = ts.do(t, http.MethodPost, "/api/v1/cart/items/5/increment", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

// ============================================================================
// Catalog
// ============================================================================

func TestListProducts(t *testing.T) {
	ts := newTestServer(t)
	ts.catalog.On("List", mock.Anything, mock.MatchedBy(func(q catalog.ListQuery) bool {
		return q.Page == 2 && q.PerPage == 1 && q.Category == "tintos" && q.Search == "malbec"
	})).Return([]domain.Product{*malbec()}, nil)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/products?page=2&per_page=1&category=tintos&search=malbec", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "private, max-age=60", rec.Header().Get("Cache-Control"))

	var page struct {
		Items   []domain.ProductSummary `json:"items"`
		Page    int                     `json:"page"`
		HasNext bool                    `json:"has_next"`
		HasPrev bool                    `json:"has_prev"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Malbec Gran Reserva", page.Items[0].Name)
	assert.Equal(t, "tintos", page.Items[0].CategorySlug)
	assert.Equal(t, 2, page.Page)
	assert.True(t, page.HasNext)
	assert.True(t, page.HasPrev)
}

func TestListProducts_UpstreamDown(t *testing.T) {
	ts := newTestServer(t)
	ts.catalog.On("List", mock.Anything, mock.Anything).Return(nil, apperrors.ServiceUnavailable("product api is temporarily unavailable"))

	rec, env := ts.do(t, http.MethodGet, "/api/v1/products", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
}

func TestGetProduct(t *testing.T) {
	ts := newTestServer(t)
	ts.catalog.On("Get", mock.Anything, int64(7)).Return(malbec(), nil)
	ts.catalog.On("Get", mock.Anything, int64(8)).Return(nil, apperrors.NotFound("product", "8"))

	rec, env := ts.do(t, http.MethodGet, "/api/v1/products/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var d domain.ProductDetail
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.Equal(t, "Malbec Gran Reserva", d.Name)
	require.Len(t, d.Variants, 1)
	assert.Equal(t, "120", d.Variants[0].Price.String())

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/products/8", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================================================
// Checkout
// ============================================================================

const customerJSON = `{"cliente":{
	"nome":"Ana Souza","email":"ana@example.com","cpf":"529.982.247-25",
	"telefone":"54999991234","cep":"95700-000","endereco":"Rua das Videiras",
	"numero":"120","bairro":"Vale dos Vinhedos","cidade":"Bento Gonçalves","estado":"RS"}}`

func (ts *testServer) seedCart(t *testing.T) {
	t.Helper()
	ts.catalog.On("Get", mock.Anything, int64(7)).Return(malbec(), nil)
	rec, _ := ts.do(t, http.MethodPost, "/api/v1/cart/items", `{"product_id":7,"quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckout_JSON(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCart(t)
	ts.creator.On("CreateCheckout", mock.Anything, mock.MatchedBy(func(req domain.CheckoutRequest) bool {
		return req.Total.String() == "240.00" && len(req.Produtos) == 1 && req.Produtos[0].VariantID == 70
	})).Return(domain.CheckoutResponse{RedirectURL: "https://pay.example.com/r/1", InitPoint: "https://pay.example.com/i/1"}, nil)

	rec, env := ts.do(t, http.MethodPost, "/api/v1/checkout", customerJSON)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	var body CheckoutResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "https://pay.example.com/r/1", body.RedirectURL)
}

func TestCheckout_Redirect(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCart(t)
	ts.creator.On("CreateCheckout", mock.Anything, mock.Anything).
		Return(domain.CheckoutResponse{InitPoint: "https://pay.example.com/i/1"}, nil)

	rec, _ := ts.do(t, http.MethodPost, "/api/v1/checkout?redirect=1", customerJSON)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://pay.example.com/i/1", rec.Header().Get("Location"))
}

func TestCheckout_Validation(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCart(t)

	rec, env := ts.do(t, http.MethodPost, "/api/v1/checkout", `{"cliente":{"nome":"Ana","cpf":"123"}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "CPF")
	assert.NotEmpty(t, env.Notifications)
	ts.creator.AssertNotCalled(t, "CreateCheckout", mock.Anything, mock.Anything)
}

func TestCheckout_EmptyCart(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodPost, "/api/v1/checkout", customerJSON)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)
	require.Len(t, env.Notifications, 1)
}

func TestCheckout_GatewayDown(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCart(t)
	ts.creator.On("CreateCheckout", mock.Anything, mock.Anything).
		Return(domain.CheckoutResponse{}, apperrors.ServiceUnavailable("checkout is temporarily unavailable"))

	rec, env := ts.do(t, http.MethodPost, "/api/v1/checkout", customerJSON)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
	assert.NotEmpty(t, env.Notifications)
}

// ============================================================================
// Infrastructure routes
// ============================================================================

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_http_requests_total")
}
