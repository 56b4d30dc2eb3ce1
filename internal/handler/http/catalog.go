package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/winestore/internal/service"
	"github.com/utafrali/winestore/pkg/httputil"
	"github.com/utafrali/winestore/pkg/pagination"
)

// CatalogHandler serves product listing and detail pages.
type CatalogHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

func NewCatalogHandler(svc *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{service: svc, logger: logger}
}

// ListProducts handles GET /api/v1/products
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.service.List(r.Context(), service.ListProductsInput{
		Params:   pagination.FromRequest(r),
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("search")),
	})
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeData(w, r, http.StatusOK, page)
}

// GetProduct handles GET /api/v1/products/{productId}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeData(w, r, http.StatusOK, product)
}
