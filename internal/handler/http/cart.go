package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/winestore/internal/service"
	"github.com/utafrali/winestore/pkg/httputil"
	"github.com/utafrali/winestore/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.GetCart(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeData(w, r, http.StatusOK, cart)
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var input service.AddProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeBadBody(w, r, err)
		return
	}
	if err := validator.Validate(input); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.AddProduct(r.Context(), sessionID(r), input)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeData(w, r, http.StatusOK, cart)
}

// IncrementItem handles POST /api/v1/cart/items/{productId}/increment
func (h *CartHandler) IncrementItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	cart, err := h.service.Increment(r.Context(), sessionID(r), id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeData(w, r, http.StatusOK, cart)
}

// DecrementItem handles POST /api/v1/cart/items/{productId}/decrement
func (h *CartHandler) DecrementItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	cart, err := h.service.Decrement(r.Context(), sessionID(r), id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeData(w, r, http.StatusOK, cart)
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	cart, err := h.service.Remove(r.Context(), sessionID(r), id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeData(w, r, http.StatusOK, cart)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.Clear(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeData(w, r, http.StatusOK, cart)
}
