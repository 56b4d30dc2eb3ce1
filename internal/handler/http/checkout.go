package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/utafrali/winestore/internal/service"
)

// CheckoutHandler hands the cart over to the payment gateway.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: svc, logger: logger}
}

// CheckoutResponse is returned when the client did not ask to be redirected.
type CheckoutResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// Checkout handles POST /api/v1/checkout. With ?redirect=1 the answer is a
// 303 to the payment page; otherwise the URL is returned as JSON.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req service.CheckoutInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w, r, err)
		return
	}

	url, err := h.service.Create(r.Context(), sessionID(r), req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	if r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, url, http.StatusSeeOther)
		return
	}
	writeData(w, r, http.StatusOK, CheckoutResponse{RedirectURL: url})
}
