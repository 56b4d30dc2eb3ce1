package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utafrali/winestore/internal/cart"
	"github.com/utafrali/winestore/internal/checkout"
	"github.com/utafrali/winestore/internal/domain"
	"github.com/utafrali/winestore/internal/notify"
	"github.com/utafrali/winestore/internal/repository"
	apperrors "github.com/utafrali/winestore/pkg/errors"
	"github.com/utafrali/winestore/pkg/validator"
)

// CheckoutInput is the body of the storefront checkout request.
type CheckoutInput struct {
	Cliente domain.Customer `json:"cliente"`
}

// CheckoutEvents publishes checkout domain events.
type CheckoutEvents interface {
	PublishCheckoutCreated(ctx context.Context, sessionID string, cart domain.Cart, redirectURL string) error
}

// CheckoutService hands the session's cart to the Order API.
type CheckoutService struct {
	sessions repository.SessionStore
	creator  checkout.Creator
	events   CheckoutEvents
	logger   *slog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(sessions repository.SessionStore, creator checkout.Creator, events CheckoutEvents, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		sessions: sessions,
		creator:  creator,
		events:   events,
		logger:   logger,
	}
}

// normalizeCustomer strips formatting from document and postal fields.
func normalizeCustomer(c domain.Customer) domain.Customer {
	c.Nome = strings.TrimSpace(c.Nome)
	c.Email = strings.TrimSpace(c.Email)
	c.CPF = validator.OnlyDigits(c.CPF)
	c.CEP = validator.OnlyDigits(c.CEP)
	c.Telefone = validator.OnlyDigits(c.Telefone)
	c.Estado = strings.ToUpper(strings.TrimSpace(c.Estado))
	return c
}

// Create validates the customer and cart and returns the payment URL. The
// cart is left untouched.
func (s *CheckoutService) Create(ctx context.Context, sessionID string, in CheckoutInput) (string, error) {
	if sessionID == "" {
		return "", apperrors.InvalidInput("session id is required")
	}

	customer := normalizeCustomer(in.Cliente)
	if err := validator.Validate(customer); err != nil {
		notify.Fail(ctx, "Confira os dados de entrega e tente novamente.")
		checkoutsTotal.WithLabelValues("invalid").Inc()
		return "", err
	}

	store, err := cart.Load(ctx, repository.Scope(s.sessions, sessionID), s.logger)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load cart", slog.String("error", err.Error()))
		notify.Fail(ctx, "Não foi possível carregar o carrinho. Tente novamente.")
		checkoutsTotal.WithLabelValues("failed").Inc()
		return "", apperrors.ServiceUnavailable("cart could not be loaded")
	}
	c := store.Cart()
	if c.IsEmpty() {
		notify.Fail(ctx, "Seu carrinho está vazio.")
		checkoutsTotal.WithLabelValues("empty").Inc()
		return "", apperrors.InvalidInput("cart is empty")
	}
	for _, it := range c.Items {
		if it.VariantID == 0 {
			notify.Fail(ctx, fmt.Sprintf("Remova %q do carrinho e adicione-o novamente.", it.Name))
			checkoutsTotal.WithLabelValues("invalid").Inc()
			return "", apperrors.InvalidInput(fmt.Sprintf("cart item %d has no variant", it.ID))
		}
	}

	resp, err := s.creator.CreateCheckout(ctx, domain.NewCheckoutRequest(c, customer))
	if err != nil {
		notify.Fail(ctx, "Não foi possível iniciar o pagamento. Tente novamente.")
		checkoutsTotal.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("create checkout: %w", err)
	}

	url := resp.URL()
	checkoutsTotal.WithLabelValues("created").Inc()
	s.logger.InfoContext(ctx, "checkout created",
		slog.Int("item_count", c.ItemCount),
		slog.String("total", c.Total.StringFixed(2)),
	)
	if err := s.events.PublishCheckoutCreated(ctx, sessionID, c, url); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish checkout.created event", slog.String("error", err.Error()))
	}
	return url, nil
}
