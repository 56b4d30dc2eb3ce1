package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/utafrali/winestore/internal/cart"
	"github.com/utafrali/winestore/internal/catalog"
	"github.com/utafrali/winestore/internal/domain"
	"github.com/utafrali/winestore/internal/notify"
	"github.com/utafrali/winestore/internal/repository"
	apperrors "github.com/utafrali/winestore/pkg/errors"
)

// MaxQuantityPerAdd caps the quantity of a single add request.
const MaxQuantityPerAdd = 99

// AddProductInput holds the parameters for adding a product to the cart.
// A zero VariantID selects the first variant with a price; a zero Quantity
// means one unit.
type AddProductInput struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	VariantID int64 `json:"variant_id" validate:"gte=0"`
	Quantity  int   `json:"quantity" validate:"gte=0,lte=99"`
}

// CartEvents publishes cart domain events.
type CartEvents interface {
	PublishCartUpdated(ctx context.Context, sessionID, action string, cart domain.Cart) error
	PublishCartCleared(ctx context.Context, sessionID string) error
	PublishItemRejected(ctx context.Context, sessionID, reason string, item domain.CartItem) error
}

// CartService applies shopper actions to the cart of a session. Each call
// hydrates the session's cart, applies one action and lets the mirror write
// it back. Calls for the same session are serialized.
type CartService struct {
	sessions repository.SessionStore
	catalog  catalog.Reader
	events   CartEvents
	locks    *keyedMutex
	locale   string
	logger   *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(sessions repository.SessionStore, reader catalog.Reader, events CartEvents, locale string, logger *slog.Logger) *CartService {
	if locale == "" {
		locale = domain.DefaultLocale
	}
	return &CartService{
		sessions: sessions,
		catalog:  reader,
		events:   events,
		locks:    newKeyedMutex(),
		locale:   locale,
		logger:   logger,
	}
}

// rejectionMessages are shown to the shopper when the cart refuses an add.
var rejectionMessages = map[cart.Reason]string{
	cart.ReasonMissingVariant:   "Selecione uma opção do produto antes de adicionar ao carrinho.",
	cart.ReasonQuantityBelowOne: "A quantidade mínima é 1. Remova o item para tirá-lo do carrinho.",
	cart.ReasonInvalidQuantity:  "Quantidade inválida.",
}

// RejectedError is returned when the cart refuses an add.
func RejectedError(reason cart.Reason) *apperrors.AppError {
	return &apperrors.AppError{
		Code:    "CART_ITEM_REJECTED",
		Message: string(reason),
		Status:  http.StatusUnprocessableEntity,
		Err:     apperrors.ErrInvalidInput,
	}
}

// GetCart returns the session's cart. Unreadable stored carts read as empty.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (domain.Cart, error) {
	if sessionID == "" {
		return domain.Cart{}, apperrors.InvalidInput("session id is required")
	}
	store := cart.Hydrate(ctx, repository.Scope(s.sessions, sessionID), s.logger)
	return store.Cart(), nil
}

// AddProduct looks the product up in the catalog and adds one of its
// variants to the cart.
func (s *CartService) AddProduct(ctx context.Context, sessionID string, in AddProductInput) (domain.Cart, error) {
	if sessionID == "" {
		return domain.Cart{}, apperrors.InvalidInput("session id is required")
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 0 || in.Quantity > MaxQuantityPerAdd {
		return domain.Cart{}, apperrors.InvalidInput(fmt.Sprintf("quantity must be between 1 and %d", MaxQuantityPerAdd))
	}

	product, err := s.catalog.Get(ctx, in.ProductID)
	if err != nil {
		notify.Fail(ctx, "Não foi possível carregar o produto. Tente novamente.")
		return domain.Cart{}, fmt.Errorf("get product %d: %w", in.ProductID, err)
	}

	item, err := s.buildItem(ctx, product, in)
	if err != nil {
		cartOperationsTotal.WithLabelValues("add", "invalid").Inc()
		return domain.Cart{}, err
	}

	var res cart.Result
	c, err := s.withCart(ctx, sessionID, func(store *cart.Store) error {
		res = store.Add(item)
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}

	if res.Outcome == cart.Rejected {
		return c, s.rejected(ctx, sessionID, "add", res)
	}

	if res.Outcome == cart.Merged && res.PreviousVariantID != item.VariantID {
		s.logger.WarnContext(ctx, "cart line switched variant on merge",
			slog.Int64("product_id", item.ID),
			slog.Int64("previous_variant_id", res.PreviousVariantID),
			slog.Int64("variant_id", item.VariantID),
		)
	}
	cartOperationsTotal.WithLabelValues("add", string(res.Outcome)).Inc()
	notify.Succeed(ctx, fmt.Sprintf("%s adicionado ao carrinho.", item.Name))
	s.publishUpdated(ctx, sessionID, "add", c)
	return c, nil
}

// buildItem flattens a catalog product into a cart line. The requested
// variant must exist and carry a price; without a request the first priced
// variant is used.
func (s *CartService) buildItem(ctx context.Context, p *domain.Product, in AddProductInput) (domain.CartItem, error) {
	var (
		v  domain.Variant
		ok bool
	)
	if in.VariantID != 0 {
		v, ok = p.Variant(in.VariantID)
		if !ok {
			notify.Fail(ctx, "A opção selecionada não existe para este produto.")
			return domain.CartItem{}, apperrors.InvalidInput(fmt.Sprintf("variant %d does not belong to product %d", in.VariantID, p.ID))
		}
		if !v.HasPrice() {
			notify.Fail(ctx, "A opção selecionada está sem preço.")
			return domain.CartItem{}, apperrors.InvalidInput(fmt.Sprintf("variant %d has no price", in.VariantID))
		}
	} else {
		v, ok = p.FirstPricedVariant()
		if !ok {
			notify.Fail(ctx, "Este produto está sem preço e não pode ser adicionado ao carrinho.")
			return domain.CartItem{}, apperrors.InvalidInput(fmt.Sprintf("product %d has no priced variant", p.ID))
		}
	}

	return domain.CartItem{
		ID:        p.ID,
		VariantID: v.ID,
		Name:      p.Name.Get(s.locale),
		Image:     p.PrimaryImage(),
		Category:  p.PrimaryCategory(s.locale),
		Price:     *v.Price,
		Quantity:  in.Quantity,
	}, nil
}

// Increment adds one unit to an existing line.
func (s *CartService) Increment(ctx context.Context, sessionID string, productID int64) (domain.Cart, error) {
	return s.step(ctx, sessionID, productID, "increment")
}

// Decrement removes one unit from a line, removing the line when it holds
// the last unit.
func (s *CartService) Decrement(ctx context.Context, sessionID string, productID int64) (domain.Cart, error) {
	return s.step(ctx, sessionID, productID, "decrement")
}

func (s *CartService) step(ctx context.Context, sessionID string, productID int64, op string) (domain.Cart, error) {
	if sessionID == "" {
		return domain.Cart{}, apperrors.InvalidInput("session id is required")
	}

	var (
		res         cart.Result
		removedLast bool
	)
	c, err := s.withCart(ctx, sessionID, func(store *cart.Store) error {
		line, ok := store.Get(productID)
		if !ok {
			return apperrors.NotFound("cart item", strconv.FormatInt(productID, 10))
		}

		if op == "decrement" && line.Quantity <= 1 {
			removedLast = store.Remove(productID)
			return nil
		}

		delta := line
		delta.Quantity = 1
		if op == "decrement" {
			delta.Quantity = -1
		}
		res = store.Add(delta)
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}

	if removedLast {
		cartOperationsTotal.WithLabelValues(op, "removed").Inc()
		s.publishUpdated(ctx, sessionID, "remove", c)
		return c, nil
	}
	if res.Outcome == cart.Rejected {
		return c, s.rejected(ctx, sessionID, op, res)
	}
	cartOperationsTotal.WithLabelValues(op, "ok").Inc()
	s.publishUpdated(ctx, sessionID, op, c)
	return c, nil
}

// Remove deletes a line. Removing a product that is not in the cart is not
// an error.
func (s *CartService) Remove(ctx context.Context, sessionID string, productID int64) (domain.Cart, error) {
	if sessionID == "" {
		return domain.Cart{}, apperrors.InvalidInput("session id is required")
	}

	var removed bool
	c, err := s.withCart(ctx, sessionID, func(store *cart.Store) error {
		removed = store.Remove(productID)
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}

	if !removed {
		cartOperationsTotal.WithLabelValues("remove", "noop").Inc()
		return c, nil
	}
	cartOperationsTotal.WithLabelValues("remove", "ok").Inc()
	notify.Add(ctx, notify.Info, "Item removido do carrinho.")
	s.publishUpdated(ctx, sessionID, "remove", c)
	return c, nil
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, sessionID string) (domain.Cart, error) {
	if sessionID == "" {
		return domain.Cart{}, apperrors.InvalidInput("session id is required")
	}

	c, err := s.withCart(ctx, sessionID, func(store *cart.Store) error {
		store.Clear()
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}

	cartOperationsTotal.WithLabelValues("clear", "ok").Inc()
	if err := s.events.PublishCartCleared(ctx, sessionID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event", slog.String("error", err.Error()))
	}
	return c, nil
}

// withCart runs fn against the loaded cart of sessionID with a mirror
// attached, and returns the resulting cart. A failed read aborts before
// anything is written; both a failed read and a failed write-back are
// reported as unavailable.
func (s *CartService) withCart(ctx context.Context, sessionID string, fn func(*cart.Store) error) (domain.Cart, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	kv := repository.Scope(s.sessions, sessionID)
	store, err := cart.Load(ctx, kv, s.logger)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load cart", slog.String("error", err.Error()))
		notify.Fail(ctx, "Não foi possível carregar o carrinho. Tente novamente.")
		return domain.Cart{}, apperrors.ServiceUnavailable("cart could not be loaded")
	}
	mirror := cart.Attach(ctx, store, kv, s.logger)
	defer mirror.Detach()

	if err := fn(store); err != nil {
		return domain.Cart{}, err
	}
	if err := mirror.Err(); err != nil {
		notify.Fail(ctx, "Não foi possível salvar o carrinho. Tente novamente.")
		return domain.Cart{}, apperrors.ServiceUnavailable("cart could not be saved")
	}
	return store.Cart(), nil
}

func (s *CartService) rejected(ctx context.Context, sessionID, op string, res cart.Result) error {
	cartOperationsTotal.WithLabelValues(op, string(cart.Rejected)).Inc()
	s.logger.WarnContext(ctx, "cart rejected item",
		slog.String("operation", op),
		slog.String("reason", string(res.Reason)),
		slog.Int64("product_id", res.Item.ID),
		slog.Int64("variant_id", res.Item.VariantID),
		slog.Int("quantity", res.Item.Quantity),
	)
	if err := s.events.PublishItemRejected(ctx, sessionID, string(res.Reason), res.Item); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.item_rejected event", slog.String("error", err.Error()))
	}

	notify.Fail(ctx, rejectionMessages[res.Reason])
	return RejectedError(res.Reason)
}

func (s *CartService) publishUpdated(ctx context.Context, sessionID, action string, c domain.Cart) {
	if err := s.events.PublishCartUpdated(ctx, sessionID, action, c); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}
}
