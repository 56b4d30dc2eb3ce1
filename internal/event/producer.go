// Package event publishes storefront domain events.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/winestore/internal/domain"
	pkgkafka "github.com/utafrali/winestore/pkg/kafka"
)

// Event types, also used as "<domain>.<action>" in topic names.
const (
	TypeCartUpdated      = "cart.updated"
	TypeCartCleared      = "cart.cleared"
	TypeCartItemRejected = "cart.item_rejected"
	TypeCheckoutCreated  = "checkout.created"
)

// SourceStorefront identifies events originating from this service.
const SourceStorefront = "storefront"

var (
	TopicCartUpdated      = pkgkafka.Topic("cart", "updated")
	TopicCartCleared      = pkgkafka.Topic("cart", "cleared")
	TopicCartItemRejected = pkgkafka.Topic("cart", "item_rejected")
	TopicCheckoutCreated  = pkgkafka.Topic("checkout", "created")
)

// CartItemData is a cart line inside event payloads.
type CartItemData struct {
	ProductID int64  `json:"product_id"`
	VariantID int64  `json:"variant_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
}

// CartUpdatedData is the payload of cart.updated.
type CartUpdatedData struct {
	Action    string         `json:"action"`
	Items     []CartItemData `json:"items"`
	ItemCount int            `json:"item_count"`
	Total     string         `json:"total"`
}

// CartItemRejectedData is the payload of cart.item_rejected.
type CartItemRejectedData struct {
	Reason string       `json:"reason"`
	Item   CartItemData `json:"item"`
}

// CheckoutCreatedData is the payload of checkout.created.
type CheckoutCreatedData struct {
	Items       []CartItemData `json:"items"`
	ItemCount   int            `json:"item_count"`
	Total       string         `json:"total"`
	RedirectURL string         `json:"redirect_url"`
}

// Producer publishes storefront events.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates an event producer on top of publisher.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

func itemData(it domain.CartItem) CartItemData {
	return CartItemData{
		ProductID: it.ID,
		VariantID: it.VariantID,
		Name:      it.Name,
		Price:     it.Price.StringFixed(2),
		Quantity:  it.Quantity,
	}
}

func itemsData(items []domain.CartItem) []CartItemData {
	out := make([]CartItemData, len(items))
	for i, it := range items {
		out[i] = itemData(it)
	}
	return out
}

// PublishCartUpdated publishes cart.updated after action changed the cart.
func (p *Producer) PublishCartUpdated(ctx context.Context, sessionID, action string, cart domain.Cart) error {
	return p.publish(ctx, TopicCartUpdated, TypeCartUpdated, sessionID, CartUpdatedData{
		Action:    action,
		Items:     itemsData(cart.Items),
		ItemCount: cart.ItemCount,
		Total:     cart.Total.StringFixed(2),
	})
}

// PublishCartCleared publishes cart.cleared.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID string) error {
	return p.publish(ctx, TopicCartCleared, TypeCartCleared, sessionID, struct{}{})
}

// PublishItemRejected reports an add the cart refused.
func (p *Producer) PublishItemRejected(ctx context.Context, sessionID, reason string, item domain.CartItem) error {
	return p.publish(ctx, TopicCartItemRejected, TypeCartItemRejected, sessionID, CartItemRejectedData{
		Reason: reason,
		Item:   itemData(item),
	})
}

// PublishCheckoutCreated publishes checkout.created.
func (p *Producer) PublishCheckoutCreated(ctx context.Context, sessionID string, cart domain.Cart, redirectURL string) error {
	return p.publish(ctx, TopicCheckoutCreated, TypeCheckoutCreated, sessionID, CheckoutCreatedData{
		Items:       itemsData(cart.Items),
		ItemCount:   cart.ItemCount,
		Total:       cart.Total.StringFixed(2),
		RedirectURL: redirectURL,
	})
}

func (p *Producer) publish(ctx context.Context, topic, eventType, sessionID string, data any) error {
	evt, err := pkgkafka.NewEvent(eventType, sessionID, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	evt.FromContext(ctx)

	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("event_type", eventType),
		slog.String("session_id", sessionID),
	)
	return nil
}
