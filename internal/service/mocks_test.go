package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/utafrali/winestore/internal/catalog"
	"github.com/utafrali/winestore/internal/domain"
)

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

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishCartUpdated(ctx context.Context, sessionID, action string, cart domain.Cart) error {
	return m.Called(ctx, sessionID, action, cart).Error(0)
}

func (m *mockEvents) PublishCartCleared(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *mockEvents) PublishItemRejected(ctx context.Context, sessionID, reason string, item domain.CartItem) error {
	return m.Called(ctx, sessionID, reason, item).Error(0)
}

func (m *mockEvents) PublishCheckoutCreated(ctx context.Context, sessionID string, cart domain.Cart, redirectURL string) error {
	return m.Called(ctx, sessionID, cart, redirectURL).Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func tannat() *domain.Product {
	return &domain.Product{
		ID:          1,
		Name:        domain.Localized{"pt": "Tannat Reserva", "en": "Tannat Reserve"},
		Description: domain.Localized{"pt": "Encorpado e macio"},
		Images:      []domain.Image{{Src: "https://cdn.example.com/1.jpg"}},
		Categories:  []domain.Category{{Name: domain.Localized{"pt": "Vinhos Tintos"}}},
		Variants: []domain.Variant{
			{ID: 10, Price: nil, Stock: 0, Values: []domain.Localized{{"pt": "375ml"}}},
			{ID: 11, Price: price("89.90"), CompareAtPrice: price("99.90"), Stock: 5, Values: []domain.Localized{{"pt": "750ml"}}},
			{ID: 12, Price: price("159.00"), Stock: 2, Values: []domain.Localized{{"pt": "1,5L"}, {"pt": "Magnum"}}},
		},
		Published: true,
	}
}

func rose() *domain.Product {
	return &domain.Product{
		ID:         2,
		Name:       domain.Localized{"pt": "Rosé Brut"},
		Categories: []domain.Category{{Name: domain.Localized{"pt": "Espumantes"}}},
		Variants:   []domain.Variant{{ID: 20, Price: price("64.50"), Stock: 1}},
	}
}

func unpriced() *domain.Product {
	return &domain.Product{
		ID:       3,
		Name:     domain.Localized{"pt": "Safra Especial"},
		Variants: []domain.Variant{{ID: 30}},
	}
}

var domainProductWithZeroVariant = domain.Product{
	ID:       5,
	Name:     domain.Localized{"pt": "Safra Antiga"},
	Variants: []domain.Variant{{ID: 0, Price: price("10")}},
}
