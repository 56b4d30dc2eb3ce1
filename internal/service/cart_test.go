package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/winestore/internal/cart"
	"github.com/utafrali/winestore/internal/notify"
	"github.com/utafrali/winestore/internal/repository/memory"
	apperrors "github.com/utafrali/winestore/pkg/errors"
)

const session = "7b0c1f3e-0d5a-4b8e-9a43-2f4e2b1c9d10"

type cartFixture struct {
	svc      *CartService
	sessions *memory.SessionStore
	catalog  *mockCatalog
	events   *mockEvents
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	f := &cartFixture{
		sessions: memory.NewSessionStore(),
		catalog:  new(mockCatalog),
		events:   new(mockEvents),
	}
	f.events.On("PublishCartUpdated", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.events.On("PublishCartCleared", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.events.On("PublishItemRejected", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.catalog.On("Get", mock.Anything, int64(1)).Return(tannat(), nil).Maybe()
	f.catalog.On("Get", mock.Anything, int64(2)).Return(rose(), nil).Maybe()
	f.catalog.On("Get", mock.Anything, int64(3)).Return(unpriced(), nil).Maybe()
	f.svc = NewCartService(f.sessions, f.catalog, f.events, "pt", newTestLogger())
	return f
}

func (f *cartFixture) stored(t *testing.T) string {
	t.Helper()
	data, err := f.sessions.Get(context.Background(), session, cart.StorageKey)
	require.NoError(t, err)
	return string(data)
}

func TestAddProduct_FirstPricedVariant(t *testing.T) {
	f := newCartFixture(t)
	ctx, collector := notify.NewContext(context.Background())

	c, err := f.svc.AddProduct(ctx, session, AddProductInput{ProductID: 1})
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	line := c.Items[0]
	assert.Equal(t, int64(11), line.VariantID)
	assert.Equal(t, "Tannat Reserva", line.Name)
	assert.Equal(t, "Vinhos Tintos", line.Category)
	assert.Equal(t, "https://cdn.example.com/1.jpg", line.Image)
	assert.Equal(t, "89.9", line.Price.String())
	assert.Equal(t, 1, line.Quantity)

	assert.JSONEq(t, `[{"id":1,"name":"Tannat Reserva","image":"https://cdn.example.com/1.jpg","price":89.9,"quantity":1,"category":"Vinhos Tintos","variant_id":11}]`, f.stored(t))

	notes := collector.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.Success, notes[0].Level)
	f.events.AssertCalled(t, "PublishCartUpdated", mock.Anything, session, "add", mock.Anything)
}

func TestAddProduct_MergesQuantities(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddProduct(ctx, session, AddProductInput{ProductID: 1, VariantID: 11})
	require.NoError(t, err)
	_, err = f.svc.AddProduct(ctx, session, AddProductInput{ProductID: 2, Quantity: 2})
	require.NoError(t, err)
	c, err := f.svc.AddProduct(ctx, session, AddProductInput{ProductID: 1, VariantID: 11, Quantity: 3})
	require.NoError(t, err)

	require.Len(t, c.Items, 2)
	assert.Equal(t, int64(1), c.Items[0].ID)
	assert.Equal(t, 4, c.Items[0].Quantity)
	assert.Equal(t, 6, c.ItemCount)
	assert.Equal(t, "488.6", c.Total.String())
}

func TestAddProduct_OtherVariantTakesOverLine(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddProduct(ctx, session, AddProductInput{ProductID: 1, VariantID: 11})
	require.NoError(t, err)
	c, err := f.svc.AddProduct(ctx, session, AddProductInput{ProductID: 1, VariantID: 12})
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(12), c.Items[0].VariantID)
	assert.Equal(t, "159", c.Items[0].Price.String())
	assert.Equal(t, 2, c.Items[0].Quantity)
}

func TestAddProduct_NoPricedVariant(t *testing.T) {
	f := newCartFixture(t)
	ctx, collector := notify.NewContext(context.Background())

	_, err := f.svc.AddProduct(ctx, session, AddProductInput{ProductID: 3})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	notes := collector.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.Error, notes[0].Level)

	_, err = f.sessions.Get(context.Background(), session, cart.StorageKey)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	f.events.AssertNotCalled(t, "PublishCartUpdated", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddProduct_RequestedVariantProblems(t *testing.T) {
	tests := []struct {
		name      string
		variantID int64
	}{
		{"unknown variant", 99},
		{"variant without price", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCartFixture(t)

			_, err := f.svc.AddProduct(context.Background(), session, AddProductInput{ProductID: 1, VariantID: tt.variantID})

			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			c, err := f.svc.GetCart(context.Background(), session)
			require.NoError(t, err)
			assert.True(t, c.IsEmpty())
		})
	}
}

func TestAddProduct_QuantityBounds(t *testing.T) {
	f := newCartFixture(t)

	for _, q := range []int{-1, MaxQuantityPerAdd + 1} {
		_, err := f.svc.AddProduct(context.Background(), session, AddProductInput{ProductID: 1, Quantity: q})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "quantity %d", q)
	}
	f.catalog.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestAddProduct_CatalogFailure(t *testing.T) {
	f := newCartFixture(t)
	f.catalog.On("Get", mock.Anything, int64(404)).Return(nil, apperrors.NotFound("product", "404"))
	f.catalog.On("Get", mock.Anything, int64(503)).Return(nil, apperrors.ServiceUnavailable("down"))

	_, err := f.svc.AddProduct(context.Background(), session, AddProductInput{ProductID: 404})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.AddProduct(context.Background(), session, AddProductInput{ProductID: 503})
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestAddProduct_LegacyVariantZeroIsRejected(t *testing.T) {
	f := newCartFixture(t)
	f.catalog.On("Get", mock.Anything, int64(5)).Return(&domainProductWithZeroVariant, nil)
	ctx, collector := notify.NewContext(context.Background())

	_, err := f.svc.AddProduct(ctx, session, AddProductInput{ProductID: 5})

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CART_ITEM_REJECTED", appErr.Code)
	assert.Equal(t, string(cart.ReasonMissingVariant), appErr.Message)
	assert.Equal(t, notify.Error, collector.Drain()[0].Level)
	f.events.AssertCalled(t, "PublishItemRejected", mock.Anything, session, "missing_variant", mock.Anything)
}

func TestIncrementDecrement(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddProduct(ctx, session, AddProductInput{ProductID: 1})
	require.NoError(t, err)

	c, err := f.svc.Increment(ctx, session, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Items[0].Quantity)

	c, err = f.svc.Decrement(ctx, session, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity)

	c, err = f.svc.Decrement(ctx, session, 1)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, "[]", f.stored(t))

	_, err = f.svc.Increment(ctx, session, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIncrement_LegacyLineIsRejected(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sessions.Set(ctx, session, cart.StorageKey, []byte(`[{"id":5,"name":"X","price":10}]`)))

	_, err := f.svc.Increment(ctx, session, 5)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	c, err := f.svc.GetCart(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity)

	c, err = f.svc.Decrement(ctx, session, 5)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestRemoveAndClear(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddProduct(ctx, session, AddProductInput{ProductID: 1})
	require.NoError(t, err)
	_, err = f.svc.AddProduct(ctx, session, AddProductInput{ProductID: 2})
	require.NoError(t, err)

	c, err := f.svc.Remove(ctx, session, 99)
	require.NoError(t, err)
	assert.Len(t, c.Items, 2)

	c, err = f.svc.Remove(ctx, session, 1)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(2), c.Items[0].ID)

	c, err = f.svc.Clear(ctx, session)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, "[]", f.stored(t))
	f.events.AssertCalled(t, "PublishCartCleared", mock.Anything, session)
}

func TestGetCart_CorruptStorageReadsEmpty(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sessions.Set(ctx, session, cart.StorageKey, []byte(`not json`)))

	c, err := f.svc.GetCart(ctx, session)

	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.NotNil(t, c.Items)
}

func TestMissingSession(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetCart(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = f.svc.AddProduct(ctx, "", AddProductInput{ProductID: 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = f.svc.Clear(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

type failingSessions struct {
	*memory.SessionStore
}

func (failingSessions) Set(context.Context, string, string, []byte) error {
	return errors.New("redis: connection refused")
}

func TestAddProduct_WriteBackFailure(t *testing.T) {
	f := newCartFixture(t)
	svc := NewCartService(failingSessions{memory.NewSessionStore()}, f.catalog, f.events, "pt", newTestLogger())

	_, err := svc.AddProduct(context.Background(), session, AddProductInput{ProductID: 1})

	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	f.events.AssertNotCalled(t, "PublishCartUpdated", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// unreadableSessions fails every Get once broken is set.
type unreadableSessions struct {
	*memory.SessionStore
	broken bool
}

func (u *unreadableSessions) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	if u.broken {
		return nil, errors.New("i/o timeout")
	}
	return u.SessionStore.Get(ctx, sessionID, key)
}

func TestCartActions_ReadFailureKeepsStoredCart(t *testing.T) {
	f := newCartFixture(t)
	sessions := &unreadableSessions{SessionStore: f.sessions}
	svc := NewCartService(sessions, f.catalog, f.events, "pt", newTestLogger())

	_, err := svc.AddProduct(context.Background(), session, AddProductInput{ProductID: 1, Quantity: 3})
	require.NoError(t, err)
	before := f.stored(t)

	sessions.broken = true
	actions := map[string]func(context.Context) error{
		"add": func(ctx context.Context) error {
			_, err := svc.AddProduct(ctx, session, AddProductInput{ProductID: 2})
			return err
		},
		"increment": func(ctx context.Context) error {
			_, err := svc.Increment(ctx, session, 1)
			return err
		},
		"remove": func(ctx context.Context) error {
			_, err := svc.Remove(ctx, session, 1)
			return err
		},
		"clear": func(ctx context.Context) error {
			_, err := svc.Clear(ctx, session)
			return err
		},
	}
	for name, action := range actions {
		t.Run(name, func(t *testing.T) {
			ctx, collector := notify.NewContext(context.Background())

			err := action(ctx)

			assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
			assert.Len(t, collector.Drain(), 1)
			assert.Equal(t, before, f.stored(t))
		})
	}

	c, err := svc.GetCart(context.Background(), session)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestConcurrentAddsInOneSession(t *testing.T) {
	f := newCartFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddProduct(context.Background(), session, AddProductInput{ProductID: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := f.svc.GetCart(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 20, c.Items[0].Quantity)
	assert.Zero(t, f.svc.locks.size())
}
