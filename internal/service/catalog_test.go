package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/winestore/internal/catalog"
	"github.com/utafrali/winestore/internal/domain"
	apperrors "github.com/utafrali/winestore/pkg/errors"
	"github.com/utafrali/winestore/pkg/pagination"
)

func TestCatalogList(t *testing.T) {
	reader := new(mockCatalog)
	params := pagination.Params{Page: 1, PerPage: 2}
	reader.On("List", mock.Anything, catalog.ListQuery{Params: params}).
		Return([]domain.Product{*tannat(), *rose()}, nil)
	svc := NewCatalogService(reader, "pt", newTestLogger())

	page, err := svc.List(context.Background(), ListProductsInput{Params: params})
	require.NoError(t, err)

	require.Len(t, page.Items, 2)
	assert.True(t, page.HasNext)
	assert.False(t, page.HasPrev)

	first := page.Items[0]
	assert.Equal(t, "Tannat Reserva", first.Name)
	assert.Equal(t, "vinhos-tintos", first.CategorySlug)
	assert.Equal(t, int64(11), first.VariantID)
	assert.Equal(t, "89.9", first.Price.String())
	require.NotNil(t, first.CompareAtPrice)
	assert.True(t, first.OnSale)
	assert.True(t, first.InStock)

	assert.Nil(t, page.Items[1].CompareAtPrice)
	assert.False(t, page.Items[1].OnSale)
}

func TestCatalogList_SearchIgnoresAccents(t *testing.T) {
	reader := new(mockCatalog)
	reader.On("List", mock.Anything, mock.Anything).Return([]domain.Product{*tannat(), *rose(), *unpriced()}, nil)
	svc := NewCatalogService(reader, "pt", newTestLogger())

	page, err := svc.List(context.Background(), ListProductsInput{Params: pagination.DefaultParams(), Search: "ROSE"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(2), page.Items[0].ID)

	page, err = svc.List(context.Background(), ListProductsInput{Params: pagination.DefaultParams(), Search: "espumante"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	page, err = svc.List(context.Background(), ListProductsInput{Params: pagination.DefaultParams(), Search: "Especial"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Nil(t, page.Items[0].Price)
	assert.Zero(t, page.Items[0].VariantID)
}

func TestCatalogList_Error(t *testing.T) {
	reader := new(mockCatalog)
	reader.On("List", mock.Anything, mock.Anything).Return(nil, apperrors.ServiceUnavailable("down"))
	svc := NewCatalogService(reader, "pt", newTestLogger())

	_, err := svc.List(context.Background(), ListProductsInput{Params: pagination.DefaultParams()})
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestCatalogGet(t *testing.T) {
	reader := new(mockCatalog)
	reader.On("Get", mock.Anything, int64(1)).Return(tannat(), nil)
	svc := NewCatalogService(reader, "en", newTestLogger())

	d, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "Tannat Reserve", d.Name)
	assert.Equal(t, "Encorpado e macio", d.Description)
	assert.Equal(t, []string{"https://cdn.example.com/1.jpg"}, d.Images)
	assert.Equal(t, []string{"Vinhos Tintos"}, d.Categories)
	require.Len(t, d.Variants, 3)
	assert.Equal(t, "375ml", d.Variants[0].Label)
	assert.Nil(t, d.Variants[0].Price)
	assert.True(t, d.Variants[1].OnSale)
	assert.Equal(t, "1,5L / Magnum", d.Variants[2].Label)
	assert.Nil(t, d.Variants[2].CompareAtPrice)
}
