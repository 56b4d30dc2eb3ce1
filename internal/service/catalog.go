package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/winestore/internal/catalog"
	"github.com/utafrali/winestore/internal/domain"
	"github.com/utafrali/winestore/pkg/pagination"
	"github.com/utafrali/winestore/pkg/slug"
)

// ListProductsInput selects a page of the storefront listing.
type ListProductsInput struct {
	pagination.Params
	Category string
	Search   string
}

// CatalogService serves product listings and detail pages flattened to the
// storefront locale.
type CatalogService struct {
	reader catalog.Reader
	locale string
	logger *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(reader catalog.Reader, locale string, logger *slog.Logger) *CatalogService {
	if locale == "" {
		locale = domain.DefaultLocale
	}
	return &CatalogService{reader: reader, locale: locale, logger: logger}
}

// List returns one page of published products. The search term is applied
// again locally, ignoring case and accents, since the Product API matches
// it exactly.
func (s *CatalogService) List(ctx context.Context, in ListProductsInput) (pagination.Page[domain.ProductSummary], error) {
	products, err := s.reader.List(ctx, catalog.ListQuery{
		Params:   in.Params,
		Category: in.Category,
		Search:   in.Search,
	})
	if err != nil {
		return pagination.Page[domain.ProductSummary]{}, fmt.Errorf("list products: %w", err)
	}

	items := make([]domain.ProductSummary, 0, len(products))
	for _, p := range products {
		if in.Search != "" && !s.matches(p, in.Search) {
			continue
		}
		items = append(items, Summarize(p, s.locale))
	}

	return pagination.NewPage(items, len(products), in.Params), nil
}

func (s *CatalogService) matches(p domain.Product, term string) bool {
	if slug.Contains(p.Name.Get(s.locale), term) {
		return true
	}
	for _, c := range p.Categories {
		if slug.Contains(c.Name.Get(s.locale), term) {
			return true
		}
	}
	return false
}

// Get returns the detail view of a product.
func (s *CatalogService) Get(ctx context.Context, id int64) (domain.ProductDetail, error) {
	p, err := s.reader.Get(ctx, id)
	if err != nil {
		return domain.ProductDetail{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return Detail(*p, s.locale), nil
}

// Summarize flattens p into a listing card priced by its first priced
// variant.
func Summarize(p domain.Product, locale string) domain.ProductSummary {
	category := p.PrimaryCategory(locale)
	sum := domain.ProductSummary{
		ID:           p.ID,
		Name:         p.Name.Get(locale),
		Image:        p.PrimaryImage(),
		Category:     category,
		CategorySlug: slug.Generate(category),
		InStock:      p.InStock(),
		OnSale:       p.OnSale(),
	}
	if v, ok := p.FirstPricedVariant(); ok {
		sum.VariantID = v.ID
		sum.Price = v.Price
		if v.OnSale() {
			sum.CompareAtPrice = v.CompareAtPrice
		}
	}
	return sum
}

// Detail flattens p into the product page payload.
func Detail(p domain.Product, locale string) domain.ProductDetail {
	d := domain.ProductDetail{
		ID:          p.ID,
		Name:        p.Name.Get(locale),
		Description: p.Description.Get(locale),
		Images:      make([]string, 0, len(p.Images)),
		Categories:  make([]string, 0, len(p.Categories)),
		Variants:    make([]domain.VariantView, 0, len(p.Variants)),
		InStock:     p.InStock(),
		OnSale:      p.OnSale(),
	}
	for _, img := range p.Images {
		if img.Src != "" {
			d.Images = append(d.Images, img.Src)
		}
	}
	for _, c := range p.Categories {
		d.Categories = append(d.Categories, c.Name.Get(locale))
	}
	for _, v := range p.Variants {
		view := domain.VariantView{
			ID:     v.ID,
			Label:  variantLabel(v, locale),
			Price:  v.Price,
			Stock:  v.Stock,
			OnSale: v.OnSale(),
		}
		if view.OnSale {
			view.CompareAtPrice = v.CompareAtPrice
		}
		d.Variants = append(d.Variants, view)
	}
	return d
}

func variantLabel(v domain.Variant, locale string) string {
	label := ""
	for _, val := range v.Values {
		s := val.Get(locale)
		if s == "" {
			continue
		}
		if label != "" {
			label += " / "
		}
		label += s
	}
	return label
}
