package domain

import "github.com/shopspring/decimal"

// DefaultLocale is the locale the Product API always populates.
const DefaultLocale = "pt"

// Localized is a locale-keyed string as served by the Product API, e.g.
// {"pt": "Vinho Tinto", "en": "Red Wine"}.
type Localized map[string]string

// Get returns the value for locale, falling back to DefaultLocale and then
// to any non-empty value.
func (l Localized) Get(locale string) string {
	if v := l[locale]; v != "" {
		return v
	}
	if v := l[DefaultLocale]; v != "" {
		return v
	}
	for _, v := range l {
		if v != "" {
			return v
		}
	}
	return ""
}

type Image struct {
	Src string `json:"src"`
}

type Category struct {
	ID   int64     `json:"id,omitempty"`
	Name Localized `json:"name"`
}

// Variant is one purchasable configuration of a product (e.g. 750ml).
type Variant struct {
	ID             int64            `json:"id"`
	Price          *decimal.Decimal `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price"`
	Stock          int              `json:"stock"`
	Values         []Localized      `json:"values"`
}

// HasPrice reports whether the variant carries a usable price.
func (v Variant) HasPrice() bool {
	return v.Price != nil && !v.Price.IsNegative()
}

// OnSale reports whether compare_at_price is above price.
func (v Variant) OnSale() bool {
	return v.HasPrice() && v.CompareAtPrice != nil && v.CompareAtPrice.GreaterThan(*v.Price)
}

// Product is the catalog entry returned by the Product API.
type Product struct {
	ID          int64      `json:"id"`
	Name        Localized  `json:"name"`
	Description Localized  `json:"description"`
	Images      []Image    `json:"images"`
	Categories  []Category `json:"categories"`
	Variants    []Variant  `json:"variants"`
	Published   bool       `json:"published"`
}

// Variant returns the variant with the given ID.
func (p Product) Variant(id int64) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// FirstPricedVariant returns the first variant carrying a price.
func (p Product) FirstPricedVariant() (Variant, bool) {
	for _, v := range p.Variants {
		if v.HasPrice() {
			return v, true
		}
	}
	return Variant{}, false
}

// PrimaryImage returns the first image source, or "".
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].Src
}

// PrimaryCategory returns the first category name in locale, or "".
func (p Product) PrimaryCategory(locale string) string {
	if len(p.Categories) == 0 {
		return ""
	}
	return p.Categories[0].Name.Get(locale)
}

// InStock reports whether any variant has stock left.
func (p Product) InStock() bool {
	for _, v := range p.Variants {
		if v.Stock > 0 {
			return true
		}
	}
	return false
}

// OnSale reports whether any variant is discounted.
func (p Product) OnSale() bool {
	for _, v := range p.Variants {
		if v.OnSale() {
			return true
		}
	}
	return false
}

// ProductSummary is the flattened listing card the storefront serves.
type ProductSummary struct {
	ID             int64            `json:"id"`
	Name           string           `json:"name"`
	Image          string           `json:"image"`
	Category       string           `json:"category"`
	CategorySlug   string           `json:"category_slug"`
	VariantID      int64            `json:"variant_id,omitempty"`
	Price          *decimal.Decimal `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price,omitempty"`
	InStock        bool             `json:"in_stock"`
	OnSale         bool             `json:"on_sale"`
}

// VariantView is a variant flattened to one locale.
type VariantView struct {
	ID             int64            `json:"id"`
	Label          string           `json:"label"`
	Price          *decimal.Decimal `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price,omitempty"`
	Stock          int              `json:"stock"`
	OnSale         bool             `json:"on_sale"`
}

// ProductDetail is the product page payload flattened to one locale.
type ProductDetail struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Images      []string      `json:"images"`
	Categories  []string      `json:"categories"`
	Variants    []VariantView `json:"variants"`
	InStock     bool          `json:"in_stock"`
	OnSale      bool          `json:"on_sale"`
}
