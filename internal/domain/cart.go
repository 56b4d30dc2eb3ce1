package domain

import "github.com/shopspring/decimal"

// CartItem is one aggregated line of the cart. ID is the product ID and the
// merge key; Name, Image, Category and Price are copied when the product is
// added and never re-fetched.
type CartItem struct {
	ID        int64           `json:"id"`
	VariantID int64           `json:"variant_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns price × quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is a read-only view of the cart lines with derived totals.
type Cart struct {
	Items     []CartItem      `json:"items"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// NewCart builds the view over items.
func NewCart(items []CartItem) Cart {
	if items == nil {
		items = []CartItem{}
	}
	c := Cart{Items: items, Total: decimal.Zero}
	for _, it := range items {
		c.ItemCount += it.Quantity
		c.Total = c.Total.Add(it.Subtotal())
	}
	return c
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find returns the line for productID.
func (c Cart) Find(productID int64) (CartItem, bool) {
	for _, it := range c.Items {
		if it.ID == productID {
			return it, true
		}
	}
	return CartItem{}, false
}
