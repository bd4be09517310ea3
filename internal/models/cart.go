package models

import "github.com/shopspring/decimal"

// CartItem is one line of a shopping cart.
type CartItem struct {
	ProductID string          `json:"product_id" binding:"required"`
	Category  string          `json:"category" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity" binding:"required,gte=1"`
}

// Cart is the ordered item list a coupon is evaluated against. An empty cart
// is valid; it just has a zero value.
type Cart struct {
	Items []CartItem `json:"items" binding:"dive"`
}

// TotalValue returns Σ(unitPrice × quantity).
func (c Cart) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// TotalItems returns Σ(quantity).
func (c Cart) TotalItems() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Categories returns the distinct item categories, in first-seen order.
func (c Cart) Categories() []string {
	seen := make(map[string]struct{}, len(c.Items))
	var cats []string
	for _, it := range c.Items {
		if _, ok := seen[it.Category]; ok {
			continue
		}
		seen[it.Category] = struct{}{}
		cats = append(cats, it.Category)
	}
	return cats
}

// UserProfile describes the shopper a coupon is evaluated for. This is
// request payload supplied by the caller (e.g. a checkout service), not a
// platform account.
type UserProfile struct {
	UserID        string          `json:"user_id" binding:"required"`
	UserTier      string          `json:"user_tier"`
	Country       string          `json:"country"`
	LifetimeSpend decimal.Decimal `json:"lifetime_spend"`
	OrdersPlaced  int             `json:"orders_placed" binding:"gte=0"`
}
