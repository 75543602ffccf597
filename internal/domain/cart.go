package domain

import "math"

// Cart is the full snapshot returned by the commerce API. The gateway
// never patches it piecemeal: every successful mutation replaces the
// whole snapshot.
type Cart struct {
	Token          string     `json:"cart_token,omitempty"`
	Items          []CartItem `json:"items"`
	Subtotal       float64    `json:"subtotal"`
	DiscountAmount float64    `json:"discount_amount"`
	Total          float64    `json:"total"`
	Coupon         *Coupon    `json:"coupon,omitempty"`
}

type CartItem struct {
	ProductID    string            `json:"product_id"`
	Name         string            `json:"name"`
	Variant      string            `json:"variant,omitempty"`
	Quantity     int               `json:"quantity"`
	UnitPrice    float64           `json:"unit_price"`
	LineTotal    float64           `json:"line_total"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
	Image        string            `json:"image,omitempty"`
}

type Coupon struct {
	Code   string  `json:"code"`
	Amount float64 `json:"amount,omitempty"`
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// ConsistentTotals reports whether total == subtotal - discount. Values
// arrive pre-rounded from the backend; half a cent of drift is tolerated.
func (c *Cart) ConsistentTotals() bool {
	return math.Abs(c.Total-(c.Subtotal-c.DiscountAmount)) < 0.005
}
