package domain

// LineItem is a single cart line as read from the cart store.
type LineItem struct {
	ProductID   string `json:"product_id"`
	VariationID string `json:"variation_id,omitempty"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	TaxClass    string `json:"tax_class,omitempty"`
}

// CartSnapshot is a point-in-time read of the external cart store.
// The checkout engine never mutates the cart except to clear it after a
// successful order commit.
type CartSnapshot struct {
	Items    []LineItem `json:"items"`
	Subtotal int64      `json:"subtotal"`
	Currency string     `json:"currency"`
}

// IsEmpty reports whether the snapshot has no line items.
func (c *CartSnapshot) IsEmpty() bool {
	return len(c.Items) == 0
}

// CalculateSubtotal derives the subtotal from the line items in minor units.
func (c *CartSnapshot) CalculateSubtotal() int64 {
	var subtotal int64
	for _, item := range c.Items {
		subtotal += item.UnitPrice * int64(item.Quantity)
	}
	return subtotal
}
