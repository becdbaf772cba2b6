package orders

import "time"

// Limits mirrored by the products table constraints.
const (
	MaxNameLen  = 100
	MaxSKULen   = 50
	MaxNotesLen = 200
	MaxQty      = 100000
)

type Product struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	SKU             string    `json:"sku"`
	PriceCents      int64     `json:"price_cents"`
	QuantityInStock int       `json:"quantity_in_stock"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Order struct {
	ID         int64       `json:"id"`
	UserID     string      `json:"user_id"`
	Status     Status      `json:"status"` // see status.go
	Notes      string      `json:"notes,omitempty"`
	TotalCents int64       `json:"total_cents"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Items      []OrderItem `json:"items"`
}

type OrderItem struct {
	ID             int64  `json:"id"`
	OrderID        int64  `json:"order_id"`
	ProductID      int64  `json:"product_id"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"` // snapshot at placement, not a live reference
	ProductName    string `json:"product_name,omitempty"`
	ProductSKU     string `json:"product_sku,omitempty"`
}

// LineItem is a requested (product, quantity) pair before normalization.
type LineItem struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}
