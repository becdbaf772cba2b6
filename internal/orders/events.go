package orders

import (
	"encoding/json"
	"strconv"
	"time"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderCancelled = "OrderCancelled"
	EventOrderCompleted = "OrderCompleted"
	EventStockAdjusted  = "StockAdjusted"
	EventLowStock       = "LowStock"
)

type Envelope struct {
	EventID       string          `json:"event_id"` // uuid
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "warehouse-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id or product id
	Payload       json.RawMessage `json:"payload"`
}

// ---- per-event payloads ----

type PlacedItem struct {
	ProductID      int64 `json:"product_id"`
	Qty            int   `json:"qty"`
	UnitPriceCents int64 `json:"unit_price_cents"`
}

type OrderPlacedPayload struct {
	OrderID    int64        `json:"order_id"`
	UserID     string       `json:"user_id"`
	Items      []PlacedItem `json:"items"`
	TotalCents int64        `json:"total_cents"`
}

type OrderCancelledPayload struct {
	OrderID  int64      `json:"order_id"`
	Released []LineItem `json:"released"` // stock returned per product
}

type OrderCompletedPayload struct {
	OrderID int64 `json:"order_id"`
}

type StockAdjustedPayload struct {
	ProductID int64 `json:"product_id"`
	Delta     int   `json:"delta"`
	NewStock  int   `json:"new_stock"`
}

type LowStockPayload struct {
	ProductID int64  `json:"product_id"`
	SKU       string `json:"sku"`
	Stock     int    `json:"stock"`
	Threshold int    `json:"threshold"`
}

// PartitionKey keeps every event of one aggregate on one partition so
// consumers see them in order.
func PartitionKey(id int64) []byte { return []byte(strconv.FormatInt(id, 10)) }
