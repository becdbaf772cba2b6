package orders

const (
	TopicOrderPlaced    = "warehouse.order.placed"
	TopicOrderCancelled = "warehouse.order.cancelled"
	TopicOrderCompleted = "warehouse.order.completed"
	TopicStockAdjusted  = "warehouse.stock.adjusted"
	TopicLowStock       = "warehouse.stock.low"
)

// TopicFor maps an event type to the topic it is published on.
func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderPlaced:
		return TopicOrderPlaced
	case EventOrderCancelled:
		return TopicOrderCancelled
	case EventOrderCompleted:
		return TopicOrderCompleted
	case EventStockAdjusted:
		return TopicStockAdjusted
	case EventLowStock:
		return TopicLowStock
	}
	return ""
}
