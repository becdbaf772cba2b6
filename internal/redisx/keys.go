package redisx

import "time"

const (
	// Order status cache: wh:order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "wh:order_status:%d"

	// Event dedup for consumers: wh:dedup:{service}:{event_id}
	KeyDedup = "wh:dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
