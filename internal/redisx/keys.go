package redisx

import "time"

const (
	// Cache status order: order_status:{order_id} -> {"status":"...","updated_at":"..."}
	KeyOrderStatus = "order_status:%d"

	// Cache listing menu (kategori aktif + menu aktif), key tunggal.
	KeyMenuListing = "menu_listing"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLMenuCache   = time.Minute
	TTLDedup       = 48 * time.Hour
)
