package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderPaid      = "OrderPaid"
	EventOrderExpired   = "OrderExpired"
	EventOrderCancelled = "OrderCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "table-order-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_code
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type ItemSnapshot struct {
	MenuID    int64 `json:"menu_id"`
	Qty       int   `json:"qty"`
	UnitPrice int64 `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderID     int64          `json:"order_id"`
	OrderCode   string         `json:"order_code"`
	TableNumber int            `json:"table_number"`
	Items       []ItemSnapshot `json:"items"`
	Subtotal    int64          `json:"subtotal"`
	OtherFees   int64          `json:"other_fees"`
	Total       int64          `json:"total"`
}

type OrderPaidPayload struct {
	OrderID     int64     `json:"order_id"`
	OrderCode   string    `json:"order_code"`
	TableNumber int       `json:"table_number"`
	Total       int64     `json:"total"`
	PaymentRef  *string   `json:"payment_ref,omitempty"`
	PaidAt      time.Time `json:"paid_at"`
}

type OrderExpiredPayload struct {
	OrderID     int64  `json:"order_id"`
	OrderCode   string `json:"order_code"`
	TableNumber int    `json:"table_number"`
}

type OrderCancelledPayload struct {
	OrderID     int64  `json:"order_id"`
	OrderCode   string `json:"order_code"`
	TableNumber int    `json:"table_number"`
}
