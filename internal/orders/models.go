package orders

import "time"

type Order struct {
	ID            int64      `json:"id"`
	Code          string     `json:"order_code"`
	TableNumber   int        `json:"table_number"`
	CustomerToken string     `json:"customer_token"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone"`
	CustomerEmail string     `json:"customer_email"`
	CustomerNote  *string    `json:"customer_note,omitempty"`
	Subtotal      int64      `json:"subtotal"`
	OtherFees     int64      `json:"other_fees"`
	Total         int64      `json:"total"`
	Status        Status     `json:"status"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	PaymentRef    *string    `json:"payment_ref,omitempty"`
	QRString      *string    `json:"qr_string,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Items         []Item     `json:"items,omitempty"`
}

// Item adalah snapshot satu baris menu saat order dibuat; nama & harga
// disalin supaya histori tetap akurat walau menu berubah.
type Item struct {
	ID        int64  `json:"id"`
	OrderID   int64  `json:"order_id"`
	MenuID    int64  `json:"menu_id"`
	MenuName  string `json:"menu_name"`
	UnitPrice int64  `json:"unit_price"`
	Qty       int    `json:"qty"`
	LineTotal int64  `json:"line_total"`
}

type ItemInput struct {
	MenuID int64 `json:"menu_id"`
	Qty    int   `json:"qty"`
}

// CreateOrderInput: data checkout yang sudah lolos validasi field di handler.
type CreateOrderInput struct {
	TableNumber   int
	CustomerToken string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	CustomerNote  *string
	Items         []ItemInput
}
