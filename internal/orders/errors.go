package orders

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("order not found")
	ErrUnknownItem   = errors.New("menu item not found")
	ErrInvalidAmount = errors.New("invalid order amount")
	ErrInvalidTable  = errors.New("invalid table number")
	ErrNotPending    = errors.New("order is not in pending state")
	ErrOrderExpired  = errors.New("order expired")

	// CAS update kalah race dengan transisi lain; caller boleh retry.
	ErrConflict = errors.New("order transition conflict")
)

// NotCancellableError membawa status sekarang supaya caller bisa kasih
// pesan yang jelas ("sudah paid", "sudah expired", dst).
type NotCancellableError struct {
	Status Status
}

func (e *NotCancellableError) Error() string {
	return fmt.Sprintf("order cannot be cancelled: status is %s", e.Status)
}
