package orders

import "fmt"

// Quote: rincian biaya satu order, semua dalam satuan rupiah bulat.
type Quote struct {
	Subtotal  int64 `json:"subtotal"`
	OtherFees int64 `json:"other_fees"`
	Total     int64 `json:"total"`
}

// ComputeQuote hitung subtotal dari harga katalog (bukan harga dari client),
// lalu tambahkan service fee feeRatePct persen, dibulatkan half-up ke rupiah.
// Pure function: tidak menyentuh DB, harga disuplai caller.
func ComputeQuote(items []ItemInput, prices map[int64]int64, feeRatePct int) (Quote, error) {
	var subtotal int64
	for _, it := range items {
		price, ok := prices[it.MenuID]
		if !ok {
			return Quote{}, fmt.Errorf("%w: menu_id=%d", ErrUnknownItem, it.MenuID)
		}
		subtotal += price * int64(it.Qty)
	}
	// jaga-jaga: harga 0 di katalog atau qty negatif yang lolos validasi
	if subtotal <= 0 {
		return Quote{}, ErrInvalidAmount
	}

	fee := (subtotal*int64(feeRatePct) + 50) / 100 // round half-up
	return Quote{
		Subtotal:  subtotal,
		OtherFees: fee,
		Total:     subtotal + fee,
	}, nil
}
