package models

// TaxRate is the flat tax applied to the cart subtotal.
const TaxRate = 0.08

// Totals is the full derived state of a cart over its item set. Only ACTIVE
// items count; SAVED_FOR_LATER and REMOVED items are excluded entirely.
type Totals struct {
	Subtotal      float64
	TaxAmount     float64
	TotalAmount   float64
	ItemCount     int
	TotalQuantity int
}

// ComputeTotals derives totals from an item set. It is a pure function:
// calling it twice with no intervening change yields identical output, which
// keeps the cart invariants independently testable.
func ComputeTotals(items []*CartItem, discountAmount float64) Totals {
	var t Totals

	for _, item := range items {
		if !item.IsActive() {
			continue
		}
		t.Subtotal += item.TotalPrice
		t.ItemCount++
		t.TotalQuantity += item.Quantity
	}

	t.TaxAmount = t.Subtotal * TaxRate

	t.TotalAmount = t.Subtotal + t.TaxAmount - discountAmount
	if t.TotalAmount < 0 {
		t.TotalAmount = 0
	}

	return t
}
