package course

// Orderer is implemented by the pointer of anything carrying a dense
// 1-based position.
type Orderer[T any] interface {
	*T
	SetOrder(int)
}

// Renumber assigns 1..N in slice order.
func Renumber[T any, P Orderer[T]](items []T) {
	for i := range items {
		P(&items[i]).SetOrder(i + 1)
	}
}

// Insert places item at index at (clamped) and renumbers.
func Insert[T any, P Orderer[T]](items []T, at int, item T) []T {
	if at < 0 {
		at = 0
	}
	if at > len(items) {
		at = len(items)
	}

	items = append(items, item)
	copy(items[at+1:], items[at:])
	items[at] = item

	Renumber[T, P](items)
	return items
}

// Remove drops the item at index at and renumbers. Out of range indexes
// leave items untouched.
func Remove[T any, P Orderer[T]](items []T, at int) []T {
	if at < 0 || at >= len(items) {
		return items
	}

	items = append(items[:at], items[at+1:]...)
	Renumber[T, P](items)
	return items
}

// Move swaps the item at index at with its neighbour delta steps away
// (-1 up, +1 down) and renumbers. It reports whether anything moved.
func Move[T any, P Orderer[T]](items []T, at, delta int) bool {
	to := at + delta
	if at < 0 || at >= len(items) || to < 0 || to >= len(items) || delta == 0 {
		return false
	}

	items[at], items[to] = items[to], items[at]
	Renumber[T, P](items)
	return true
}
