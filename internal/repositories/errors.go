package repositories

import "errors"

// Sentinel errors shared by all repository implementations. Services and
// handlers match on these with errors.Is instead of string comparison.
var (
	// ErrNotFound means the referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInsufficientStock means a decrement-if-positive found no stock left.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrStaleStatus means a compare-and-swap status update matched no row
	// because the order was no longer in the expected state.
	ErrStaleStatus = errors.New("order status changed concurrently")
)
