// Package identity owns the persisted pointer to the current remote cart.
// No other component reads or writes the identifier directly.
//
// The store is a single shared key with last-write-wins semantics and no
// locking: concurrent writers only ever set the same logical value (the
// active cart id) or clear it.
package identity

import "context"

// Store persists the cart identifier. Absence means "no cart yet".
type Store interface {
	// Get returns the current identifier and whether one is present.
	Get(ctx context.Context) (string, bool, error)
	// Set persists the identifier.
	Set(ctx context.Context, cartID string) error
	// Clear removes the identifier. Used when the backend signals the
	// identifier no longer resolves to a cart.
	Clear(ctx context.Context) error
}
