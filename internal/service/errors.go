package service

import (
	"errors"
	"fmt"

	"storefront/internal/store"
)

var (
	// ErrNotFound is the store's not-found error, re-exported for callers of this package
	ErrNotFound = store.ErrNotFound

	ErrInvalidInput          = errors.New("invalid input")
	ErrValidation            = errors.New("invalid data")
	ErrEmptyBasket           = errors.New("basket is empty")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrBackfillRunning       = errors.New("backfill already running")
)

// InsufficientInventoryError reports a product that cannot cover a requested quantity
type InsufficientInventoryError struct {
	ProductID int64
	Title     string
	Available int
	Requested int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("Only %d units of '%s' available in stock.", e.Available, e.Title)
}

// Is lets errors.Is match ErrInsufficientInventory
func (e *InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}
