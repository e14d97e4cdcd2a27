package service

import (
	"errors"
	"strings"
)

var ErrEmptyCart = errors.New("cart is empty")

// StaleItemError reports items persisted by an older cart version. The
// shopper has to remove and re-add them before checking out.
type StaleItemError struct {
	Names []string
}

func (e *StaleItemError) Error() string {
	return "an item in your cart comes from an older version of the store, remove it and add it again: " +
		strings.Join(e.Names, ", ")
}
