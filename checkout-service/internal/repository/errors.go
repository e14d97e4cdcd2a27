package repository

import "errors"

var (
	ErrDuplicateSession = errors.New("order already recorded for checkout session")
	ErrOrderNotFound    = errors.New("order not found")
)
