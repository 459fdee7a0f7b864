package common

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySymbol     = errors.New("symbol must not be empty")
	ErrSymbolTooLong   = fmt.Errorf("symbol must be at most %d characters", MaxSymbolLen)
	ErrInvalidPrice    = errors.New("price must be a positive number")
	ErrInvalidQuantity = errors.New("quantity must be a positive number")
	ErrInvalidSide     = errors.New("invalid order side")
)

// ValidateOrder checks an order request before it reaches the engine, which
// itself assumes valid input.
func ValidateOrder(side Side, symbol string, price, quantity uint64) error {
	if !side.Valid() {
		return ErrInvalidSide
	}
	if symbol == "" {
		return ErrEmptySymbol
	}
	if len(symbol) > MaxSymbolLen {
		return fmt.Errorf("%w: %q", ErrSymbolTooLong, symbol)
	}
	if price == 0 {
		return ErrInvalidPrice
	}
	if quantity == 0 {
		return ErrInvalidQuantity
	}
	return nil
}
