package common

import (
	"fmt"
	"strings"
)

// MaxSymbolLen is the longest ticker symbol accepted by the exchange.
const MaxSymbolLen = 9

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return fmt.Sprintf("side(%d)", int(s))
}

// Opposite returns the side an order of this side matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// ParseSide accepts "buy" or "sell" in any case.
func ParseSide(str string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return Buy, fmt.Errorf("%w: %q", ErrInvalidSide, str)
}
