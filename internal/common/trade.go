package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trade is one execution between an incoming order and a resting order.
type Trade struct {
	ID        uuid.UUID
	Symbol    string
	Side      Side // Side of the incoming (aggressing) order
	Price     uint64
	Quantity  uint64
	Timestamp time.Time
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Stock: %s | Price: %d | Quantity: %d | Time: %s",
		t.Symbol,
		t.Price,
		t.Quantity,
		t.Timestamp.Format(time.RFC3339),
	)
}

// PriceEntry is the last quoted or traded price of a symbol.
type PriceEntry struct {
	Symbol string
	Price  uint64
}

func (p PriceEntry) String() string {
	return fmt.Sprintf("Stock: %s | Price: %d", p.Symbol, p.Price)
}
