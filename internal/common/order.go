package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Order struct {
	ID            uuid.UUID // Order tracked uuid
	Symbol        string    // Ticker symbol, at most MaxSymbolLen characters
	Side          Side      // Order side
	LimitPrice    uint64    // Limiting price
	Quantity      uint64    // Remaining quantity
	TotalQuantity uint64    // Quantity the order rested with
	Seq           uint64    // Arrival sequence, breaks price ties
	Timestamp     time.Time // Time the order entered the book
}

func (order Order) String() string {
	return fmt.Sprintf(
		"Stock: %s | Price: %d | Quantity: %d | Time: %s",
		order.Symbol,
		order.LimitPrice,
		order.Quantity,
		order.Timestamp.Format(time.RFC3339),
	)
}
