package engine

import "bourse/internal/common"

// Ledger records every executed trade for the life of the engine. Trades are
// appended in execution order and read back most recent first.
type Ledger struct {
	trades []common.Trade
}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Record(trade common.Trade) {
	l.trades = append(l.trades, trade)
}

func (l *Ledger) Len() int { return len(l.trades) }

// All returns every trade, most recent first.
func (l *Ledger) All() []common.Trade {
	out := make([]common.Trade, 0, len(l.trades))
	for i := len(l.trades) - 1; i >= 0; i-- {
		out = append(out, l.trades[i])
	}
	return out
}

// ForSymbol returns the trades of one symbol, most recent first.
func (l *Ledger) ForSymbol(symbol string) []common.Trade {
	var out []common.Trade
	for i := len(l.trades) - 1; i >= 0; i-- {
		if l.trades[i].Symbol == symbol {
			out = append(out, l.trades[i])
		}
	}
	return out
}
