package engine

import (
	"bourse/internal/common"

	"github.com/google/uuid"
)

// Engine is the matching engine. It owns both sides of the order book, the
// price index and the trade ledger.
//
// Engine is not safe for concurrent use. Every call runs to completion before
// the next; concurrent front ends must serialise access themselves.
type Engine struct {
	books  [2]*OrderBook
	prices *PriceIndex
	ledger *Ledger

	clock    Clock
	observer Observer
	seq      uint64
}

func New(opts ...Option) *Engine {
	engine := &Engine{
		books: [2]*OrderBook{
			common.Buy:  NewOrderBook(common.Buy),
			common.Sell: NewOrderBook(common.Sell),
		},
		prices:   NewPriceIndex(),
		ledger:   NewLedger(),
		clock:    RealClock{},
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Result is the outcome of a single Submit.
type Result struct {
	Trades   []common.Trade // Executions in the order they happened
	Residual common.Order   // The order rested with the unfilled quantity, if Rested
	Rested   bool
}

// Filled returns the quantity executed by the submission.
func (r Result) Filled() uint64 {
	var filled uint64
	for _, trade := range r.Trades {
		filled += trade.Quantity
	}
	return filled
}

// Book returns one side of the order book.
func (engine *Engine) Book(side common.Side) *OrderBook {
	return engine.books[side]
}

// Submit matches a limit order against the opposing bucket of its symbol and
// rests whatever is left on its own side.
//
// The opposing bucket is walked from its head. A resting order of the same
// symbol that crosses is traded against: an incoming buy trades at the resting
// price, an incoming sell at its own price. Fully filled resting orders are
// removed and the walk goes on; a resting order left partially filled ends the
// walk even if the incoming order still has quantity. Both sides keep their
// buckets in descending price, so an incoming buy meets the highest crossing
// ask first.
//
// The symbol's price index entry becomes the last trade price, or the
// submitted price when nothing traded. Inputs are assumed valid, see
// common.ValidateOrder.
func (engine *Engine) Submit(side common.Side, symbol string, price, quantity uint64) Result {
	engine.observer.OrderSubmitted(side, symbol)

	var (
		result    Result
		remaining = quantity
		filled    []*common.Order
		opposing  = engine.books[side.Opposite()]
	)

	opposing.bucketFor(symbol).Scan(func(resting *common.Order) bool {
		if remaining == 0 {
			return false
		}
		if resting.Symbol != symbol || !crosses(side, price, resting.LimitPrice) {
			return true
		}

		matchQty := min(remaining, resting.Quantity)
		tradePrice := price
		if side == common.Buy {
			tradePrice = resting.LimitPrice
		}

		trade := common.Trade{
			ID:        uuid.New(),
			Symbol:    symbol,
			Side:      side,
			Price:     tradePrice,
			Quantity:  matchQty,
			Timestamp: engine.clock.Now(),
		}
		engine.ledger.Record(trade)
		result.Trades = append(result.Trades, trade)
		engine.observer.TradeExecuted(trade)

		resting.Quantity -= matchQty
		remaining -= matchQty

		if resting.Quantity == 0 {
			filled = append(filled, resting)
			return true
		}
		// Partially filled resting order, stop here.
		return false
	})

	// Removal is deferred since the bucket cannot change during a scan.
	for _, order := range filled {
		opposing.remove(order)
		engine.observer.OrderFilled(*order)
	}

	if remaining > 0 {
		engine.seq++
		order := &common.Order{
			ID:            uuid.New(),
			Symbol:        symbol,
			Side:          side,
			LimitPrice:    price,
			Quantity:      remaining,
			TotalQuantity: remaining,
			Seq:           engine.seq,
			Timestamp:     engine.clock.Now(),
		}
		engine.books[side].Insert(order)
		result.Residual = *order
		result.Rested = true
		engine.observer.OrderRested(*order)
	}

	lastPrice := price
	if n := len(result.Trades); n > 0 {
		lastPrice = result.Trades[n-1].Price
	}
	engine.prices.Upsert(symbol, lastPrice)

	return result
}

func crosses(side common.Side, price, restingPrice uint64) bool {
	if side == common.Buy {
		return price >= restingPrice
	}
	return price <= restingPrice
}

// PendingOrders returns the resting orders of one side, bucket by bucket.
func (engine *Engine) PendingOrders(side common.Side) []common.Order {
	return engine.books[side].Orders()
}

// PriceSnapshot returns the last price of every symbol in ascending symbol order.
func (engine *Engine) PriceSnapshot() []common.PriceEntry {
	return engine.prices.InOrder()
}

// TradeHistory returns every executed trade, most recent first.
func (engine *Engine) TradeHistory() []common.Trade {
	return engine.ledger.All()
}

// TradesFor returns the trades of one symbol, most recent first.
func (engine *Engine) TradesFor(symbol string) []common.Trade {
	return engine.ledger.ForSymbol(symbol)
}

// Price returns the last price recorded for symbol.
func (engine *Engine) Price(symbol string) (uint64, bool) {
	return engine.prices.Lookup(symbol)
}
