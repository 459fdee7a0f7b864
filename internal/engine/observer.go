package engine

import "bourse/internal/common"

// Observer is notified of engine activity. Calls are made synchronously from
// Submit, in the order the events happen.
type Observer interface {
	OrderSubmitted(side common.Side, symbol string)
	TradeExecuted(trade common.Trade)
	OrderRested(order common.Order)
	OrderFilled(order common.Order)
}

type nopObserver struct{}

func (nopObserver) OrderSubmitted(common.Side, string) {}
func (nopObserver) TradeExecuted(common.Trade)         {}
func (nopObserver) OrderRested(common.Order)           {}
func (nopObserver) OrderFilled(common.Order)           {}

type Option func(*Engine)

func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithObserver(observer Observer) Option {
	return func(e *Engine) { e.observer = observer }
}
