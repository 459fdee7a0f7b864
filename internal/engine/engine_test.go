package engine

import (
	"fmt"
	"testing"
	"time"

	"bourse/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// --- Setup & Helpers --------------------------------------------------------

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestEngine(opts ...Option) *Engine {
	clock := &stepClock{now: time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)}
	return New(append([]Option{WithClock(clock)}, opts...)...)
}

type level struct {
	symbol string
	price  uint64
	qty    uint64
}

func bucketLevels(eng *Engine, side common.Side, symbol string) []level {
	var out []level
	for _, o := range eng.Book(side).Bucket(Hash(symbol)) {
		out = append(out, level{o.Symbol, o.LimitPrice, o.Quantity})
	}
	return out
}

func tradeTriples(trades []common.Trade) []level {
	var out []level
	for _, trade := range trades {
		out = append(out, level{trade.Symbol, trade.Price, trade.Quantity})
	}
	return out
}

type recordingObserver struct {
	events []string
}

func (r *recordingObserver) OrderSubmitted(side common.Side, symbol string) {
	r.events = append(r.events, fmt.Sprintf("submit %s %s", side, symbol))
}

func (r *recordingObserver) TradeExecuted(trade common.Trade) {
	r.events = append(r.events, fmt.Sprintf("trade %s %d@%d", trade.Symbol, trade.Quantity, trade.Price))
}

func (r *recordingObserver) OrderRested(order common.Order) {
	r.events = append(r.events, fmt.Sprintf("rest %s %s %d@%d", order.Side, order.Symbol, order.Quantity, order.LimitPrice))
}

func (r *recordingObserver) OrderFilled(order common.Order) {
	r.events = append(r.events, fmt.Sprintf("filled %s %s @%d", order.Side, order.Symbol, order.LimitPrice))
}

// --- Scenarios --------------------------------------------------------------

func TestSubmit_ScenarioA_BuyCrossesRestingSell(t *testing.T) {
	eng := newTestEngine()

	res := eng.Submit(common.Sell, "AAPL", 100, 50)
	assert.Empty(t, res.Trades)
	assert.True(t, res.Rested)

	res = eng.Submit(common.Buy, "AAPL", 105, 30)
	assert.Equal(t, []level{{"AAPL", 100, 30}}, tradeTriples(res.Trades))
	assert.False(t, res.Rested)
	assert.Equal(t, common.Buy, res.Trades[0].Side)

	assert.Equal(t, []level{{"AAPL", 100, 20}}, bucketLevels(eng, common.Sell, "AAPL"))
	assert.Empty(t, eng.PendingOrders(common.Buy))

	price, ok := eng.Price("AAPL")
	require.True(t, ok)
	assert.Equal(t, uint64(100), price)
}

func TestSubmit_ScenarioB_NoCrossUsesSubmittedPrice(t *testing.T) {
	eng := newTestEngine()
	eng.Submit(common.Sell, "AAPL", 100, 50)
	eng.Submit(common.Buy, "AAPL", 105, 30)

	res := eng.Submit(common.Sell, "AAPL", 90, 10)
	assert.Empty(t, res.Trades)
	assert.True(t, res.Rested)
	assert.Equal(t, uint64(10), res.Residual.Quantity)

	assert.Equal(t, []level{{"AAPL", 100, 20}, {"AAPL", 90, 10}}, bucketLevels(eng, common.Sell, "AAPL"))
	price, _ := eng.Price("AAPL")
	assert.Equal(t, uint64(90), price)
}

func TestSubmit_ScenarioC_BuyWithNoLiquidityRests(t *testing.T) {
	eng := newTestEngine()

	res := eng.Submit(common.Buy, "MSFT", 50, 5)
	assert.Empty(t, res.Trades)
	require.True(t, res.Rested)
	assert.Equal(t, "MSFT", res.Residual.Symbol)
	assert.Equal(t, common.Buy, res.Residual.Side)

	assert.Equal(t, []level{{"MSFT", 50, 5}}, bucketLevels(eng, common.Buy, "MSFT"))
	assert.Equal(t, []common.PriceEntry{{Symbol: "MSFT", Price: 50}}, eng.PriceSnapshot())
}

func TestSubmit_ScenarioD_TradeHistory(t *testing.T) {
	eng := newTestEngine()
	eng.Submit(common.Sell, "AAPL", 100, 50)
	eng.Submit(common.Buy, "AAPL", 105, 30)

	history := eng.TradeHistory()
	assert.Equal(t, []level{{"AAPL", 100, 30}}, tradeTriples(history))
}

// --- Matching rules ---------------------------------------------------------

func TestSubmit_SellTradesAtIncomingPrice(t *testing.T) {
	eng := newTestEngine()
	eng.Submit(common.Buy, "AAPL", 110, 10)

	res := eng.Submit(common.Sell, "AAPL", 100, 4)
	assert.Equal(t, []level{{"AAPL", 100, 4}}, tradeTriples(res.Trades))
	assert.Equal(t, []level{{"AAPL", 110, 6}}, bucketLevels(eng, common.Buy, "AAPL"))

	price, _ := eng.Price("AAPL")
	assert.Equal(t, uint64(100), price)
}

func TestSubmit_BuyMeetsHighestCrossingAskFirst(t *testing.T) {
	eng := newTestEngine()
	eng.Submit(common.Sell, "AAPL", 90, 5)
	eng.Submit(common.Sell, "AAPL", 100, 5)

	res := eng.Submit(common.Buy, "AAPL", 120, 7)
	assert.Equal(t, []level{{"AAPL", 100, 5}, {"AAPL", 90, 2}}, tradeTriples(res.Trades))
	assert.Equal(t, []level{{"AAPL", 90, 3}}, bucketLevels(eng, common.Sell, "AAPL"))

	price, _ := eng.Price("AAPL")
	assert.Equal(t, uint64(90), price, "last trade price wins")
}

func TestSubmit_BuySkipsAsksAboveItsLimit(t *testing.T) {
	eng := newTestEngine()
	eng.Submit(common.Sell, "AAPL", 120, 5)
	eng.Submit(common.Sell, "AAPL", 95, 5)

	res := eng.Submit(common.Buy, "AAPL", 100, 5)
	assert.Equal(t, []level{{"AAPL", 95, 5}}, tradeTriples(res.Trades))
	assert.Equal(t, []level{{"AAPL", 120, 5}}, bucketLevels(eng, common.Sell, "AAPL"))
}

func TestSubmit_SellSweepsBids(t *testing.T) {
	eng := newTestEngine()
	eng.Submit(common.Buy, "AAPL", 110, 5)
	eng.Submit(common.Buy, "AAPL", 105, 5)
	eng.Submit(common.Buy, "AAPL", 100, 5)
	eng.Submit(common.Buy, "AAPL", 90, 5)

	res := eng.Submit(common.Sell, "AAPL", 100, 12)
	assert.Equal(t,
		[]level{{"AAPL", 100, 5}, {"AAPL", 100, 5}, {"AAPL", 100, 2}},
		tradeTriples(res.Trades),
	)
	assert.False(t, res.Rested)
	assert.Equal(t, []level{{"AAPL", 100, 3}, {"AAPL", 90, 5}}, bucketLevels(eng, common.Buy, "AAPL"))
}

func TestSubmit_EqualPricesFillOldestFirst(t *testing.T) {
	eng := newTestEngine()
	first := eng.Submit(common.Sell, "AAPL", 100, 5).Residual
	second := eng.Submit(common.Sell, "AAPL", 100, 5).Residual
	require.Less(t, first.Seq, second.Seq)

	eng.Submit(common.Buy, "AAPL", 100, 7)

	orders := eng.PendingOrders(common.Sell)
	require.Len(t, orders, 1)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, uint64(3), orders[0].Quantity)
}

func TestSubmit_ResidualRestsOnSameSide(t *testing.T) {
	eng := newTestEngine()
	eng.Submit(common.Sell, "AAPL", 100, 10)

	res := eng.Submit(common.Buy, "AAPL", 100, 25)
	assert.Equal(t, []level{{"AAPL", 100, 10}}, tradeTriples(res.Trades))
	require.True(t, res.Rested)
	assert.Equal(t, uint64(15), res.Residual.Quantity)
	assert.Equal(t, uint64(10), res.Filled())

	assert.Empty(t, eng.PendingOrders(common.Sell))
	assert.Equal(t, []level{{"AAPL", 100, 15}}, bucketLevels(eng, common.Buy, "AAPL"))
}

func TestSubmit_SharedBucketFiltersBySymbol(t *testing.T) {
	eng := newTestEngine()
	require.Equal(t, Hash("AB"), Hash("BA"))

	eng.Submit(common.Sell, "BA", 50, 5)
	eng.Submit(common.Sell, "AB", 40, 5)
	assert.Equal(t, []level{{"BA", 50, 5}, {"AB", 40, 5}}, bucketLevels(eng, common.Sell, "AB"))

	res := eng.Submit(common.Buy, "AB", 60, 5)
	assert.Equal(t, []level{{"AB", 40, 5}}, tradeTriples(res.Trades))
	assert.Equal(t, []level{{"BA", 50, 5}}, bucketLevels(eng, common.Sell, "BA"))

	price, _ := eng.Price("BA")
	assert.Equal(t, uint64(50), price)
}

func TestQueries_AreIdempotent(t *testing.T) {
	eng := newTestEngine()
	assert.Empty(t, eng.TradeHistory())
	assert.Empty(t, eng.PriceSnapshot())
	assert.Empty(t, eng.PendingOrders(common.Buy))

	eng.Submit(common.Sell, "AAPL", 100, 50)
	eng.Submit(common.Buy, "AAPL", 105, 30)
	eng.Submit(common.Buy, "MSFT", 50, 5)

	assert.Equal(t, eng.TradeHistory(), eng.TradeHistory())
	assert.Equal(t, eng.PriceSnapshot(), eng.PriceSnapshot())
	assert.Equal(t, eng.PendingOrders(common.Buy), eng.PendingOrders(common.Buy))
	assert.Len(t, eng.TradesFor("AAPL"), 1)
	assert.Empty(t, eng.TradesFor("MSFT"))
}

func TestSubmit_NotifiesObserver(t *testing.T) {
	obs := &recordingObserver{}
	eng := newTestEngine(WithObserver(obs))

	eng.Submit(common.Sell, "AAPL", 100, 5)
	eng.Submit(common.Buy, "AAPL", 100, 8)

	assert.Equal(t, []string{
		"submit sell AAPL",
		"rest sell AAPL 5@100",
		"submit buy AAPL",
		"trade AAPL 5@100",
		"filled sell AAPL @100",
		"rest buy AAPL 3@100",
	}, obs.events)
}

// --- Properties -------------------------------------------------------------

var propertySymbols = []string{"AAPL", "MSFT", "AB", "BA", "IBM", "GOOG"}

func bookQuantity(eng *Engine, side common.Side, symbol string) uint64 {
	var total uint64
	for _, o := range eng.PendingOrders(side) {
		if o.Symbol == symbol {
			total += o.Quantity
		}
	}
	return total
}

func TestProperty_SubmitConservesQuantity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		eng := newTestEngine()
		n := rapid.IntRange(1, 60).Draw(t, "n")

		for i := range n {
			side := rapid.SampledFrom([]common.Side{common.Buy, common.Sell}).Draw(t, fmt.Sprintf("side%d", i))
			symbol := rapid.SampledFrom(propertySymbols).Draw(t, fmt.Sprintf("symbol%d", i))
			price := rapid.Uint64Range(90, 110).Draw(t, fmt.Sprintf("price%d", i))
			qty := rapid.Uint64Range(1, 50).Draw(t, fmt.Sprintf("qty%d", i))

			before := bookQuantity(eng, side.Opposite(), symbol)
			res := eng.Submit(side, symbol, price, qty)
			after := bookQuantity(eng, side.Opposite(), symbol)

			var residual uint64
			if res.Rested {
				residual = res.Residual.Quantity
			}
			if res.Filled()+residual != qty {
				t.Fatalf("filled %d + residual %d != submitted %d", res.Filled(), residual, qty)
			}
			if before-after != res.Filled() {
				t.Fatalf("opposing book dropped %d, filled %d", before-after, res.Filled())
			}
			for _, trade := range res.Trades {
				if trade.Symbol != symbol || trade.Quantity == 0 {
					t.Fatalf("bad trade %+v", trade)
				}
			}
		}
	})
}

func TestProperty_BucketsStaySorted(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		eng := newTestEngine()
		n := rapid.IntRange(1, 80).Draw(t, "n")

		for i := range n {
			side := rapid.SampledFrom([]common.Side{common.Buy, common.Sell}).Draw(t, fmt.Sprintf("side%d", i))
			symbol := rapid.SampledFrom(propertySymbols).Draw(t, fmt.Sprintf("symbol%d", i))
			price := rapid.Uint64Range(1, 20).Draw(t, fmt.Sprintf("price%d", i))
			qty := rapid.Uint64Range(1, 20).Draw(t, fmt.Sprintf("qty%d", i))
			eng.Submit(side, symbol, price, qty)
		}

		for _, side := range []common.Side{common.Buy, common.Sell} {
			for b := range BucketCount {
				orders := eng.Book(side).Bucket(b)
				for i, o := range orders {
					if o.Quantity == 0 {
						t.Fatalf("resting order with zero quantity: %+v", o)
					}
					if Hash(o.Symbol) != b {
						t.Fatalf("%s rests in bucket %d", o.Symbol, b)
					}
					if i == 0 {
						continue
					}
					prev := orders[i-1]
					if prev.LimitPrice < o.LimitPrice {
						t.Fatalf("bucket %d not descending: %d before %d", b, prev.LimitPrice, o.LimitPrice)
					}
					if prev.LimitPrice == o.LimitPrice && prev.Seq > o.Seq {
						t.Fatalf("bucket %d breaks FIFO at price %d", b, o.LimitPrice)
					}
				}
			}
		}
	})
}
