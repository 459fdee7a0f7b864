package metrics

import (
	"net/http"

	"bourse/internal/common"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder turns engine events into prometheus series. It implements
// engine.Observer.
type Recorder struct {
	OrdersSubmitted *prometheus.CounterVec
	Trades          prometheus.Counter
	TradedQuantity  prometheus.Counter
	RestingOrders   *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	return &Recorder{
		OrdersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bourse_orders_submitted_total", Help: "Orders submitted by side"}, []string{"side"}),
		Trades:          prometheus.NewCounter(prometheus.CounterOpts{Name: "bourse_trades_total", Help: "Trades executed"}),
		TradedQuantity:  prometheus.NewCounter(prometheus.CounterOpts{Name: "bourse_traded_quantity_total", Help: "Quantity executed across all trades"}),
		RestingOrders:   prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "bourse_resting_orders", Help: "Orders resting in the book by side"}, []string{"side"}),
	}
}

// Init registers the recorder with a fresh registry along with the Go runtime
// and process collectors.
func Init(r *Recorder) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		r.OrdersSubmitted,
		r.Trades,
		r.TradedQuantity,
		r.RestingOrders,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (r *Recorder) OrderSubmitted(side common.Side, _ string) {
	r.OrdersSubmitted.WithLabelValues(side.String()).Inc()
}

func (r *Recorder) TradeExecuted(trade common.Trade) {
	r.Trades.Inc()
	r.TradedQuantity.Add(float64(trade.Quantity))
}

func (r *Recorder) OrderRested(order common.Order) {
	r.RestingOrders.WithLabelValues(order.Side.String()).Inc()
}

func (r *Recorder) OrderFilled(order common.Order) {
	r.RestingOrders.WithLabelValues(order.Side.String()).Dec()
}
