package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"bourse/internal/common"
	"bourse/internal/engine"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_TracksEngine(t *testing.T) {
	rec := NewRecorder()
	eng := engine.New(engine.WithObserver(rec))

	eng.Submit(common.Sell, "AAPL", 100, 50)
	eng.Submit(common.Sell, "AAPL", 101, 5)
	eng.Submit(common.Buy, "AAPL", 105, 52)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.OrdersSubmitted.WithLabelValues("sell")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.OrdersSubmitted.WithLabelValues("buy")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.Trades))
	assert.Equal(t, 52.0, testutil.ToFloat64(rec.TradedQuantity))
	// 101 filled, 100 partially filled and still resting.
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.RestingOrders.WithLabelValues("sell")))
	assert.Equal(t, 0.0, testutil.ToFloat64(rec.RestingOrders.WithLabelValues("buy")))
}

func TestHandler_ServesRegistry(t *testing.T) {
	rec := NewRecorder()
	reg := Init(rec)
	rec.Trades.Inc()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "bourse_trades_total 1"))
}
