package reporter

import (
	"testing"
	"time"

	"grid-trading-bot-go/internal/models"
	"grid-trading-bot-go/internal/order"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testAnalyzer(book *order.Book) *Analyzer {
	cfg := &models.Config{BaseCurrency: "ETH", QuoteCurrency: "USDT"}
	return NewAnalyzer(cfg, book, zap.NewNop().Sugar())
}

func valueSeries(values ...string) []AccountValuePoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make([]AccountValuePoint, 0, len(values))
	for i, v := range values {
		series = append(series, AccountValuePoint{
			Timestamp:    start.Add(time.Duration(i) * time.Hour),
			AccountValue: d(v),
			Price:        d("100"),
		})
	}
	return series
}

func TestGeneratePerformanceSummaryEmptySeries(t *testing.T) {
	a := testAnalyzer(order.NewBook())
	s := a.GeneratePerformanceSummary(nil, d("100"), d("0"), d("0"), d("100"), d("1.5"))
	assert.Equal(t, "ETH/USDT", s.Pair)
	assert.True(t, s.TotalFees.Equal(d("1.5")))
	assert.Zero(t, s.ROIPercent)
}

func TestGeneratePerformanceSummaryROI(t *testing.T) {
	a := testAnalyzer(order.NewBook())
	series := valueSeries("10000", "10500", "11000")

	// Final balance 10000 fiat + 10 crypto at 110.
	s := a.GeneratePerformanceSummary(series, d("100"), d("10000"), d("10"), d("110"), d("3"))

	assert.InDelta(t, 11.0, s.ROIPercent, 1e-9)
	assert.InDelta(t, 10.0, s.BuyAndHold, 1e-9)
	assert.Equal(t, 2*time.Hour, s.Duration)
	assert.True(t, s.FinalBalance.Equal(d("11100")))
}

// TestGridGainsIsolateStrategyEdge verifies that price appreciation of the
// initial position is subtracted from the raw profit.
func TestGridGainsIsolateStrategyEdge(t *testing.T) {
	a := testAnalyzer(order.NewBook())
	series := valueSeries("10000", "11000")

	// Initial balance 10000 at price 100 is 100 crypto-equivalent; a 10 point
	// rise explains 1000 of appreciation. Final balance 11500 leaves 500 of
	// grid gains.
	s := a.GeneratePerformanceSummary(series, d("100"), d("11500"), d("0"), d("110"), d("0"))
	assert.True(t, s.GridGains.Equal(d("500")), "got %s", s.GridGains)
}

func TestMaxDrawdownAndRunup(t *testing.T) {
	// Peak 120 to trough 90 is a 25% drawdown; trough 90 to 130 a 44.4% runup.
	values := []float64{100, 120, 90, 130}
	assert.InDelta(t, 0.25, maxDrawdown(values), 1e-9)
	assert.InDelta(t, 4.0/9.0, maxRunup(values), 1e-9)

	assert.Zero(t, maxDrawdown([]float64{100}))
	assert.Zero(t, maxRunup(nil))
}

func TestTimeInProfitLoss(t *testing.T) {
	profit, loss := timeInProfitLoss([]float64{100, 110, 90, 120}, 100)
	assert.InDelta(t, 50.0, profit, 1e-9)
	assert.InDelta(t, 50.0, loss, 1e-9)
}

func TestSharpeAndSortino(t *testing.T) {
	// Monotonically rising series: positive Sharpe, no downside periods so
	// Sortino degenerates to zero.
	rising := []float64{100, 101, 103, 104, 107}
	assert.Greater(t, sharpeRatio(rising), 0.0)
	assert.Zero(t, sortinoRatio(rising))

	mixed := []float64{100, 105, 95, 108, 102}
	assert.NotZero(t, sortinoRatio(mixed))

	assert.Zero(t, sharpeRatio([]float64{100, 100, 100}))
}

func TestTradeCountsFromBook(t *testing.T) {
	book := order.NewBook()
	buy := &models.Order{ID: "1", Side: models.Buy, Status: models.OrderStatusClosed, Filled: d("1")}
	sell := &models.Order{ID: "2", Side: models.Sell, Status: models.OrderStatusClosed, Filled: d("1")}
	open := &models.Order{ID: "3", Side: models.Buy, Status: models.OrderStatusOpen}
	book.AddOrder(buy, nil)
	book.AddOrder(sell, nil)
	book.AddOrder(open, nil)

	a := testAnalyzer(book)
	s := a.GeneratePerformanceSummary(valueSeries("100", "110"), d("100"), d("110"), d("0"), d("110"), d("0"))
	assert.Equal(t, 1, s.NumBuyTrades)
	assert.Equal(t, 1, s.NumSellTrades)
}

func TestRenderSummaryAndOrders(t *testing.T) {
	book := order.NewBook()
	book.AddOrder(&models.Order{
		ID: "1", Side: models.Buy, Type: models.Limit, Status: models.OrderStatusClosed,
		Price: d("100"), Amount: d("1"), Filled: d("1"), Timestamp: 1700000000000,
	}, nil)

	a := testAnalyzer(book)
	s := a.GeneratePerformanceSummary(valueSeries("100", "110"), d("100"), d("110"), d("0"), d("110"), d("0.1"))

	rendered := a.RenderSummary(s)
	require.NotEmpty(t, rendered)
	assert.Contains(t, rendered, "ETH/USDT")
	assert.Contains(t, rendered, "ROI")

	orders := a.FormatOrders()
	assert.Contains(t, orders, "BUY")
	assert.Contains(t, orders, "100")
}
