package reporter

import (
	"fmt"
	"math"
	"time"

	"grid-trading-bot-go/internal/models"
	"grid-trading-bot-go/internal/order"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// annualizationFactor scales per-period return statistics to a yearly figure,
// assuming daily observations.
const annualizationFactor = 252

// AccountValuePoint is one observation of the account value series recorded
// during a trading session.
type AccountValuePoint struct {
	Timestamp    time.Time
	AccountValue decimal.Decimal
	Price        decimal.Decimal
}

// Summary holds the performance metrics of a finished session.
type Summary struct {
	Pair          string
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	ROIPercent    float64
	MaxDrawdown   float64
	MaxRunup      float64
	TimeInProfit  float64
	TimeInLoss    float64
	BuyAndHold    float64
	GridGains     decimal.Decimal
	FinalBalance  decimal.Decimal
	TotalFees     decimal.Decimal
	NumBuyTrades  int
	NumSellTrades int
	SharpeRatio   float64
	SortinoRatio  float64
}

// Analyzer computes and renders the performance of a trading session from the
// account value series and the order book.
type Analyzer struct {
	cfg    *models.Config
	book   *order.Book
	logger *zap.SugaredLogger
}

// NewAnalyzer creates a performance analyzer for one session.
func NewAnalyzer(cfg *models.Config, book *order.Book, logger *zap.SugaredLogger) *Analyzer {
	return &Analyzer{cfg: cfg, book: book, logger: logger}
}

// GeneratePerformanceSummary computes the session metrics. fiatBalance and
// cryptoBalance are the adjusted end-of-session balances, reserved funds
// included.
func (a *Analyzer) GeneratePerformanceSummary(
	series []AccountValuePoint,
	initialPrice decimal.Decimal,
	fiatBalance, cryptoBalance, finalPrice, totalFees decimal.Decimal,
) *Summary {
	if len(series) == 0 {
		a.logger.Warnf("No account value data available; performance summary will be empty.")
		return &Summary{Pair: a.pair(), TotalFees: totalFees}
	}

	finalBalance := fiatBalance.Add(cryptoBalance.Mul(finalPrice))
	initialBalance := series[0].AccountValue

	s := &Summary{
		Pair:         a.pair(),
		StartTime:    series[0].Timestamp,
		EndTime:      series[len(series)-1].Timestamp,
		FinalBalance: finalBalance,
		TotalFees:    totalFees,
	}
	s.Duration = s.EndTime.Sub(s.StartTime)

	if initialBalance.IsPositive() {
		s.ROIPercent = roundTo(finalBalance.Sub(initialBalance).Div(initialBalance).InexactFloat64()*100, 2)
	}
	if initialPrice.IsPositive() {
		s.BuyAndHold = finalPrice.Sub(initialPrice).Div(initialPrice).InexactFloat64() * 100
	}

	// Grid gains isolate what the strategy earned on top of pure price
	// appreciation of an equivalent initial position.
	if initialPrice.IsPositive() {
		initialCryptoEquivalent := initialBalance.Div(initialPrice)
		appreciationGains := finalPrice.Sub(initialPrice).Mul(initialCryptoEquivalent)
		s.GridGains = finalBalance.Sub(initialBalance).Sub(appreciationGains)
	}

	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.AccountValue.InexactFloat64()
	}

	s.MaxDrawdown = maxDrawdown(values) * 100
	s.MaxRunup = maxRunup(values) * 100
	s.TimeInProfit, s.TimeInLoss = timeInProfitLoss(values, initialBalance.InexactFloat64())
	s.SharpeRatio = sharpeRatio(values)
	s.SortinoRatio = sortinoRatio(values)

	for _, o := range a.book.CompletedOrders() {
		if o.Side == models.Buy {
			s.NumBuyTrades++
		} else {
			s.NumSellTrades++
		}
	}
	return s
}

// RenderSummary renders the metrics as a two-column table.
func (a *Analyzer) RenderSummary(s *Summary) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("Performance Summary")
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Pair", s.Pair},
		{"Start Date", s.StartTime.UTC().Format("2006-01-02 15:04:05")},
		{"End Date", s.EndTime.UTC().Format("2006-01-02 15:04:05")},
		{"Duration", s.Duration.String()},
		{"ROI", fmt.Sprintf("%.2f%%", s.ROIPercent)},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", s.MaxDrawdown)},
		{"Max Runup", fmt.Sprintf("%.2f%%", s.MaxRunup)},
		{"Time in Profit", fmt.Sprintf("%.2f%%", s.TimeInProfit)},
		{"Time in Loss", fmt.Sprintf("%.2f%%", s.TimeInLoss)},
		{"Buy and Hold Return", fmt.Sprintf("%.2f%%", s.BuyAndHold)},
		{"Grid Trading Gains", s.GridGains.StringFixed(2)},
		{"Final Balance", s.FinalBalance.StringFixed(2)},
		{"Total Fees", s.TotalFees.StringFixed(2)},
		{"Number of Buy Trades", s.NumBuyTrades},
		{"Number of Sell Trades", s.NumSellTrades},
		{"Sharpe Ratio", fmt.Sprintf("%.2f", s.SharpeRatio)},
		{"Sortino Ratio", fmt.Sprintf("%.2f", s.SortinoRatio)},
	})
	return t.Render()
}

// FormatOrders renders every tracked order as a table, newest last.
func (a *Analyzer) FormatOrders() string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("Orders")
	t.AppendHeader(table.Row{"Side", "Type", "Status", "Price", "Quantity", "Timestamp", "Grid Level"})

	for _, o := range a.book.AllOrders() {
		gridLevel := "-"
		if level := a.book.GridLevelForOrder(o); level != nil {
			gridLevel = level.Price.String()
		}
		t.AppendRow(table.Row{
			o.Side,
			o.Type,
			o.Status,
			o.Price.String(),
			o.Amount.String(),
			time.UnixMilli(o.Timestamp).UTC().Format("2006-01-02 15:04:05"),
			gridLevel,
		})
	}
	return t.Render()
}

func (a *Analyzer) pair() string {
	return a.cfg.BaseCurrency + "/" + a.cfg.QuoteCurrency
}

func maxDrawdown(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	peak := values[0]
	maxDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func maxRunup(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	trough := values[0]
	maxRU := 0.0
	for _, v := range values {
		if v < trough {
			trough = v
		}
		if trough > 0 {
			if ru := (v - trough) / trough; ru > maxRU {
				maxRU = ru
			}
		}
	}
	return maxRU
}

func timeInProfitLoss(values []float64, initial float64) (profit, loss float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var inProfit int
	for _, v := range values {
		if v > initial {
			inProfit++
		}
	}
	profit = float64(inProfit) / float64(len(values)) * 100
	loss = 100 - profit
	return profit, loss
}

func periodReturns(values []float64) []float64 {
	var returns []float64
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			returns = append(returns, values[i]/values[i-1]-1)
		}
	}
	return returns
}

func sharpeRatio(values []float64) float64 {
	returns := periodReturns(values)
	mean, std := meanStd(returns)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(annualizationFactor)
}

func sortinoRatio(values []float64) float64 {
	returns := periodReturns(values)
	mean, _ := meanStd(returns)

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	_, downsideStd := meanStd(downside)
	if downsideStd == 0 {
		return 0
	}
	return mean / downsideStd * math.Sqrt(annualizationFactor)
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	if len(values) < 2 {
		return mean, 0
	}
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values) - 1)
	return mean, math.Sqrt(variance)
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
