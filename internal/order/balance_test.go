package order

import (
	"context"
	"testing"

	"grid-trading-bot-go/internal/events"
	"grid-trading-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestTracker(t *testing.T, mode models.TradingMode, fiat, crypto string) (*BalanceTracker, *events.Bus) {
	t.Helper()
	logger := zap.NewNop().Sugar()
	bus := events.NewBus(logger)
	tracker := NewBalanceTracker(bus, NewFeeCalculator(d("0.001")), mode, "ETH", "USDT", logger)
	require.NoError(t, tracker.SetupBalances(context.Background(), d(fiat), d(crypto), nil))
	return tracker, bus
}

func TestSetupBalancesFromConfig(t *testing.T) {
	tracker, _ := newTestTracker(t, models.ModeBacktest, "10000", "2")
	assert.True(t, tracker.Balance().Equal(d("10000")))
	assert.True(t, tracker.CryptoBalance().Equal(d("2")))
	assert.True(t, tracker.ReservedFiat().IsZero())
	assert.True(t, tracker.ReservedCrypto().IsZero())
}

type stubBalanceSource struct {
	balances map[string]decimal.Decimal
	err      error
}

func (s *stubBalanceSource) GetBalances(context.Context) (map[string]decimal.Decimal, error) {
	return s.balances, s.err
}

func TestSetupBalancesLiveFetchesFromExchange(t *testing.T) {
	logger := zap.NewNop().Sugar()
	bus := events.NewBus(logger)
	tracker := NewBalanceTracker(bus, NewFeeCalculator(d("0.001")), models.ModeLive, "ETH", "USDT", logger)

	source := &stubBalanceSource{balances: map[string]decimal.Decimal{
		"USDT": d("5000"),
		"ETH":  d("1.5"),
	}}
	require.NoError(t, tracker.SetupBalances(context.Background(), d("999"), d("999"), source))

	assert.True(t, tracker.Balance().Equal(d("5000")))
	assert.True(t, tracker.CryptoBalance().Equal(d("1.5")))
}

func TestReserveFundsForBuy(t *testing.T) {
	tracker, _ := newTestTracker(t, models.ModeBacktest, "1000", "0")

	require.NoError(t, tracker.ReserveFundsForBuy(d("400")))
	assert.True(t, tracker.Balance().Equal(d("600")))
	assert.True(t, tracker.ReservedFiat().Equal(d("400")))
}

// TestReserveRejectionLeavesStateUnchanged verifies that a failed reservation
// mutates nothing.
func TestReserveRejectionLeavesStateUnchanged(t *testing.T) {
	tracker, _ := newTestTracker(t, models.ModeBacktest, "100", "1")

	err := tracker.ReserveFundsForBuy(d("100.01"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, tracker.Balance().Equal(d("100")))
	assert.True(t, tracker.ReservedFiat().IsZero())

	err = tracker.ReserveFundsForSell(d("1.5"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientCryptoBalance)
	assert.True(t, tracker.CryptoBalance().Equal(d("1")))
	assert.True(t, tracker.ReservedCrypto().IsZero())
}

// TestBuyFillConsumesReservation verifies the fill accounting: a buy fill
// consumes cost plus fee from the reservation and credits exactly the filled
// quantity of crypto.
func TestBuyFillConsumesReservation(t *testing.T) {
	tracker, bus := newTestTracker(t, models.ModeBacktest, "1000", "0")
	require.NoError(t, tracker.ReserveFundsForBuy(d("500")))

	order := &models.Order{
		Side:   models.Buy,
		Status: models.OrderStatusClosed,
		Price:  d("100"),
		Amount: d("4"),
		Filled: d("4"),
	}
	bus.Publish(events.OrderFilled, order)

	// Cost 400 + fee 0.4 consumed from the 500 reservation; the remaining
	// 99.6 stays reserved.
	assert.True(t, tracker.ReservedFiat().Equal(d("99.6")), "got %s", tracker.ReservedFiat())
	assert.True(t, tracker.Balance().Equal(d("500")))
	assert.True(t, tracker.CryptoBalance().Equal(d("4")))
	assert.True(t, tracker.TotalFees().Equal(d("0.4")))
}

// TestBuyFillOverflowDrawsFromBalance verifies the clamp: when the fill costs
// more than was reserved, the overflow comes out of the available balance and
// the reservation is clamped to zero.
func TestBuyFillOverflowDrawsFromBalance(t *testing.T) {
	tracker, bus := newTestTracker(t, models.ModeBacktest, "1000", "0")
	require.NoError(t, tracker.ReserveFundsForBuy(d("300")))

	order := &models.Order{
		Side:   models.Buy,
		Status: models.OrderStatusClosed,
		Price:  d("100"),
		Amount: d("4"),
		Filled: d("4"),
	}
	bus.Publish(events.OrderFilled, order)

	// Cost 400.4 against a 300 reservation: overflow 100.4 drawn from balance.
	assert.True(t, tracker.ReservedFiat().IsZero())
	assert.True(t, tracker.Balance().Equal(d("599.6")), "got %s", tracker.Balance())
	assert.True(t, tracker.CryptoBalance().Equal(d("4")))
}

// TestSellFillMirrorsBuyPath verifies the crypto-side overflow clamp and the
// fee-reduced proceeds.
func TestSellFillMirrorsBuyPath(t *testing.T) {
	tracker, bus := newTestTracker(t, models.ModeBacktest, "0", "10")
	require.NoError(t, tracker.ReserveFundsForSell(d("3")))

	order := &models.Order{
		Side:   models.Sell,
		Status: models.OrderStatusClosed,
		Price:  d("100"),
		Amount: d("4"),
		Filled: d("4"),
	}
	bus.Publish(events.OrderFilled, order)

	// 4 sold against a 3 reservation: overflow 1 returned from cryptoBalance.
	assert.True(t, tracker.ReservedCrypto().IsZero())
	assert.True(t, tracker.CryptoBalance().Equal(d("6")), "got %s", tracker.CryptoBalance())
	// Proceeds 400 - fee 0.4.
	assert.True(t, tracker.Balance().Equal(d("399.6")), "got %s", tracker.Balance())
	assert.True(t, tracker.TotalFees().Equal(d("0.4")))
}

// TestAdjustedBalancesRoundTrip verifies the reserve/release identity: moving
// funds into a reservation never changes the adjusted totals.
func TestAdjustedBalancesRoundTrip(t *testing.T) {
	tracker, _ := newTestTracker(t, models.ModeBacktest, "1000", "5")

	require.NoError(t, tracker.ReserveFundsForBuy(d("250")))
	require.NoError(t, tracker.ReserveFundsForSell(d("2")))

	assert.True(t, tracker.GetAdjustedFiatBalance().Equal(d("1000")))
	assert.True(t, tracker.GetAdjustedCryptoBalance().Equal(d("5")))
}

func TestGetTotalBalanceValue(t *testing.T) {
	tracker, _ := newTestTracker(t, models.ModeBacktest, "1000", "5")
	require.NoError(t, tracker.ReserveFundsForBuy(d("100")))

	// 1000 fiat + 5 crypto * 200, reservations included.
	total := tracker.GetTotalBalanceValue(d("200"))
	assert.True(t, total.Equal(d("2000")), "got %s", total)
}

func TestUpdateAfterInitialPurchase(t *testing.T) {
	tracker, _ := newTestTracker(t, models.ModePaper, "1000", "0")

	order := &models.Order{
		ID:      "1",
		Side:    models.Buy,
		Status:  models.OrderStatusClosed,
		Price:   d("100"),
		Amount:  d("5"),
		Filled:  d("5"),
		Average: d("101"),
	}
	require.NoError(t, tracker.UpdateAfterInitialPurchase(order))

	// Cost 505 plus fee on amount*average = 0.505.
	assert.True(t, tracker.CryptoBalance().Equal(d("5")))
	assert.True(t, tracker.Balance().Equal(d("494.495")), "got %s", tracker.Balance())
	assert.True(t, tracker.TotalFees().Equal(d("0.505")))
}

func TestUpdateAfterInitialPurchaseRejectsOpenOrder(t *testing.T) {
	tracker, _ := newTestTracker(t, models.ModePaper, "1000", "0")

	order := &models.Order{ID: "1", Side: models.Buy, Status: models.OrderStatusOpen}
	assert.Error(t, tracker.UpdateAfterInitialPurchase(order))
}
