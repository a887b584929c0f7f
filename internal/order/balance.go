package order

import (
	"context"
	"fmt"
	"sync"

	"grid-trading-bot-go/internal/events"
	"grid-trading-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BalanceSource provides free balances per asset for live-mode setup. It is
// satisfied by the exchange client.
type BalanceSource interface {
	GetBalances(ctx context.Context) (map[string]decimal.Decimal, error)
}

// BalanceTracker owns the session's fiat and crypto accounting. Funds for a
// pending order are moved from the available balance into a reserved bucket
// at placement time and consumed from there when the fill arrives. A fill
// that costs more than was reserved draws the overflow from the available
// balance; a fill that costs less leaves the remainder in the reservation.
//
// All five counters are guarded by one mutex so that any reader sees a
// consistent snapshot, in particular GetTotalBalanceValue.
type BalanceTracker struct {
	bus           *events.Bus
	feeCalculator *FeeCalculator
	tradingMode   models.TradingMode
	baseCurrency  string
	quoteCurrency string
	logger        *zap.SugaredLogger

	mu             sync.Mutex
	balance        decimal.Decimal
	cryptoBalance  decimal.Decimal
	reservedFiat   decimal.Decimal
	reservedCrypto decimal.Decimal
	totalFees      decimal.Decimal
}

// NewBalanceTracker creates a tracker and subscribes it to fill events.
func NewBalanceTracker(bus *events.Bus, feeCalculator *FeeCalculator, tradingMode models.TradingMode, baseCurrency, quoteCurrency string, logger *zap.SugaredLogger) *BalanceTracker {
	t := &BalanceTracker{
		bus:           bus,
		feeCalculator: feeCalculator,
		tradingMode:   tradingMode,
		baseCurrency:  baseCurrency,
		quoteCurrency: quoteCurrency,
		logger:        logger,
	}
	bus.Subscribe(events.OrderFilled, t.onOrderFilled)
	return t
}

// SetupBalances initializes the counters. Backtest and paper trading start
// from the configured balances; live mode fetches the real free balances from
// the exchange.
func (t *BalanceTracker) SetupBalances(ctx context.Context, initialBalance, initialCryptoBalance decimal.Decimal, source BalanceSource) error {
	switch t.tradingMode {
	case models.ModeBacktest, models.ModePaper:
		t.mu.Lock()
		t.balance = initialBalance
		t.cryptoBalance = initialCryptoBalance
		t.mu.Unlock()
		return nil
	case models.ModeLive:
		return t.fetchLiveBalances(ctx, source)
	default:
		return fmt.Errorf("unknown trading mode: %q", t.tradingMode)
	}
}

func (t *BalanceTracker) fetchLiveBalances(ctx context.Context, source BalanceSource) error {
	if source == nil {
		return fmt.Errorf("live trading mode requires a balance source")
	}
	balances, err := source.GetBalances(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch live balances: %w", err)
	}

	t.mu.Lock()
	t.balance = balances[t.quoteCurrency]
	t.cryptoBalance = balances[t.baseCurrency]
	t.mu.Unlock()

	t.logger.Infof("Fetched balances. Quote %s: %s, Base %s: %s",
		t.quoteCurrency, balances[t.quoteCurrency], t.baseCurrency, balances[t.baseCurrency])
	return nil
}

func (t *BalanceTracker) onOrderFilled(data interface{}) error {
	order, ok := data.(*models.Order)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for order filled event", data)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch order.Side {
	case models.Buy:
		t.updateAfterBuyFilled(order.Filled, order.Price)
	case models.Sell:
		t.updateAfterSellFilled(order.Filled, order.Price)
	}
	return nil
}

// updateAfterBuyFilled consumes the fill cost from the fiat reservation. When
// the reservation was too small, e.g. due to slippage against the reserved
// estimate, the overflow is drawn from the available balance and the
// reservation clamped to zero. Callers hold the lock.
func (t *BalanceTracker) updateAfterBuyFilled(quantity, price decimal.Decimal) {
	fee := t.feeCalculator.CalculateFee(quantity.Mul(price))
	totalCost := quantity.Mul(price).Add(fee)

	t.reservedFiat = t.reservedFiat.Sub(totalCost)
	if t.reservedFiat.IsNegative() {
		overflow := t.reservedFiat.Neg()
		t.balance = t.balance.Sub(overflow)
		t.reservedFiat = decimal.Zero
	}

	t.cryptoBalance = t.cryptoBalance.Add(quantity)
	t.totalFees = t.totalFees.Add(fee)
	t.logger.Infof("Buy order completed: %s crypto purchased at %s.", quantity, price)
}

// updateAfterSellFilled mirrors the buy path on the crypto side: the sold
// quantity comes out of the crypto reservation, overflow out of the available
// crypto balance, and the proceeds net of fee land in fiat. Callers hold the
// lock.
func (t *BalanceTracker) updateAfterSellFilled(quantity, price decimal.Decimal) {
	fee := t.feeCalculator.CalculateFee(quantity.Mul(price))
	saleProceeds := quantity.Mul(price).Sub(fee)

	t.reservedCrypto = t.reservedCrypto.Sub(quantity)
	if t.reservedCrypto.IsNegative() {
		overflow := t.reservedCrypto.Neg()
		t.cryptoBalance = t.cryptoBalance.Add(overflow)
		t.reservedCrypto = decimal.Zero
	}

	t.balance = t.balance.Add(saleProceeds)
	t.totalFees = t.totalFees.Add(fee)
	t.logger.Infof("Sell order completed: %s crypto sold at %s.", quantity, price)
}

// UpdateAfterInitialPurchase applies a completed market buy directly to the
// balances. Used in live and paper modes where the fill is not simulated.
func (t *BalanceTracker) UpdateAfterInitialPurchase(initialOrder *models.Order) error {
	if !initialOrder.IsFilled() {
		return fmt.Errorf("order %s is not filled, cannot update balances", initialOrder.ID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	totalCost := initialOrder.Filled.Mul(initialOrder.Average)
	fee := t.feeCalculator.CalculateFee(initialOrder.Amount.Mul(initialOrder.Average))

	t.cryptoBalance = t.cryptoBalance.Add(initialOrder.Filled)
	t.balance = t.balance.Sub(totalCost.Add(fee))
	t.totalFees = t.totalFees.Add(fee)

	t.logger.Infof("Updated balances. Crypto balance: %s, Fiat balance: %s, Total fees: %s",
		t.cryptoBalance, t.balance, t.totalFees)
	return nil
}

// ReserveFundsForBuy moves fiat from the available balance into the buy
// reservation, failing when the balance cannot cover the amount.
func (t *BalanceTracker) ReserveFundsForBuy(amount decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.balance.LessThan(amount) {
		return fmt.Errorf("cannot reserve %s fiat, available %s: %w", amount, t.balance, ErrInsufficientBalance)
	}

	t.reservedFiat = t.reservedFiat.Add(amount)
	t.balance = t.balance.Sub(amount)
	t.logger.Infof("Reserved %s fiat for a buy order. Remaining fiat balance: %s.", amount, t.balance)
	return nil
}

// ReserveFundsForSell moves crypto from the available balance into the sell
// reservation, failing when the balance cannot cover the quantity.
func (t *BalanceTracker) ReserveFundsForSell(quantity decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cryptoBalance.LessThan(quantity) {
		return fmt.Errorf("cannot reserve %s crypto, available %s: %w", quantity, t.cryptoBalance, ErrInsufficientCryptoBalance)
	}

	t.reservedCrypto = t.reservedCrypto.Add(quantity)
	t.cryptoBalance = t.cryptoBalance.Sub(quantity)
	t.logger.Infof("Reserved %s crypto for a sell order. Remaining crypto balance: %s.", quantity, t.cryptoBalance)
	return nil
}

// Balance returns the available fiat balance.
func (t *BalanceTracker) Balance() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance
}

// CryptoBalance returns the available crypto balance.
func (t *BalanceTracker) CryptoBalance() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cryptoBalance
}

// ReservedFiat returns the fiat currently reserved for open buy orders.
func (t *BalanceTracker) ReservedFiat() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reservedFiat
}

// ReservedCrypto returns the crypto currently reserved for open sell orders.
func (t *BalanceTracker) ReservedCrypto() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reservedCrypto
}

// TotalFees returns the accumulated trading fees.
func (t *BalanceTracker) TotalFees() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalFees
}

// GetAdjustedFiatBalance returns the fiat balance including reserved funds.
func (t *BalanceTracker) GetAdjustedFiatBalance() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance.Add(t.reservedFiat)
}

// GetAdjustedCryptoBalance returns the crypto balance including reserved funds.
func (t *BalanceTracker) GetAdjustedCryptoBalance() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cryptoBalance.Add(t.reservedCrypto)
}

// GetTotalBalanceValue values the whole account in fiat at the given price,
// reserved funds included. The snapshot is taken under one lock so the fiat
// and crypto parts can never come from different moments.
func (t *BalanceTracker) GetTotalBalanceValue(price decimal.Decimal) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	adjustedFiat := t.balance.Add(t.reservedFiat)
	adjustedCrypto := t.cryptoBalance.Add(t.reservedCrypto)
	return adjustedFiat.Add(adjustedCrypto.Mul(price))
}
