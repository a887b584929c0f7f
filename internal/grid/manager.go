package grid

import (
	"fmt"
	"math"
	"sort"

	"grid-trading-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PairingType tags the direction of a level pairing.
type PairingType string

const (
	PairingBuy  PairingType = "buy"
	PairingSell PairingType = "sell"
)

// ErrInvalidPairingType is returned by PairGridLevels for any tag other than
// "buy" or "sell". This is a configuration-shape error, not a runtime one.
var ErrInvalidPairingType = fmt.Errorf("invalid pairing type: must be %q or %q", PairingBuy, PairingSell)

var two = decimal.NewFromInt(2)

// Manager owns the price ladder and the level store, and delegates all
// state-transition and pairing policy to the configured strategy.
type Manager struct {
	logger       *zap.SugaredLogger
	cfg          *models.Config
	strategyType models.StrategyType
	strategy     Strategy

	PriceGrids      []decimal.Decimal
	CentralPrice    decimal.Decimal
	SortedBuyGrids  []decimal.Decimal
	SortedSellGrids []decimal.Decimal

	lad ladder
}

// NewManager builds a grid manager for the configured strategy type.
// Unsupported strategy types fail here, at construction time.
func NewManager(cfg *models.Config, logger *zap.SugaredLogger) (*Manager, error) {
	strategy, err := newStrategy(cfg.StrategyType)
	if err != nil {
		return nil, err
	}
	return &Manager{
		logger:       logger,
		cfg:          cfg,
		strategyType: cfg.StrategyType,
		strategy:     strategy,
	}, nil
}

func newStrategy(strategyType models.StrategyType) (Strategy, error) {
	switch strategyType {
	case models.SimpleGrid:
		return SimpleStrategy{}, nil
	case models.HedgedGrid:
		return HedgedStrategy{}, nil
	default:
		return nil, fmt.Errorf("unsupported strategy type: %q", strategyType)
	}
}

// InitializeGridsAndLevels computes the price ladder and assigns each level
// its initial cycle state through the strategy.
func (m *Manager) InitializeGridsAndLevels() error {
	grids, centralPrice, err := m.calculatePriceGridsAndCentralPrice()
	if err != nil {
		return err
	}
	m.PriceGrids = grids
	m.CentralPrice = centralPrice

	m.SortedBuyGrids, m.SortedSellGrids, m.lad.levels = m.strategy.InitializeLevels(m.PriceGrids, m.CentralPrice)

	m.lad.sortedSellGrids = m.SortedSellGrids
	m.lad.sortedPrices = append([]decimal.Decimal(nil), m.PriceGrids...)
	sort.Slice(m.lad.sortedPrices, func(i, j int) bool {
		return m.lad.sortedPrices[i].LessThan(m.lad.sortedPrices[j])
	})
	m.lad.indexByPrice = make(map[string]int, len(m.lad.sortedPrices))
	for i, p := range m.lad.sortedPrices {
		m.lad.indexByPrice[p.String()] = i
	}

	m.logger.Infof("Grids and levels initialized. Central price: %s", m.CentralPrice)
	m.logger.Debugf("Price grids: %v", m.PriceGrids)
	m.logger.Debugf("Buy grids: %v, Sell grids: %v", m.SortedBuyGrids, m.SortedSellGrids)
	return nil
}

// TriggerPrice returns the price that must be crossed before the initial
// ladder of orders is placed.
func (m *Manager) TriggerPrice() decimal.Decimal {
	return m.CentralPrice
}

// Level returns the grid level at the given price, or nil when the price is
// not part of the ladder.
func (m *Manager) Level(price decimal.Decimal) *Level {
	return m.lad.level(price)
}

// Levels returns the level store keyed by price string, for reporting and
// persistence snapshots.
func (m *Manager) Levels() map[string]*Level {
	return m.lad.levels
}

// NumLevels returns the number of grid levels.
func (m *Manager) NumLevels() int {
	return len(m.lad.levels)
}

// OrderSizeForGridLevel allocates an equal share of the portfolio to each
// level and converts it to base quantity at the current price.
func (m *Manager) OrderSizeForGridLevel(totalBalanceValue, currentPrice decimal.Decimal) decimal.Decimal {
	totalGrids := decimal.NewFromInt(int64(m.NumLevels()))
	return totalBalanceValue.Div(totalGrids).Div(currentPrice)
}

// InitialOrderQuantity sizes the one-shot initial purchase: target a 50%
// crypto allocation of the total portfolio value, clamped to the available
// fiat, converted to quantity at the current price.
func (m *Manager) InitialOrderQuantity(fiatBalance, cryptoBalance, currentPrice decimal.Decimal) decimal.Decimal {
	cryptoValueInFiat := cryptoBalance.Mul(currentPrice)
	totalPortfolioValue := fiatBalance.Add(cryptoValueInFiat)
	targetCryptoAllocation := totalPortfolioValue.Div(two)

	fiatToAllocate := targetCryptoAllocation.Sub(cryptoValueInFiat)
	if fiatToAllocate.GreaterThan(fiatBalance) {
		fiatToAllocate = fiatBalance
	}
	if fiatToAllocate.IsNegative() {
		fiatToAllocate = decimal.Zero
	}
	return fiatToAllocate.Div(currentPrice)
}

// PairGridLevels links a source and target level in the given direction.
func (m *Manager) PairGridLevels(source, target *Level, pairingType PairingType) error {
	switch pairingType {
	case PairingBuy:
		source.PairedBuyLevel = target
		target.PairedSellLevel = source
		m.logger.Infof("Paired sell grid level %s with buy grid level %s.", source.Price, target.Price)
		return nil
	case PairingSell:
		source.PairedSellLevel = target
		target.PairedBuyLevel = source
		m.logger.Infof("Paired buy grid level %s with sell grid level %s.", source.Price, target.Price)
		return nil
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidPairingType, pairingType)
	}
}

// PairedSellLevel resolves the sell level paired with the given buy level
// under the active strategy, or nil when no valid level exists.
func (m *Manager) PairedSellLevel(buyLevel *Level) *Level {
	result := m.strategy.PairedSellLevel(buyLevel, &m.lad)
	if result == nil {
		m.logger.Warnf("No suitable sell level found for buy grid level %s", buyLevel)
	}
	return result
}

// GridLevelBelow returns the level immediately below the given one in the
// sorted ladder, or nil at the bottom edge.
func (m *Manager) GridLevelBelow(level *Level) *Level {
	currentIndex, ok := m.lad.indexByPrice[level.Price.String()]
	if !ok || currentIndex == 0 {
		return nil
	}
	return m.lad.level(m.lad.sortedPrices[currentIndex-1])
}

// MarkOrderPending records a newly placed order on its level and moves the
// level into the corresponding waiting state. This is the only way a level
// enters a waiting state, and it happens together with order placement.
func (m *Manager) MarkOrderPending(level *Level, order *models.Order) {
	level.AddOrder(order)

	if order.Side == models.Buy {
		level.State = WaitingForBuyFill
		m.logger.Infof("Buy order placed and marked as pending at grid level %s.", level.Price)
	} else {
		level.State = WaitingForSellFill
		m.logger.Infof("Sell order placed and marked as pending at grid level %s.", level.Price)
	}
}

// CompleteOrder transitions a level after a fill, per the active strategy.
func (m *Manager) CompleteOrder(level *Level, side models.OrderSide) {
	m.strategy.CompleteOrder(level, side, m.logger)
}

// CanPlaceOrder reports whether the level accepts a new order on the side
// under the active strategy.
func (m *Manager) CanPlaceOrder(level *Level, side models.OrderSide) bool {
	return m.strategy.CanPlaceOrder(level, side)
}

func (m *Manager) calculatePriceGridsAndCentralPrice() ([]decimal.Decimal, decimal.Decimal, error) {
	bottom := m.cfg.BottomRange
	top := m.cfg.TopRange
	numGrids := m.cfg.NumGrids

	switch m.cfg.SpacingType {
	case models.SpacingArithmetic:
		step := top.Sub(bottom).Div(decimal.NewFromInt(int64(numGrids - 1)))
		grids := make([]decimal.Decimal, 0, numGrids)
		for i := 0; i < numGrids; i++ {
			grids = append(grids, bottom.Add(step.Mul(decimal.NewFromInt(int64(i)))))
		}
		centralPrice := top.Add(bottom).Div(two)
		return grids, centralPrice, nil

	case models.SpacingGeometric:
		// The (n-1)-th root has no exact decimal representation; the ratio is
		// computed in floating point and applied with decimal multiplication.
		ratioFloat := math.Pow(top.Div(bottom).InexactFloat64(), 1/float64(numGrids-1))
		ratio := decimal.NewFromFloat(ratioFloat)

		grids := make([]decimal.Decimal, 0, numGrids)
		currentPrice := bottom
		for i := 0; i < numGrids; i++ {
			grids = append(grids, currentPrice)
			currentPrice = currentPrice.Mul(ratio)
		}

		centralIndex := len(grids) / 2
		var centralPrice decimal.Decimal
		if numGrids%2 == 0 {
			centralPrice = grids[centralIndex-1].Add(grids[centralIndex]).Div(two)
		} else {
			centralPrice = grids[centralIndex]
		}
		return grids, centralPrice, nil

	default:
		return nil, decimal.Zero, fmt.Errorf("unsupported spacing type: %q", m.cfg.SpacingType)
	}
}
