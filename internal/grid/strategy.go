package grid

import (
	"grid-trading-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ladder is the manager's read-only view of the price grid handed to a
// strategy: the level store plus the sorted price slices and index map used
// for neighbor lookups.
type ladder struct {
	levels          map[string]*Level
	sortedSellGrids []decimal.Decimal
	sortedPrices    []decimal.Decimal
	indexByPrice    map[string]int
}

func (l *ladder) level(price decimal.Decimal) *Level {
	return l.levels[price.String()]
}

// Strategy is the pure pairing/transition policy of the grid. It is selected
// once at startup and never swapped during a session.
type Strategy interface {
	// InitializeLevels assigns each grid price its initial cycle state and
	// splits the ladder into buy-candidate and sell-candidate prices.
	InitializeLevels(priceGrids []decimal.Decimal, centralPrice decimal.Decimal) (buyGrids, sellGrids []decimal.Decimal, levels map[string]*Level)

	// PairedSellLevel resolves the sell level that should receive the next
	// order after a buy fill on buyLevel, or nil when none qualifies.
	PairedSellLevel(buyLevel *Level, lad *ladder) *Level

	// CompleteOrder transitions a level after one of its orders filled.
	CompleteOrder(level *Level, side models.OrderSide, logger *zap.SugaredLogger)

	// CanPlaceOrder reports whether a level accepts a new order on the side.
	CanPlaceOrder(level *Level, side models.OrderSide) bool
}

// SimpleStrategy implements the classic grid: buy levels below the central
// price, sell levels above it, each level alternating between buying and
// selling.
type SimpleStrategy struct{}

func (SimpleStrategy) InitializeLevels(priceGrids []decimal.Decimal, centralPrice decimal.Decimal) ([]decimal.Decimal, []decimal.Decimal, map[string]*Level) {
	var buyGrids, sellGrids []decimal.Decimal
	levels := make(map[string]*Level, len(priceGrids))

	for _, price := range priceGrids {
		if price.LessThanOrEqual(centralPrice) {
			buyGrids = append(buyGrids, price)
			levels[price.String()] = NewLevel(price, ReadyToBuy)
		} else {
			sellGrids = append(sellGrids, price)
			levels[price.String()] = NewLevel(price, ReadyToSell)
		}
	}
	return buyGrids, sellGrids, levels
}

// PairedSellLevel scans the sell grids in ascending price order and returns
// the first available level above the buy level's price.
func (SimpleStrategy) PairedSellLevel(buyLevel *Level, lad *ladder) *Level {
	for _, sellPrice := range lad.sortedSellGrids {
		sellLevel := lad.level(sellPrice)
		if !(SimpleStrategy{}).CanPlaceOrder(sellLevel, models.Sell) {
			continue
		}
		if sellPrice.GreaterThan(buyLevel.Price) {
			return sellLevel
		}
	}
	return nil
}

func (SimpleStrategy) CompleteOrder(level *Level, side models.OrderSide, logger *zap.SugaredLogger) {
	switch side {
	case models.Buy:
		level.State = ReadyToSell
		logger.Infof("Buy order completed at grid level %s. Transitioning to READY_TO_SELL.", level.Price)
	case models.Sell:
		level.State = ReadyToBuy
		logger.Infof("Sell order completed at grid level %s. Transitioning to READY_TO_BUY.", level.Price)
	}
}

func (SimpleStrategy) CanPlaceOrder(level *Level, side models.OrderSide) bool {
	switch side {
	case models.Buy:
		return level.State == ReadyToBuy
	case models.Sell:
		return level.State == ReadyToSell
	}
	return false
}

// HedgedStrategy implements the hedged grid: every level except the extremes
// can hold either side, and fills move levels back to the neutral state.
type HedgedStrategy struct{}

func (HedgedStrategy) InitializeLevels(priceGrids []decimal.Decimal, centralPrice decimal.Decimal) ([]decimal.Decimal, []decimal.Decimal, map[string]*Level) {
	buyGrids := append([]decimal.Decimal(nil), priceGrids[:len(priceGrids)-1]...) // all except the top grid
	sellGrids := append([]decimal.Decimal(nil), priceGrids[1:]...)                // all except the bottom grid

	topPrice := priceGrids[len(priceGrids)-1]
	levels := make(map[string]*Level, len(priceGrids))
	for _, price := range priceGrids {
		if price.Equal(topPrice) {
			levels[price.String()] = NewLevel(price, ReadyToSell)
		} else {
			levels[price.String()] = NewLevel(price, ReadyToBuyOrSell)
		}
	}
	return buyGrids, sellGrids, levels
}

// PairedSellLevel returns the level immediately above in the sorted ladder.
// Unlike the simple strategy this does not check availability; adjacency
// pairing intentionally returns the neighbor regardless of its state.
func (HedgedStrategy) PairedSellLevel(buyLevel *Level, lad *ladder) *Level {
	currentIndex, ok := lad.indexByPrice[buyLevel.Price.String()]
	if !ok {
		return nil
	}
	if currentIndex+1 < len(lad.sortedPrices) {
		return lad.level(lad.sortedPrices[currentIndex+1])
	}
	return nil
}

func (HedgedStrategy) CompleteOrder(level *Level, side models.OrderSide, logger *zap.SugaredLogger) {
	switch side {
	case models.Buy:
		level.State = ReadyToBuyOrSell
		logger.Infof("Buy order completed at grid level %s. Transitioning to READY_TO_BUY_OR_SELL.", level.Price)
		if level.PairedSellLevel != nil {
			level.PairedSellLevel.State = ReadyToSell
			logger.Infof("Paired sell grid level %s transitioned to READY_TO_SELL.", level.PairedSellLevel.Price)
		}
	case models.Sell:
		level.State = ReadyToBuyOrSell
		logger.Infof("Sell order completed at grid level %s. Transitioning to READY_TO_BUY_OR_SELL.", level.Price)
		if level.PairedBuyLevel != nil {
			level.PairedBuyLevel.State = ReadyToBuy
			logger.Infof("Paired buy grid level %s transitioned to READY_TO_BUY.", level.PairedBuyLevel.Price)
		}
	}
}

func (HedgedStrategy) CanPlaceOrder(level *Level, side models.OrderSide) bool {
	switch side {
	case models.Buy:
		return level.State == ReadyToBuy || level.State == ReadyToBuyOrSell
	case models.Sell:
		return level.State == ReadyToSell || level.State == ReadyToBuyOrSell
	}
	return false
}
