package grid

import (
	"fmt"

	"grid-trading-bot-go/internal/models"

	"github.com/shopspring/decimal"
)

// CycleState is the position of a grid level in its buy/sell cycle.
type CycleState string

const (
	ReadyToBuy         CycleState = "READY_TO_BUY"
	ReadyToSell        CycleState = "READY_TO_SELL"
	ReadyToBuyOrSell   CycleState = "READY_TO_BUY_OR_SELL" // hedged grid only
	WaitingForBuyFill  CycleState = "WAITING_FOR_BUY_FILL"
	WaitingForSellFill CycleState = "WAITING_FOR_SELL_FILL"
	Completed          CycleState = "COMPLETED"
)

// Level is a single price point of the grid. Its price is immutable after
// construction; the cycle state and the per-side order logs change as orders
// are placed and filled. Paired levels are non-owning references into the
// manager's level store, set at pairing time.
type Level struct {
	Price      decimal.Decimal
	State      CycleState
	BuyOrders  []*models.Order
	SellOrders []*models.Order

	PairedBuyLevel  *Level
	PairedSellLevel *Level
}

// NewLevel creates a grid level in the given initial cycle state.
func NewLevel(price decimal.Decimal, state CycleState) *Level {
	return &Level{
		Price: price,
		State: state,
	}
}

// AddOrder appends an order to the level's log for the order's side.
// The logs are append-only; resolved orders are never removed.
func (l *Level) AddOrder(order *models.Order) {
	if order.Side == models.Buy {
		l.BuyOrders = append(l.BuyOrders, order)
	} else {
		l.SellOrders = append(l.SellOrders, order)
	}
}

// LatestBuyOrder returns the most recent buy order placed on this level, or nil.
func (l *Level) LatestBuyOrder() *models.Order {
	if len(l.BuyOrders) == 0 {
		return nil
	}
	return l.BuyOrders[len(l.BuyOrders)-1]
}

// LatestSellOrder returns the most recent sell order placed on this level, or nil.
func (l *Level) LatestSellOrder() *models.Order {
	if len(l.SellOrders) == 0 {
		return nil
	}
	return l.SellOrders[len(l.SellOrders)-1]
}

func (l *Level) String() string {
	return fmt.Sprintf("Level(price=%s, state=%s, buys=%d, sells=%d)",
		l.Price, l.State, len(l.BuyOrders), len(l.SellOrders))
}
