package order

import (
	"sync"

	"grid-trading-bot-go/internal/grid"
	"grid-trading-bot-go/internal/models"
)

// Book indexes every order of a session and maps grid orders back to their
// grid level. Orders are kept in placement order so that backtest fill
// simulation iterates deterministically.
type Book struct {
	mu sync.RWMutex

	buyOrders     []*models.Order
	sellOrders    []*models.Order
	nonGridOrders []*models.Order // initial purchase, take-profit, stop-loss

	levelByOrderID map[string]*grid.Level
}

// NewBook creates an empty order book.
func NewBook() *Book {
	return &Book{
		levelByOrderID: make(map[string]*grid.Level),
	}
}

// AddOrder registers an order. Orders with a nil level are tracked as
// non-grid orders and never map back to a grid level.
func (b *Book) AddOrder(order *models.Order, level *grid.Level) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if level == nil {
		b.nonGridOrders = append(b.nonGridOrders, order)
		return
	}

	if order.Side == models.Buy {
		b.buyOrders = append(b.buyOrders, order)
	} else {
		b.sellOrders = append(b.sellOrders, order)
	}
	b.levelByOrderID[order.ID] = level
}

// GridLevelForOrder returns the grid level an order was placed on, or nil for
// unknown and non-grid orders.
func (b *Book) GridLevelForOrder(order *models.Order) *grid.Level {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.levelByOrderID[order.ID]
}

// OpenOrders returns the grid orders that still have quantity working, buys
// before sells, each side in placement order.
func (b *Book) OpenOrders() []*models.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var open []*models.Order
	for _, o := range b.buyOrders {
		if o.IsOpen() {
			open = append(open, o)
		}
	}
	for _, o := range b.sellOrders {
		if o.IsOpen() {
			open = append(open, o)
		}
	}
	return open
}

// CompletedOrders returns every filled order, grid and non-grid, buys before
// sells, in placement order.
func (b *Book) CompletedOrders() []*models.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var completed []*models.Order
	for _, o := range b.buyOrders {
		if o.IsFilled() {
			completed = append(completed, o)
		}
	}
	for _, o := range b.sellOrders {
		if o.IsFilled() {
			completed = append(completed, o)
		}
	}
	for _, o := range b.nonGridOrders {
		if o.IsFilled() {
			completed = append(completed, o)
		}
	}
	return completed
}

// AllOrders returns every tracked order in placement order per category.
func (b *Book) AllOrders() []*models.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	all := make([]*models.Order, 0, len(b.buyOrders)+len(b.sellOrders)+len(b.nonGridOrders))
	all = append(all, b.buyOrders...)
	all = append(all, b.sellOrders...)
	all = append(all, b.nonGridOrders...)
	return all
}
