package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderSide defines the direction of an order.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderType defines how an order is executed.
type OrderType string

const (
	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
)

// OrderStatus tracks the lifecycle of an order on the exchange.
type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "OPEN"
	OrderStatusClosed          OrderStatus = "CLOSED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
)

// Order is the normalized representation of an exchange order.
// It is created by the order manager through an executor and mutated to
// CLOSED/filled by the fill path (live exchange stream or the simulator).
type Order struct {
	ID                 string          `json:"id"`
	Symbol             string          `json:"symbol"`
	Side               OrderSide       `json:"side"`
	Type               OrderType       `json:"type"`
	Status             OrderStatus     `json:"status"`
	Price              decimal.Decimal `json:"price"`
	Amount             decimal.Decimal `json:"amount"`
	Filled             decimal.Decimal `json:"filled"`
	Remaining          decimal.Decimal `json:"remaining"`
	Average            decimal.Decimal `json:"average"` // average fill price, zero if unknown
	Fee                decimal.Decimal `json:"fee"`
	Timestamp          int64           `json:"timestamp"` // placement time, unix ms
	LastTradeTimestamp int64           `json:"last_trade_timestamp"`
}

// IsOpen reports whether the order still has unfilled quantity working on the book.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusOpen || o.Status == OrderStatusPartiallyFilled
}

// IsFilled reports whether the order has been completely filled.
func (o *Order) IsFilled() bool {
	return o.Status == OrderStatusClosed
}

// FillPrice returns the average fill price when the exchange reported one,
// falling back to the requested price.
func (o *Order) FillPrice() decimal.Decimal {
	if o.Average.IsPositive() {
		return o.Average
	}
	return o.Price
}

func (o *Order) String() string {
	return fmt.Sprintf("Order(id=%s, side=%s, type=%s, status=%s, price=%s, amount=%s, filled=%s)",
		o.ID, o.Side, o.Type, o.Status, o.Price, o.Amount, o.Filled)
}
