package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"grid-trading-bot-go/internal/models"

	"github.com/adshao/go-binance/v2"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultWSBaseURL = "wss://stream.binance.com:9443"

	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // must be less than pongWait
)

// BinanceExchange implements Exchange against the Binance spot API. REST calls
// go through the official client; live prices come from the aggTrade stream.
type BinanceExchange struct {
	client    *binance.Client
	wsBaseURL string
	logger    *zap.SugaredLogger
}

// NewBinanceExchange creates a spot exchange client. Credentials may be empty
// for paper trading, which only uses public endpoints.
func NewBinanceExchange(apiKey, secretKey string, logger *zap.SugaredLogger) *BinanceExchange {
	return &BinanceExchange{
		client:    binance.NewClient(apiKey, secretKey),
		wsBaseURL: defaultWSBaseURL,
		logger:    logger,
	}
}

func (e *BinanceExchange) GetCurrentPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	prices, err := e.client.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch ticker price for %s: %w", pair, err)
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("no ticker price returned for %s", pair)
	}
	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse ticker price %q: %w", prices[0].Price, err)
	}
	return price, nil
}

func (e *BinanceExchange) GetBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	account, err := e.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account balances: %w", err)
	}

	balances := make(map[string]decimal.Decimal, len(account.Balances))
	for _, b := range account.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance %q for asset %s: %w", b.Free, b.Asset, err)
		}
		if free.IsPositive() {
			balances[b.Asset] = free
		}
	}
	return balances, nil
}

func (e *BinanceExchange) PlaceOrder(ctx context.Context, pair string, side models.OrderSide, orderType models.OrderType, quantity, price decimal.Decimal) (*models.Order, error) {
	svc := e.client.NewCreateOrderService().
		Symbol(pair).
		Side(binance.SideType(side)).
		Quantity(quantity.String())

	switch orderType {
	case models.Limit:
		svc = svc.Type(binance.OrderTypeLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Price(price.String())
	case models.Market:
		svc = svc.Type(binance.OrderTypeMarket)
	default:
		return nil, fmt.Errorf("unsupported order type: %q", orderType)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to place %s %s order for %s: %w", side, orderType, pair, err)
	}
	return e.orderFromCreateResponse(res, orderType)
}

func (e *BinanceExchange) CancelOrder(ctx context.Context, pair, orderID string) error {
	id, err := parseOrderID(orderID)
	if err != nil {
		return err
	}
	if _, err := e.client.NewCancelOrderService().Symbol(pair).OrderID(id).Do(ctx); err != nil {
		return fmt.Errorf("failed to cancel order %s on %s: %w", orderID, pair, err)
	}
	return nil
}

func (e *BinanceExchange) GetOrderStatus(ctx context.Context, pair, orderID string) (*models.Order, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}
	res, err := e.client.NewGetOrderService().Symbol(pair).OrderID(id).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query order %s on %s: %w", orderID, pair, err)
	}
	return e.orderFromQueryResponse(res)
}

// ListenToTicker streams aggTrade prices over a dedicated websocket. The
// connection is re-dialed on failure until ctx is cancelled.
func (e *BinanceExchange) ListenToTicker(ctx context.Context, pair string) (<-chan decimal.Decimal, error) {
	wsURL := fmt.Sprintf("%s/ws/%s@aggTrade", e.wsBaseURL, strings.ToLower(pair))
	prices := make(chan decimal.Decimal)

	go func() {
		defer close(prices)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
			if err != nil {
				e.logger.Warnf("Ticker stream dial failed: %v. Retrying in 5s...", err)
				if !sleepCtx(ctx, 5*time.Second) {
					return
				}
				continue
			}

			e.logger.Infof("Ticker stream connected for %s", pair)
			if err := e.consumeTickerStream(ctx, conn, prices); err != nil {
				e.logger.Warnf("Ticker stream error: %v. Reconnecting...", err)
			}
			conn.Close()

			select {
			case <-ctx.Done():
				return
			default:
				if !sleepCtx(ctx, 5*time.Second) {
					return
				}
			}
		}
	}()

	return prices, nil
}

// consumeTickerStream reads price messages on an established connection and
// keeps it alive with pings. Returns when the connection breaks or ctx ends.
func (e *BinanceExchange) consumeTickerStream(ctx context.Context, conn *websocket.Conn, prices chan<- decimal.Decimal) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	pingTicker := time.NewTicker(pingPeriod)
	pingDone := make(chan struct{})
	defer pingTicker.Stop()
	defer close(pingDone)

	go func() {
		for {
			select {
			case <-pingTicker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingDone:
				return
			case <-ctx.Done():
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}

		var trade struct {
			Price string `json:"p"`
		}
		if err := json.Unmarshal(message, &trade); err != nil {
			e.logger.Warnf("Failed to decode ticker message: %v", err)
			continue
		}
		price, err := decimal.NewFromString(trade.Price)
		if err != nil {
			e.logger.Warnf("Failed to parse ticker price %q: %v", trade.Price, err)
			continue
		}

		select {
		case prices <- price:
		case <-ctx.Done():
			return nil
		}
	}
}

func (e *BinanceExchange) Close() error {
	return nil
}

func (e *BinanceExchange) orderFromCreateResponse(res *binance.CreateOrderResponse, orderType models.OrderType) (*models.Order, error) {
	price, err := decimal.NewFromString(res.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order price %q: %w", res.Price, err)
	}
	amount, err := decimal.NewFromString(res.OrigQuantity)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order quantity %q: %w", res.OrigQuantity, err)
	}
	filled, err := decimal.NewFromString(res.ExecutedQuantity)
	if err != nil {
		return nil, fmt.Errorf("failed to parse executed quantity %q: %w", res.ExecutedQuantity, err)
	}

	var average, fee decimal.Decimal
	for _, f := range res.Fills {
		fillQty, err := decimal.NewFromString(f.Quantity)
		if err != nil {
			continue
		}
		fillPrice, err := decimal.NewFromString(f.Price)
		if err != nil {
			continue
		}
		average = average.Add(fillPrice.Mul(fillQty))
		if commission, err := decimal.NewFromString(f.Commission); err == nil {
			fee = fee.Add(commission)
		}
	}
	if filled.IsPositive() && average.IsPositive() {
		average = average.Div(filled)
	}

	return &models.Order{
		ID:        fmt.Sprintf("%d", res.OrderID),
		Symbol:    res.Symbol,
		Side:      models.OrderSide(res.Side),
		Type:      orderType,
		Status:    normalizeStatus(res.Status),
		Price:     price,
		Amount:    amount,
		Filled:    filled,
		Remaining: amount.Sub(filled),
		Average:   average,
		Fee:       fee,
		Timestamp: res.TransactTime,
	}, nil
}

func (e *BinanceExchange) orderFromQueryResponse(res *binance.Order) (*models.Order, error) {
	price, err := decimal.NewFromString(res.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order price %q: %w", res.Price, err)
	}
	amount, err := decimal.NewFromString(res.OrigQuantity)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order quantity %q: %w", res.OrigQuantity, err)
	}
	filled, err := decimal.NewFromString(res.ExecutedQuantity)
	if err != nil {
		return nil, fmt.Errorf("failed to parse executed quantity %q: %w", res.ExecutedQuantity, err)
	}

	var average decimal.Decimal
	if quoteQty, err := decimal.NewFromString(res.CummulativeQuoteQuantity); err == nil && filled.IsPositive() {
		average = quoteQty.Div(filled)
	}

	return &models.Order{
		ID:                 fmt.Sprintf("%d", res.OrderID),
		Symbol:             res.Symbol,
		Side:               models.OrderSide(res.Side),
		Type:               models.OrderType(res.Type),
		Status:             normalizeStatus(res.Status),
		Price:              price,
		Amount:             amount,
		Filled:             filled,
		Remaining:          amount.Sub(filled),
		Average:            average,
		Timestamp:          res.Time,
		LastTradeTimestamp: res.UpdateTime,
	}, nil
}

func normalizeStatus(status binance.OrderStatusType) models.OrderStatus {
	switch status {
	case binance.OrderStatusTypeNew:
		return models.OrderStatusOpen
	case binance.OrderStatusTypePartiallyFilled:
		return models.OrderStatusPartiallyFilled
	case binance.OrderStatusTypeFilled:
		return models.OrderStatusClosed
	default:
		return models.OrderStatusCancelled
	}
}

func parseOrderID(orderID string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(orderID, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid exchange order id %q: %w", orderID, err)
	}
	return id, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
