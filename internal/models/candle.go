package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is a single OHLCV bar of historical market data.
type Candle struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

// SessionState is the snapshot persisted between runs. It captures the grid
// level states and the balance counters for operator inspection.
type SessionState struct {
	Pair           string           `json:"pair"`
	TradingMode    TradingMode      `json:"trading_mode"`
	StrategyType   StrategyType     `json:"strategy_type"`
	CentralPrice   decimal.Decimal  `json:"central_price"`
	GridLevels     []GridLevelState `json:"grid_levels"`
	Balance        decimal.Decimal  `json:"balance"`
	CryptoBalance  decimal.Decimal  `json:"crypto_balance"`
	ReservedFiat   decimal.Decimal  `json:"reserved_fiat"`
	ReservedCrypto decimal.Decimal  `json:"reserved_crypto"`
	TotalFees      decimal.Decimal  `json:"total_fees"`
	LastUpdateTime time.Time        `json:"last_update_time"`
}

// GridLevelState is the persisted view of a single grid level.
type GridLevelState struct {
	Price         decimal.Decimal `json:"price"`
	CycleState    string          `json:"cycle_state"`
	NumBuyOrders  int             `json:"num_buy_orders"`
	NumSellOrders int             `json:"num_sell_orders"`
}
