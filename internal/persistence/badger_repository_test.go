package persistence

import (
	"testing"
	"time"

	"grid-trading-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) StateRepository {
	t.Helper()
	repo, err := NewBadgerRepository(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestLoadSessionFreshDatabase(t *testing.T) {
	repo := newTestRepository(t)

	state, err := repo.LoadSession()
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestSaveAndLoadSessionRoundTrip(t *testing.T) {
	repo := newTestRepository(t)

	saved := &models.SessionState{
		Pair:         "ETHUSDT",
		TradingMode:  models.ModeBacktest,
		StrategyType: models.SimpleGrid,
		CentralPrice: decimal.RequireFromString("2975"),
		GridLevels: []models.GridLevelState{
			{Price: decimal.RequireFromString("2850"), CycleState: "READY_TO_BUY", NumBuyOrders: 1},
			{Price: decimal.RequireFromString("3100"), CycleState: "WAITING_FOR_SELL_FILL", NumSellOrders: 2},
		},
		Balance:        decimal.RequireFromString("9500.25"),
		CryptoBalance:  decimal.RequireFromString("1.75"),
		ReservedFiat:   decimal.RequireFromString("250"),
		ReservedCrypto: decimal.RequireFromString("0.5"),
		TotalFees:      decimal.RequireFromString("12.345"),
		LastUpdateTime: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.SaveSession(saved))

	loaded, err := repo.LoadSession()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, saved.Pair, loaded.Pair)
	assert.Equal(t, saved.TradingMode, loaded.TradingMode)
	assert.True(t, loaded.CentralPrice.Equal(saved.CentralPrice))
	assert.True(t, loaded.Balance.Equal(saved.Balance))
	assert.True(t, loaded.TotalFees.Equal(saved.TotalFees))
	require.Len(t, loaded.GridLevels, 2)
	assert.Equal(t, "READY_TO_BUY", loaded.GridLevels[0].CycleState)
	assert.Equal(t, 2, loaded.GridLevels[1].NumSellOrders)
	assert.True(t, loaded.LastUpdateTime.Equal(saved.LastUpdateTime))
}

// TestSaveSessionOverwrites verifies the single-snapshot model: a later save
// replaces the earlier one.
func TestSaveSessionOverwrites(t *testing.T) {
	repo := newTestRepository(t)

	first := &models.SessionState{Pair: "ETHUSDT", Balance: decimal.RequireFromString("100")}
	second := &models.SessionState{Pair: "BTCUSDT", Balance: decimal.RequireFromString("200")}
	require.NoError(t, repo.SaveSession(first))
	require.NoError(t, repo.SaveSession(second))

	loaded, err := repo.LoadSession()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "BTCUSDT", loaded.Pair)
	assert.True(t, loaded.Balance.Equal(decimal.RequireFromString("200")))
}
