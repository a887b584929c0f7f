package grid

import (
	"testing"

	"grid-trading-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewManagerRejectsUnknownStrategy(t *testing.T) {
	cfg := testConfig("martingale", models.SpacingArithmetic, 10, "100", "200")
	_, err := NewManager(cfg, zap.NewNop().Sugar())
	assert.Error(t, err)
}

// TestArithmeticSpacing verifies equal absolute steps and the midpoint
// central price.
func TestArithmeticSpacing(t *testing.T) {
	cfg := testConfig(models.SimpleGrid, models.SpacingArithmetic, 5, "100", "200")
	m := newTestManager(t, cfg)

	expected := []string{"100", "125", "150", "175", "200"}
	require.Len(t, m.PriceGrids, 5)
	for i, want := range expected {
		assert.True(t, m.PriceGrids[i].Equal(decimal.RequireFromString(want)),
			"grid %d: got %s, want %s", i, m.PriceGrids[i], want)
	}
	assert.True(t, m.CentralPrice.Equal(decimal.RequireFromString("150")))
}

// TestGeometricSpacing verifies the equal-ratio ladder. With range [100, 1600]
// and 5 levels the ratio is 2, and an odd level count puts the central price
// on the middle level.
func TestGeometricSpacing(t *testing.T) {
	cfg := testConfig(models.SimpleGrid, models.SpacingGeometric, 5, "100", "1600")
	m := newTestManager(t, cfg)

	require.Len(t, m.PriceGrids, 5)
	expected := []float64{100, 200, 400, 800, 1600}
	for i, want := range expected {
		assert.InDelta(t, want, m.PriceGrids[i].InexactFloat64(), want*1e-9,
			"grid %d: got %s", i, m.PriceGrids[i])
	}
	assert.InDelta(t, 400, m.CentralPrice.InexactFloat64(), 1e-6)
}

// TestGeometricSpacingEvenCount verifies that an even level count takes the
// mean of the two middle levels as the central price.
func TestGeometricSpacingEvenCount(t *testing.T) {
	cfg := testConfig(models.SimpleGrid, models.SpacingGeometric, 4, "100", "800")
	m := newTestManager(t, cfg)

	require.Len(t, m.PriceGrids, 4)
	// Levels are 100, 200, 400, 800; central is (200+400)/2.
	assert.InDelta(t, 300, m.CentralPrice.InexactFloat64(), 1e-6)
	assert.True(t, m.TriggerPrice().Equal(m.CentralPrice))
}

func TestOrderSizeForGridLevel(t *testing.T) {
	cfg := testConfig(models.SimpleGrid, models.SpacingArithmetic, 10, "100", "200")
	m := newTestManager(t, cfg)

	// 10000 across 10 levels at price 100 -> 10 units per level.
	size := m.OrderSizeForGridLevel(decimal.RequireFromString("10000"), decimal.RequireFromString("100"))
	assert.True(t, size.Equal(decimal.RequireFromString("10")), "got %s", size)
}

// TestInitialOrderQuantity verifies the 50% allocation target and both clamp
// edges.
func TestInitialOrderQuantity(t *testing.T) {
	cfg := testConfig(models.SimpleGrid, models.SpacingArithmetic, 10, "100", "200")
	m := newTestManager(t, cfg)
	price := decimal.RequireFromString("100")

	// No crypto yet: half the fiat is converted.
	qty := m.InitialOrderQuantity(decimal.RequireFromString("10000"), decimal.Zero, price)
	assert.True(t, qty.Equal(decimal.RequireFromString("50")), "got %s", qty)

	// Crypto already above target: nothing is bought.
	qty = m.InitialOrderQuantity(decimal.RequireFromString("1000"), decimal.RequireFromString("100"), price)
	assert.True(t, qty.IsZero(), "got %s", qty)

	// Target exceeds available fiat: clamped to the full fiat balance.
	qty = m.InitialOrderQuantity(decimal.RequireFromString("100"), decimal.Zero, decimal.RequireFromString("1"))
	assert.True(t, qty.LessThanOrEqual(decimal.RequireFromString("100")))
}

func TestPairGridLevels(t *testing.T) {
	cfg := testConfig(models.SimpleGrid, models.SpacingArithmetic, 10, "100", "200")
	m := newTestManager(t, cfg)

	buyLevel := m.Level(m.SortedBuyGrids[0])
	sellLevel := m.Level(m.SortedSellGrids[0])

	require.NoError(t, m.PairGridLevels(buyLevel, sellLevel, PairingSell))
	assert.Same(t, sellLevel, buyLevel.PairedSellLevel)
	assert.Same(t, buyLevel, sellLevel.PairedBuyLevel)

	require.NoError(t, m.PairGridLevels(sellLevel, buyLevel, PairingBuy))
	assert.Same(t, buyLevel, sellLevel.PairedBuyLevel)
	assert.Same(t, sellLevel, buyLevel.PairedSellLevel)

	err := m.PairGridLevels(buyLevel, sellLevel, PairingType("sideways"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPairingType)
}

func TestGridLevelBelow(t *testing.T) {
	cfg := testConfig(models.SimpleGrid, models.SpacingArithmetic, 5, "100", "200")
	m := newTestManager(t, cfg)

	second := m.Level(m.PriceGrids[1])
	below := m.GridLevelBelow(second)
	require.NotNil(t, below)
	assert.True(t, below.Price.Equal(m.PriceGrids[0]))

	bottom := m.Level(m.PriceGrids[0])
	assert.Nil(t, m.GridLevelBelow(bottom))
}

// TestMarkOrderPending verifies that order placement is the only transition
// into the waiting states and that the order lands on the level's log.
func TestMarkOrderPending(t *testing.T) {
	cfg := testConfig(models.SimpleGrid, models.SpacingArithmetic, 10, "100", "200")
	m := newTestManager(t, cfg)

	buyLevel := m.Level(m.SortedBuyGrids[0])
	buyOrder := &models.Order{ID: "1", Side: models.Buy, Price: buyLevel.Price}
	m.MarkOrderPending(buyLevel, buyOrder)
	assert.Equal(t, WaitingForBuyFill, buyLevel.State)
	assert.Same(t, buyOrder, buyLevel.LatestBuyOrder())

	sellLevel := m.Level(m.SortedSellGrids[0])
	sellOrder := &models.Order{ID: "2", Side: models.Sell, Price: sellLevel.Price}
	m.MarkOrderPending(sellLevel, sellOrder)
	assert.Equal(t, WaitingForSellFill, sellLevel.State)
	assert.Same(t, sellOrder, sellLevel.LatestSellOrder())
}
