package ledger

import (
	"testing"
	"time"

	"github.com/coinpurse/coinpurse/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func testUser(cash int64) *models.User {
	return &models.User{ID: 1, CashBalance: dec(cash)}
}

func testPosition() *models.Position {
	return &models.Position{UserID: 1, Symbol: "AAPL", PurchaseHistory: []models.PurchasePoint{}}
}

func assertDecEqual(t *testing.T, expected, actual decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, expected.Equal(actual), "%s: expected %s, got %s", msg, expected, actual)
}

func TestSettle_Buy(t *testing.T) {
	user := testUser(1000)
	pos := testPosition()
	now := time.Now()

	err := settle(user, pos, models.ActionBuy, dec(5), dec(100), now)
	require.NoError(t, err)

	assertDecEqual(t, dec(500), user.CashBalance, "cash balance")
	assertDecEqual(t, dec(5), pos.UnitsOwned, "units owned")
	assertDecEqual(t, dec(500), pos.MoneyInvested, "money invested")
	assertDecEqual(t, dec(100), pos.AverageCostBasis, "average cost basis")

	require.Len(t, pos.PurchaseHistory, 1)
	entry := pos.PurchaseHistory[0]
	assert.Equal(t, "buy", entry.Kind)
	assert.Equal(t, now, entry.Date)
	assertDecEqual(t, dec(100), entry.Price, "history price")
	assertDecEqual(t, dec(5), entry.Units, "history units")
}

func TestSettle_PartialSellKeepsCostBasis(t *testing.T) {
	user := testUser(1000)
	pos := testPosition()

	require.NoError(t, settle(user, pos, models.ActionBuy, dec(5), dec(100), time.Now()))
	require.NoError(t, settle(user, pos, models.ActionSell, dec(2), dec(120), time.Now()))

	// Proceeds at the sale price credited to cash: 500 + 240.
	assertDecEqual(t, dec(740), user.CashBalance, "cash balance")
	assertDecEqual(t, dec(3), pos.UnitsOwned, "units owned")
	// Cost basis removed at the average price, not the sale price.
	assertDecEqual(t, dec(300), pos.MoneyInvested, "money invested")
	assertDecEqual(t, dec(100), pos.AverageCostBasis, "average cost basis")

	require.Len(t, pos.PurchaseHistory, 2)
	entry := pos.PurchaseHistory[1]
	assert.Equal(t, "sell", entry.Kind)
	assertDecEqual(t, dec(120), entry.Price, "sell entry price is positive")
	assertDecEqual(t, dec(2), entry.Units, "sell entry units are positive")
}

func TestSettle_InsufficientFunds(t *testing.T) {
	user := testUser(50)
	pos := testPosition()

	err := settle(user, pos, models.ActionBuy, dec(1), dec(100), time.Now())
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// No state change on rejection.
	assertDecEqual(t, dec(50), user.CashBalance, "cash balance")
	assertDecEqual(t, dec(0), pos.UnitsOwned, "units owned")
	assert.Empty(t, pos.PurchaseHistory)
}

func TestSettle_InsufficientHoldings(t *testing.T) {
	t.Run("no position", func(t *testing.T) {
		user := testUser(1000)
		pos := testPosition()

		err := settle(user, pos, models.ActionSell, dec(1), dec(100), time.Now())
		require.ErrorIs(t, err, ErrInsufficientHoldings)
		assertDecEqual(t, dec(1000), user.CashBalance, "cash balance")
	})

	t.Run("more units than owned", func(t *testing.T) {
		user := testUser(1000)
		pos := testPosition()
		require.NoError(t, settle(user, pos, models.ActionBuy, dec(2), dec(100), time.Now()))

		err := settle(user, pos, models.ActionSell, dec(3), dec(100), time.Now())
		require.ErrorIs(t, err, ErrInsufficientHoldings)
		assertDecEqual(t, dec(800), user.CashBalance, "cash balance")
		assertDecEqual(t, dec(2), pos.UnitsOwned, "units owned")
		assert.Len(t, pos.PurchaseHistory, 1)
	})
}

func TestSettle_RoundTrip(t *testing.T) {
	// Buying u units at price p then selling u at p restores cash,
	// units and cost basis exactly.
	user := testUser(1000)
	pos := testPosition()

	require.NoError(t, settle(user, pos, models.ActionBuy, dec(7), dec(30), time.Now()))
	require.NoError(t, settle(user, pos, models.ActionSell, dec(7), dec(30), time.Now()))

	assertDecEqual(t, dec(1000), user.CashBalance, "cash balance")
	assertDecEqual(t, dec(0), pos.UnitsOwned, "units owned")
	assertDecEqual(t, dec(0), pos.MoneyInvested, "money invested")
	assertDecEqual(t, dec(0), pos.AverageCostBasis, "average cost basis")
	// The position record itself survives with its full history.
	assert.Len(t, pos.PurchaseHistory, 2)
}

func TestSettle_SequentialBuysAccumulate(t *testing.T) {
	user := testUser(10000)
	pos := testPosition()

	require.NoError(t, settle(user, pos, models.ActionBuy, dec(10), dec(100), time.Now()))
	require.NoError(t, settle(user, pos, models.ActionBuy, dec(10), dec(200), time.Now()))

	assertDecEqual(t, dec(20), pos.UnitsOwned, "units owned")
	assertDecEqual(t, dec(3000), pos.MoneyInvested, "money invested")
	assertDecEqual(t, dec(150), pos.AverageCostBasis, "average cost basis")
	assertDecEqual(t, dec(7000), user.CashBalance, "cash balance")
	assert.Len(t, pos.PurchaseHistory, 2)
}

func TestSettle_FractionalUnits(t *testing.T) {
	user := testUser(1000)
	pos := testPosition()

	half := decimal.NewFromFloat(0.5)
	require.NoError(t, settle(user, pos, models.ActionBuy, half, dec(100), time.Now()))

	assertDecEqual(t, dec(950), user.CashBalance, "cash balance")
	assertDecEqual(t, half, pos.UnitsOwned, "units owned")
	assertDecEqual(t, dec(50), pos.MoneyInvested, "money invested")
	assertDecEqual(t, dec(100), pos.AverageCostBasis, "average cost basis")
}

func TestSettle_InvalidAction(t *testing.T) {
	user := testUser(1000)
	pos := testPosition()

	err := settle(user, pos, models.TradeAction(99), dec(1), dec(1), time.Now())
	require.ErrorIs(t, err, models.ErrInvalidAction)
	assertDecEqual(t, dec(1000), user.CashBalance, "cash balance")
	assert.Empty(t, pos.PurchaseHistory)
}

func TestSettle_CostBasisInvariant(t *testing.T) {
	// averageCostBasis == moneyInvested / unitsOwned whenever units > 0.
	user := testUser(100000)
	pos := testPosition()

	steps := []struct {
		action models.TradeAction
		units  int64
		price  int64
	}{
		{models.ActionBuy, 10, 100},
		{models.ActionBuy, 5, 130},
		{models.ActionSell, 8, 150},
		{models.ActionBuy, 3, 90},
		{models.ActionSell, 10, 80},
	}
	for i, step := range steps {
		require.NoError(t, settle(user, pos, step.action, dec(step.units), dec(step.price), time.Now()), "step %d", i)

		assert.False(t, pos.UnitsOwned.IsNegative(), "step %d: units owned must stay non-negative", i)
		assert.False(t, user.CashBalance.IsNegative(), "step %d: cash must stay non-negative", i)
		if pos.UnitsOwned.IsPositive() {
			assertDecEqual(t, pos.MoneyInvested.Div(pos.UnitsOwned), pos.AverageCostBasis, "invariant")
		} else {
			assertDecEqual(t, dec(0), pos.AverageCostBasis, "invariant at zero units")
		}
	}
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "AAPL", NormalizeSymbol(" aapl "))
	assert.Equal(t, "TSLA", NormalizeSymbol("TSLA"))
	assert.Equal(t, "", NormalizeSymbol("  "))
}
