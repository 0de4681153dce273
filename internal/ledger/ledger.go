package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coinpurse/coinpurse/internal/db"
	"github.com/coinpurse/coinpurse/internal/models"

	"github.com/shopspring/decimal"
)

// Business-rule errors surfaced by trade settlement.
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("not enough units to sell")
	ErrInvalidTrade         = errors.New("units and price must be positive")
	ErrInvalidAmount        = errors.New("amount must be positive")
)

// Ledger owns user cash balances and per-symbol positions. All trade
// settlement goes through ApplyTrade, which serializes concurrent trades
// for the same user via a row lock.
type Ledger struct {
	DB *db.DB
}

// NewLedger creates a new account ledger service
func NewLedger(database *db.DB) *Ledger {
	return &Ledger{DB: database}
}

// TradeResult is the state returned to the caller after settlement.
type TradeResult struct {
	Position    *models.Position
	CashBalance decimal.Decimal
}

// ApplyTrade validates and settles one buy or sell, mutating the user's
// cash balance and the (user, symbol) position as a single atomic unit.
// Validation failures roll back with no writes.
func (l *Ledger) ApplyTrade(ctx context.Context, userID int, symbol string, action models.TradeAction, units, price decimal.Decimal) (*TradeResult, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" || !units.IsPositive() || !price.IsPositive() {
		return nil, ErrInvalidTrade
	}

	tx, err := l.DB.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Row lock: a second trade for this user blocks here until commit.
	user, err := l.DB.GetUserForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	pos, err := l.DB.GetPositionTx(ctx, tx, userID, symbol)
	if errors.Is(err, db.ErrPositionNotFound) {
		// Absence is valid: treated as zero holdings, created lazily on buy.
		pos = emptyPosition(userID, symbol)
	} else if err != nil {
		return nil, err
	}

	if err := settle(user, pos, action, units, price, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := l.DB.UpsertPositionTx(ctx, tx, pos); err != nil {
		return nil, err
	}
	if err := l.DB.SetCashBalanceTx(ctx, tx, userID, user.CashBalance); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &TradeResult{Position: pos, CashBalance: user.CashBalance}, nil
}

// settle applies the accounting rules for one trade to in-memory state.
// On buys the full cost moves from cash into the position; on sells cost
// basis is removed at the average price so the remaining basis per unit is
// unchanged, while proceeds at the sale price are credited to cash.
func settle(user *models.User, pos *models.Position, action models.TradeAction, units, price decimal.Decimal, now time.Time) error {
	total := price.Mul(units)

	switch action {
	case models.ActionBuy:
		if user.CashBalance.LessThan(total) {
			return ErrInsufficientFunds
		}
		pos.MoneyInvested = pos.MoneyInvested.Add(total)
		pos.UnitsOwned = pos.UnitsOwned.Add(units)
		user.CashBalance = user.CashBalance.Sub(total)

	case models.ActionSell:
		if pos.UnitsOwned.LessThan(units) {
			return ErrInsufficientHoldings
		}
		if units.Equal(pos.UnitsOwned) {
			// Full exit: remove the entire basis rather than leaving a
			// division-rounding residue.
			pos.MoneyInvested = decimal.Zero
			pos.UnitsOwned = decimal.Zero
		} else {
			avgPrice := pos.MoneyInvested.Div(pos.UnitsOwned)
			pos.UnitsOwned = pos.UnitsOwned.Sub(units)
			pos.MoneyInvested = pos.MoneyInvested.Sub(avgPrice.Mul(units))
		}
		user.CashBalance = user.CashBalance.Add(total)

	default:
		return models.ErrInvalidAction
	}

	pos.PurchaseHistory = append(pos.PurchaseHistory, models.PurchasePoint{
		Kind:  action.String(),
		Date:  now,
		Price: price,
		Units: units,
	})

	if pos.UnitsOwned.IsPositive() {
		pos.AverageCostBasis = pos.MoneyInvested.Div(pos.UnitsOwned)
	} else {
		pos.AverageCostBasis = decimal.Zero
	}
	return nil
}

// GetPosition returns the user's position in symbol. Absence of a position
// is not exceptional: a zero-valued position is returned.
func (l *Ledger) GetPosition(ctx context.Context, userID int, symbol string) (*models.Position, error) {
	if _, err := l.DB.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	symbol = NormalizeSymbol(symbol)
	pos, err := l.DB.GetPosition(ctx, userID, symbol)
	if errors.Is(err, db.ErrPositionNotFound) {
		return emptyPosition(userID, symbol), nil
	}
	if err != nil {
		return nil, err
	}
	return pos, nil
}

// GetPortfolio returns all of the user's positions, optionally filtered by
// a case-insensitive substring match on symbol.
func (l *Ledger) GetPortfolio(ctx context.Context, userID int, filter string) ([]models.Position, error) {
	if _, err := l.DB.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	positions, err := l.DB.GetUserPositions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return positions, nil
	}

	needle := strings.ToUpper(strings.TrimSpace(filter))
	filtered := make([]models.Position, 0, len(positions))
	for _, pos := range positions {
		if strings.Contains(pos.Symbol, needle) {
			filtered = append(filtered, pos)
		}
	}
	return filtered, nil
}

// Deposit adds funds to the user's cash balance. There is no upper bound.
func (l *Ledger) Deposit(ctx context.Context, userID int, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return l.DB.AddToBalance(ctx, userID, amount)
}

// RemoveUser deletes the user and cascades deletion of their positions.
func (l *Ledger) RemoveUser(ctx context.Context, userID int) error {
	return l.DB.DeleteUser(ctx, userID)
}

// NormalizeSymbol uppercases and trims a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func emptyPosition(userID int, symbol string) *models.Position {
	return &models.Position{
		UserID:          userID,
		Symbol:          symbol,
		PurchaseHistory: []models.PurchasePoint{},
	}
}
