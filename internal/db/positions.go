package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coinpurse/coinpurse/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const positionColumns = `id, user_id, symbol, money_invested, units_owned,
	average_cost_basis, purchase_history, created_at, updated_at`

// GetPosition retrieves one (user, symbol) position. Returns
// ErrPositionNotFound when the user has never traded the symbol.
func (db *DB) GetPosition(ctx context.Context, userID int, symbol string) (*models.Position, error) {
	return scanPosition(db.Pool.QueryRow(ctx,
		"SELECT "+positionColumns+" FROM positions WHERE user_id = $1 AND symbol = $2",
		userID, symbol))
}

// GetUserPositions retrieves all positions for a user ordered by symbol.
func (db *DB) GetUserPositions(ctx context.Context, userID int) ([]models.Position, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT "+positionColumns+" FROM positions WHERE user_id = $1 ORDER BY symbol",
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	defer rows.Close()

	positions := make([]models.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}
	return positions, nil
}

// GetUserForUpdate locks the user row for the duration of tx. This is the
// serialization point for concurrent trades by the same user.
func (db *DB) GetUserForUpdate(ctx context.Context, tx pgx.Tx, userID int) (*models.User, error) {
	user := &models.User{}
	err := tx.QueryRow(ctx,
		`SELECT id, login, password_hash, first_name, last_name, email, cash_balance, created_at
		 FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(
		&user.ID, &user.Login, &user.PasswordHash, &user.FirstName,
		&user.LastName, &user.Email, &user.CashBalance, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return user, nil
}

// GetPositionTx reads a position inside tx.
func (db *DB) GetPositionTx(ctx context.Context, tx pgx.Tx, userID int, symbol string) (*models.Position, error) {
	return scanPosition(tx.QueryRow(ctx,
		"SELECT "+positionColumns+" FROM positions WHERE user_id = $1 AND symbol = $2",
		userID, symbol))
}

// UpsertPositionTx writes the full position state inside tx, creating the
// row on first buy of a symbol.
func (db *DB) UpsertPositionTx(ctx context.Context, tx pgx.Tx, pos *models.Position) error {
	history, err := json.Marshal(pos.PurchaseHistory)
	if err != nil {
		return fmt.Errorf("failed to encode purchase history: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO positions (user_id, symbol, money_invested, units_owned, average_cost_basis, purchase_history)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, symbol)
		DO UPDATE SET
			money_invested = EXCLUDED.money_invested,
			units_owned = EXCLUDED.units_owned,
			average_cost_basis = EXCLUDED.average_cost_basis,
			purchase_history = EXCLUDED.purchase_history,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		pos.UserID, pos.Symbol, pos.MoneyInvested, pos.UnitsOwned,
		pos.AverageCostBasis, history).Scan(&pos.ID, &pos.CreatedAt, &pos.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}
	return nil
}

// SetCashBalanceTx writes the user's settled cash balance inside tx.
func (db *DB) SetCashBalanceTx(ctx context.Context, tx pgx.Tx, userID int, balance decimal.Decimal) error {
	_, err := tx.Exec(ctx, "UPDATE users SET cash_balance = $1 WHERE id = $2", balance, userID)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

func scanPosition(row pgx.Row) (*models.Position, error) {
	pos := &models.Position{}
	var history []byte
	err := row.Scan(&pos.ID, &pos.UserID, &pos.Symbol, &pos.MoneyInvested,
		&pos.UnitsOwned, &pos.AverageCostBasis, &history, &pos.CreatedAt, &pos.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPositionNotFound
		}
		return nil, fmt.Errorf("failed to scan position: %w", err)
	}
	if err := json.Unmarshal(history, &pos.PurchaseHistory); err != nil {
		return nil, fmt.Errorf("failed to decode purchase history: %w", err)
	}
	return pos, nil
}
