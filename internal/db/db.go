package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/coinpurse/coinpurse/internal/models"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store-level errors, mapped to HTTP statuses at the API layer.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrPositionNotFound = errors.New("position not found")
	ErrDuplicateLogin   = errors.New("login already taken")
	ErrDuplicateEmail   = errors.New("email already registered")
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB initializes a new database connection pool with decimal support
func NewDB(ctx context.Context, connString string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close(ctx context.Context) error {
	db.Pool.Close()
	return nil
}

// CreateUser inserts a new user, rejecting duplicate logins and emails.
func (db *DB) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	created := &models.User{}
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash, first_name, last_name, email, cash_balance)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, login, password_hash, first_name, last_name, email, cash_balance, created_at`,
		user.Login, user.PasswordHash, user.FirstName, user.LastName, user.Email, user.CashBalance).Scan(
		&created.ID, &created.Login, &created.PasswordHash, &created.FirstName,
		&created.LastName, &created.Email, &created.CashBalance, &created.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "users_email_key":
				return nil, ErrDuplicateEmail
			case "users_login_key":
				return nil, ErrDuplicateLogin
			}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// GetUserByLogin retrieves a user by login
func (db *DB) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	return db.scanUser(db.Pool.QueryRow(ctx,
		`SELECT id, login, password_hash, first_name, last_name, email, cash_balance, created_at
		 FROM users WHERE login = $1`, login))
}

// GetUserByID retrieves a user by id
func (db *DB) GetUserByID(ctx context.Context, userID int) (*models.User, error) {
	return db.scanUser(db.Pool.QueryRow(ctx,
		`SELECT id, login, password_hash, first_name, last_name, email, cash_balance, created_at
		 FROM users WHERE id = $1`, userID))
}

func (db *DB) scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Login, &user.PasswordHash, &user.FirstName,
		&user.LastName, &user.Email, &user.CashBalance, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// AddToBalance atomically adds amount to the user's cash balance and
// returns the new balance.
func (db *DB) AddToBalance(ctx context.Context, userID int, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := db.Pool.QueryRow(ctx,
		"UPDATE users SET cash_balance = cash_balance + $1 WHERE id = $2 RETURNING cash_balance",
		amount, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to update balance: %w", err)
	}
	return balance, nil
}

// DeleteUser removes a user and all of their positions in one transaction.
func (db *DB) DeleteUser(ctx context.Context, userID int) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM positions WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("failed to delete positions: %w", err)
	}

	tag, err := tx.Exec(ctx, "DELETE FROM users WHERE id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
