package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// User represents a registered account holder. CashBalance is uninvested
// funds and never goes negative.
type User struct {
	ID           int             `json:"userID"`
	Login        string          `json:"login"`
	PasswordHash string          `json:"-"`
	FirstName    string          `json:"firstName"`
	LastName     string          `json:"lastName"`
	Email        string          `json:"email"`
	CashBalance  decimal.Decimal `json:"cashBalance"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// PurchasePoint is one entry in a position's append-only trade log.
// Price and Units are always positive; Kind distinguishes buys from sells.
type PurchasePoint struct {
	Kind  string          `json:"kind"` // "buy" or "sell"
	Date  time.Time       `json:"date"`
	Price decimal.Decimal `json:"price"`
	Units decimal.Decimal `json:"units"`
}

// Position is a user's aggregate holding in one symbol. A position with
// zero units is kept as a record of having once held the symbol.
type Position struct {
	ID               int             `json:"id"`
	UserID           int             `json:"userID"`
	Symbol           string          `json:"symbol"`
	MoneyInvested    decimal.Decimal `json:"moneyInvested"`
	UnitsOwned       decimal.Decimal `json:"unitsOwned"`
	AverageCostBasis decimal.Decimal `json:"averageCostBasis"`
	PurchaseHistory  []PurchasePoint `json:"purchaseHistory"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// TradeAction is the closed set of settlement actions.
type TradeAction int

const (
	ActionBuy TradeAction = iota + 1
	ActionSell
)

// ErrInvalidAction is returned when a request carries an unknown action.
var ErrInvalidAction = fmt.Errorf("action must be 'buy' or 'sell'")

// ParseTradeAction maps the wire value of an action field to a TradeAction.
func ParseTradeAction(s string) (TradeAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return ActionBuy, nil
	case "sell":
		return ActionSell, nil
	default:
		return 0, ErrInvalidAction
	}
}

func (a TradeAction) String() string {
	switch a {
	case ActionBuy:
		return "buy"
	case ActionSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Quote is a normalized price snapshot from the market data provider.
type Quote struct {
	Symbol        string  `json:"symbol"`
	CurrentPrice  float64 `json:"currentPrice"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percentChange"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Open          float64 `json:"open"`
	PreviousClose float64 `json:"previousClose"`
}

// SymbolMatch is one result of a symbol search.
type SymbolMatch struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
}
