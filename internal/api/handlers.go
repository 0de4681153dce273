package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coinpurse/coinpurse/internal/auth"
	"github.com/coinpurse/coinpurse/internal/db"
	"github.com/coinpurse/coinpurse/internal/ledger"
	"github.com/coinpurse/coinpurse/internal/marketdata"
	"github.com/coinpurse/coinpurse/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// MarketData is the slice of the market data gateway the handlers need.
type MarketData interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	SearchSymbols(ctx context.Context, query string) ([]models.SymbolMatch, error)
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Ledger      *ledger.Ledger
	AuthService *auth.AuthService
	Market      MarketData
}

// NewHandler creates a new handler
func NewHandler(l *ledger.Ledger, authService *auth.AuthService, market MarketData) *Handler {
	return &Handler{Ledger: l, AuthService: authService, Market: market}
}

// Register handles POST /api/auth/addUser
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login     string `json:"login"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Login == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" || req.Email == "" {
		respondError(w, http.StatusBadRequest, "Login, password, first name, last name and email are required")
		return
	}

	user, err := h.AuthService.Register(r.Context(), req.Login, req.Password, req.FirstName, req.LastName, req.Email)
	if err != nil {
		respondError(w, errStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "user created successfully",
		"userID":  user.ID,
	})
}

// Login handles POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Login == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Login and password required")
		return
	}

	user, token, err := h.AuthService.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		respondError(w, errStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Login successful",
		"userID":      user.ID,
		"firstName":   user.FirstName,
		"lastName":    user.LastName,
		"cashBalance": user.CashBalance,
		"token":       token,
	})
}

// Logout handles POST /api/auth/logout. Sessions are stateless, so this is
// just a confirmation for the client.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// RemoveUser handles POST /api/auth/removeUser
func (h *Handler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int `json:"userID"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == 0 {
		respondError(w, http.StatusBadRequest, "userID is required to remove user")
		return
	}

	if err := h.Ledger.RemoveUser(r.Context(), req.UserID); err != nil {
		respondError(w, errStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "User and associated positions deleted successfully",
	})
}

// UpdateBalance handles POST /api/auth/updateBalance (deposits)
func (h *Handler) UpdateBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int             `json:"userID"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == 0 || req.Amount.IsZero() {
		respondError(w, http.StatusBadRequest, "userID and amount are required to update cash balance")
		return
	}

	balance, err := h.Ledger.Deposit(r.Context(), req.UserID, req.Amount)
	if err != nil {
		respondError(w, errStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "User balance updated successfully",
		"newBalance": balance,
	})
}

// UpdateStock handles POST /api/stocks/update (buy/sell settlement)
func (h *Handler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int             `json:"userID"`
		Symbol string          `json:"symbol"`
		Action string          `json:"action"`
		Units  decimal.Decimal `json:"units"`
		Price  decimal.Decimal `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == 0 || req.Symbol == "" || req.Action == "" || req.Units.IsZero() || req.Price.IsZero() {
		respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	action, err := models.ParseTradeAction(req.Action)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.Ledger.ApplyTrade(r.Context(), req.UserID, req.Symbol, action, req.Units, req.Price)
	if err != nil {
		respondError(w, errStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Successfully updated stock position",
		"position":    result.Position,
		"cashBalance": result.CashBalance,
	})
}

// SearchPortfolio handles POST /api/auth/searchPortfolio: one position.
// A symbol the user never traded yields a zero-valued position, not an
// error.
func (h *Handler) SearchPortfolio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int    `json:"userID"`
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == 0 || req.Symbol == "" {
		respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	pos, err := h.Ledger.GetPosition(r.Context(), req.UserID, req.Symbol)
	if err != nil {
		respondError(w, errStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"moneyInvested":    pos.MoneyInvested,
		"unitsOwned":       pos.UnitsOwned,
		"averageCostBasis": pos.AverageCostBasis,
		"purchaseHistory":  pos.PurchaseHistory,
	})
}

// GetPortfolio handles POST /api/auth/portfolio: all positions for a user,
// optionally filtered by symbol substring.
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int    `json:"userID"`
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == 0 {
		respondError(w, http.StatusBadRequest, "userID is required")
		return
	}

	positions, err := h.Ledger.GetPortfolio(r.Context(), req.UserID, req.Symbol)
	if err != nil {
		respondError(w, errStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"positions": positions})
}

// GetQuote handles GET /api/quote/{symbol}
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	quote, err := h.Market.GetQuote(r.Context(), symbol)
	if err != nil {
		respondError(w, errStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, quote)
}

// SearchNewStock handles POST /api/auth/searchNewStock
func (h *Handler) SearchNewStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	matches, err := h.Market.SearchSymbols(r.Context(), req.Query)
	if err != nil {
		respondError(w, errStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"result": matches})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// JWTAuthMiddleware verifies session tokens on protected routes
func (h *Handler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			respondError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}
		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}

		userID, err := h.AuthService.UserFromToken(tokenString)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), "user_id", userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// errStatus maps service errors to HTTP status codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, db.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrDuplicateLogin), errors.Is(err, db.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientHoldings),
		errors.Is(err, ledger.ErrInvalidTrade),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidAction):
		return http.StatusBadRequest
	case errors.Is(err, marketdata.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
