package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/coinpurse/coinpurse/internal/auth"
	"github.com/coinpurse/coinpurse/internal/config"
	"github.com/coinpurse/coinpurse/internal/db"
	"github.com/coinpurse/coinpurse/internal/ledger"
	"github.com/coinpurse/coinpurse/internal/models"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Seed the database with a demo user and a couple of settled trades
func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()

	database, err := db.NewDB(ctx, cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(ctx)

	if _, err := database.GetUserByLogin(ctx, "demo"); err == nil {
		fmt.Println("Database already has the demo user. No need to seed.")
		os.Exit(0)
	} else if !errors.Is(err, db.ErrUserNotFound) {
		log.Fatalf("Failed to check for demo user: %v", err)
	}

	authService := auth.NewAuthService(database, cfg.Auth.JWTSecret)
	user, err := authService.Register(ctx, "demo", "password123", "Demo", "User", "demo@coinpurse.dev")
	if err != nil {
		log.Fatalf("Failed to create demo user: %v", err)
	}

	accountLedger := ledger.NewLedger(database)
	if _, err := accountLedger.Deposit(ctx, user.ID, decimal.NewFromInt(10000)); err != nil {
		log.Fatalf("Failed to fund demo user: %v", err)
	}

	trades := []struct {
		symbol string
		action models.TradeAction
		units  decimal.Decimal
		price  decimal.Decimal
	}{
		{"AAPL", models.ActionBuy, decimal.NewFromInt(10), decimal.NewFromInt(150)},
		{"MSFT", models.ActionBuy, decimal.NewFromInt(5), decimal.NewFromInt(380)},
		{"AAPL", models.ActionSell, decimal.NewFromInt(3), decimal.NewFromInt(160)},
	}
	for _, tr := range trades {
		if _, err := accountLedger.ApplyTrade(ctx, user.ID, tr.symbol, tr.action, tr.units, tr.price); err != nil {
			log.Fatalf("Failed to seed %s trade for %s: %v", tr.action, tr.symbol, err)
		}
	}

	fmt.Printf("Seeded demo user %d (login 'demo', password 'password123')\n", user.ID)
}
