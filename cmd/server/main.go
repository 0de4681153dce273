package main

import (
	"context"
	"log"
	"net/http"

	"github.com/coinpurse/coinpurse/internal/api"
	"github.com/coinpurse/coinpurse/internal/auth"
	"github.com/coinpurse/coinpurse/internal/config"
	"github.com/coinpurse/coinpurse/internal/db"
	"github.com/coinpurse/coinpurse/internal/ledger"
	"github.com/coinpurse/coinpurse/internal/marketdata"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

// Main entry point: wires config, database, services and the HTTP server
func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()

	// Initialize database connection
	database, err := db.NewDB(ctx, cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(ctx)

	// Initialize services
	accountLedger := ledger.NewLedger(database)
	authService := auth.NewAuthService(database, cfg.Auth.JWTSecret)
	market := marketdata.NewClient(cfg.Finnhub.APIKey, cfg.Finnhub.BaseURL)

	// Initialize API handlers
	handler := api.NewHandler(accountLedger, authService, market)

	// Set up HTTP router
	r := chi.NewRouter()

	// Enable CORS for the SPA
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handler.HealthCheck)

	// Public endpoints
	r.Post("/api/auth/addUser", handler.Register)
	r.Post("/api/auth/login", handler.Login)
	r.Post("/api/auth/logout", handler.Logout)
	r.Get("/api/quote/{symbol}", handler.GetQuote)
	r.Post("/api/auth/searchNewStock", handler.SearchNewStock)

	// WebSocket quote stream
	r.Get("/ws/quotes", handler.StreamQuotes)

	// Protected endpoints (require JWT)
	r.Group(func(r chi.Router) {
		r.Use(handler.JWTAuthMiddleware)
		r.Post("/api/stocks/update", handler.UpdateStock)
		r.Post("/api/auth/updateBalance", handler.UpdateBalance)
		r.Post("/api/auth/searchPortfolio", handler.SearchPortfolio)
		r.Post("/api/auth/portfolio", handler.GetPortfolio)
		r.Post("/api/auth/removeUser", handler.RemoveUser)
	})

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	log.Printf("Starting server on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
