package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coinpurse/coinpurse/internal/ledger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the SPA is served from a different origin
	},
}

const quoteInterval = 5 * time.Second

// subscription is the message a client sends to choose watched symbols.
type subscription struct {
	Symbols []string `json:"symbols"`
}

// StreamQuotes handles GET /ws/quotes. The client sends a subscription
// message with the symbols it wants; the server pushes fresh quotes for
// them on a fixed interval until the connection closes.
func (h *Handler) StreamQuotes(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	var (
		mu      sync.Mutex
		symbols []string
	)
	done := make(chan struct{})

	// Reader: tracks subscription changes and detects disconnect.
	go func() {
		defer close(done)
		for {
			var sub subscription
			if err := conn.ReadJSON(&sub); err != nil {
				return
			}
			mu.Lock()
			symbols = make([]string, 0, len(sub.Symbols))
			for _, s := range sub.Symbols {
				if s = ledger.NormalizeSymbol(s); s != "" {
					symbols = append(symbols, s)
				}
			}
			mu.Unlock()
		}
	}()

	ticker := time.NewTicker(quoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			mu.Lock()
			watched := make([]string, len(symbols))
			copy(watched, symbols)
			mu.Unlock()

			for _, symbol := range watched {
				quote, err := h.Market.GetQuote(r.Context(), symbol)
				if err != nil {
					log.Printf("Failed to fetch quote for %s: %v", symbol, err)
					continue
				}
				if err := conn.WriteJSON(quote); err != nil {
					return
				}
			}
		}
	}
}
