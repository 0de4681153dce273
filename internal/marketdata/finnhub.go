package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coinpurse/coinpurse/internal/models"
)

// ErrUpstream is returned when the provider call fails or returns data we
// cannot use. The gateway does not retry or cache; every call is a fresh
// pass-through.
var ErrUpstream = errors.New("market data provider unavailable")

const maxSearchResults = 10

// Client is a thin gateway to the Finnhub REST API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Finnhub client. baseURL should normally be
// "https://finnhub.io/api/v1"; it is a parameter so tests can point the
// client at a local server.
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// GetQuote fetches a price snapshot for symbol, normalizing Finnhub's
// single-letter field names.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	var payload struct {
		C  float64 `json:"c"`  // current price
		D  float64 `json:"d"`  // change
		Dp float64 `json:"dp"` // percent change
		H  float64 `json:"h"`  // day high
		L  float64 `json:"l"`  // day low
		O  float64 `json:"o"`  // day open
		Pc float64 `json:"pc"` // previous close
	}
	if err := c.getJSON(ctx, "/quote", url.Values{"symbol": {symbol}}, &payload); err != nil {
		return nil, err
	}

	// Finnhub answers unknown symbols with an all-zero payload.
	if payload.C == 0 && payload.Pc == 0 {
		return nil, fmt.Errorf("%w: no quote data for %q", ErrUpstream, symbol)
	}

	return &models.Quote{
		Symbol:        symbol,
		CurrentPrice:  payload.C,
		Change:        payload.D,
		PercentChange: payload.Dp,
		High:          payload.H,
		Low:           payload.L,
		Open:          payload.O,
		PreviousClose: payload.Pc,
	}, nil
}

// SearchSymbols forwards query to the provider's symbol search and filters
// results whose symbol or description contains the query, capped at
// maxSearchResults. An empty query yields an empty list without an
// upstream call.
func (c *Client) SearchSymbols(ctx context.Context, query string) ([]models.SymbolMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.SymbolMatch{}, nil
	}

	var payload struct {
		Count  int `json:"count"`
		Result []struct {
			Description   string `json:"description"`
			DisplaySymbol string `json:"displaySymbol"`
			Symbol        string `json:"symbol"`
			Type          string `json:"type"`
		} `json:"result"`
	}
	if err := c.getJSON(ctx, "/search", url.Values{"q": {query}}, &payload); err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	matches := make([]models.SymbolMatch, 0, maxSearchResults)
	for _, r := range payload.Result {
		if !strings.Contains(strings.ToLower(r.Symbol), needle) &&
			!strings.Contains(strings.ToLower(r.Description), needle) {
			continue
		}
		matches = append(matches, models.SymbolMatch{
			Symbol:      r.Symbol,
			Description: r.Description,
		})
		if len(matches) == maxSearchResults {
			break
		}
	}
	return matches, nil
}

// getJSON performs a GET against the provider and decodes the JSON body.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, data interface{}) error {
	params.Set("token", c.apiKey)
	addr := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %s", ErrUpstream, path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(data); err != nil {
		return fmt.Errorf("%w: malformed response: %v", ErrUpstream, err)
	}
	return nil
}
