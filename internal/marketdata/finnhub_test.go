package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetQuote(t *testing.T) {
	var gotSymbol, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quote", r.URL.Path)
		gotSymbol = r.URL.Query().Get("symbol")
		gotToken = r.URL.Query().Get("token")
		fmt.Fprint(w, `{"c":261.74,"d":1.48,"dp":0.5689,"h":263.31,"l":260.68,"o":261.07,"pc":260.26}`)
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL)
	quote, err := client.GetQuote(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", gotSymbol, "symbol must be uppercased before querying")
	assert.Equal(t, "test-key", gotToken)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, 261.74, quote.CurrentPrice)
	assert.Equal(t, 1.48, quote.Change)
	assert.Equal(t, 0.5689, quote.PercentChange)
	assert.Equal(t, 263.31, quote.High)
	assert.Equal(t, 260.68, quote.Low)
	assert.Equal(t, 261.07, quote.Open)
	assert.Equal(t, 260.26, quote.PreviousClose)
}

func TestClient_GetQuote_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "unknown symbol returns all zeros",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"c":0,"d":null,"dp":null,"h":0,"l":0,"o":0,"pc":0}`)
			},
		},
		{
			name: "provider error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `not json`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := NewClient("test-key", srv.URL)
			_, err := client.GetQuote(context.Background(), "AAPL")
			require.ErrorIs(t, err, ErrUpstream)
		})
	}
}

func TestClient_GetQuote_EmptySymbol(t *testing.T) {
	client := NewClient("test-key", "http://localhost:0")
	_, err := client.GetQuote(context.Background(), "  ")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUpstream, "empty symbol is a caller error, not an upstream one")
}

func TestClient_SearchSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "apple", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"count":4,"result":[
			{"description":"APPLE INC","displaySymbol":"AAPL","symbol":"AAPL","type":"Common Stock"},
			{"description":"APPLE HOSPITALITY REIT INC","displaySymbol":"APLE","symbol":"APLE","type":"REIT"},
			{"description":"MAUI LAND & PINEAPPLE CO INC","displaySymbol":"MLP","symbol":"MLP","type":"Common Stock"},
			{"description":"BANANA CORP","displaySymbol":"BNNA","symbol":"BNNA","type":"Common Stock"}
		]}`)
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL)
	matches, err := client.SearchSymbols(context.Background(), "apple")
	require.NoError(t, err)

	// BNNA matches neither symbol nor description and is filtered out;
	// MLP matches on description ("PINEAPPLE").
	require.Len(t, matches, 3)
	assert.Equal(t, "AAPL", matches[0].Symbol)
	assert.Equal(t, "APPLE INC", matches[0].Description)
	assert.Equal(t, "APLE", matches[1].Symbol)
	assert.Equal(t, "MLP", matches[2].Symbol)
}

func TestClient_SearchSymbols_CapsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var results []string
		for i := 0; i < 25; i++ {
			results = append(results, fmt.Sprintf(`{"description":"APPLE %d","displaySymbol":"AAPL%d","symbol":"AAPL%d","type":"Common Stock"}`, i, i, i))
		}
		fmt.Fprintf(w, `{"count":25,"result":[%s]}`, strings.Join(results, ","))
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL)
	matches, err := client.SearchSymbols(context.Background(), "apple")
	require.NoError(t, err)
	assert.Len(t, matches, maxSearchResults)
}

func TestClient_SearchSymbols_EmptyQuery(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL)
	matches, err := client.SearchSymbols(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Zero(t, calls, "empty query must not hit the provider")
}

func TestClient_SearchSymbols_Upstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL)
	_, err := client.SearchSymbols(context.Background(), "apple")
	require.ErrorIs(t, err, ErrUpstream)
}
