package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dexlab-io/matchbook/internal/domain"
	"github.com/dexlab-io/matchbook/internal/market"
	"github.com/dexlab-io/matchbook/internal/service"
)

// MarketHandler handles HTTP requests for market data endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// candleResponse is one OHLC bucket in the candles response.
type candleResponse struct {
	Timestamp string          `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Trades    int             `json:"trades"`
}

// MarketPrice handles GET /pairs/{pair}/marketprice.
func (h *MarketHandler) MarketPrice(w http.ResponseWriter, r *http.Request) {
	pairName := chi.URLParam(r, "pair")

	price, err := h.marketSvc.MarketPrice(pairName)
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"pair":  pairName,
		"price": price,
	})
}

// MarketPrices handles GET /marketprice.
func (h *MarketHandler) MarketPrices(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.marketSvc.MarketPrices())
}

// Candles handles GET /pairs/{pair}/candles?width=30s.
func (h *MarketHandler) Candles(w http.ResponseWriter, r *http.Request) {
	pairName := chi.URLParam(r, "pair")

	var width time.Duration
	if raw := r.URL.Query().Get("width"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			mapError(w, &domain.ValidationError{Message: "width must be a positive duration"})
			return
		}
		width = parsed
	}

	candles, err := h.marketSvc.Candles(r.Context(), pairName, width)
	if err != nil {
		mapError(w, err)
		return
	}

	out := make([]candleResponse, 0, len(candles))
	for _, c := range candles {
		out = append(out, buildCandleResponse(c))
	}
	WriteJSON(w, http.StatusOK, out)
}

func buildCandleResponse(c market.Candle) candleResponse {
	return candleResponse{
		Timestamp: c.Timestamp.UTC().Format(time.RFC3339),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Trades:    c.Count,
	}
}
