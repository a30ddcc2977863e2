package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dexlab-io/matchbook/internal/book"
	"github.com/dexlab-io/matchbook/internal/domain"
	"github.com/dexlab-io/matchbook/internal/service"
)

// PairHandler handles HTTP requests for pair endpoints.
type PairHandler struct {
	pairSvc *service.PairService
}

// NewPairHandler creates a new PairHandler.
func NewPairHandler(pairSvc *service.PairService) *PairHandler {
	return &PairHandler{pairSvc: pairSvc}
}

// createPairRequest is the JSON request body for POST /pairs.
type createPairRequest struct {
	BaseTokenSymbol  string `json:"base_token_symbol"`
	QuoteTokenSymbol string `json:"quote_token_symbol"`
	BaseToken        string `json:"base_token"`
	QuoteToken       string `json:"quote_token"`
	BaseTokenType    int64  `json:"base_token_type"`
	QuoteTokenType   int64  `json:"quote_token_type"`
	TokenID          *int64 `json:"token_id"`
}

// pairResponse is the JSON representation of a pair.
type pairResponse struct {
	ID               int64  `json:"id"`
	PairName         string `json:"pair_name"`
	BaseTokenSymbol  string `json:"base_token_symbol"`
	QuoteTokenSymbol string `json:"quote_token_symbol"`
	BaseToken        string `json:"base_token"`
	QuoteToken       string `json:"quote_token"`
	BaseTokenType    int64  `json:"base_token_type"`
	QuoteTokenType   int64  `json:"quote_token_type"`
	TokenID          *int64 `json:"token_id"`
	CreatedAt        string `json:"created_at"`
}

// levelResponse is one price level of the book.
type levelResponse struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Orders   int             `json:"orders"`
}

// bookResponse is the JSON response for GET /pairs/{pair}/book.
type bookResponse struct {
	Pair pairResponse    `json:"pair"`
	Bids []levelResponse `json:"bids"`
	Asks []levelResponse `json:"asks"`
}

// CreatePair handles POST /pairs.
func (h *PairHandler) CreatePair(w http.ResponseWriter, r *http.Request) {
	var req createPairRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	pair, err := h.pairSvc.CreatePair(r.Context(), service.CreatePairRequest{
		BaseTokenSymbol:  req.BaseTokenSymbol,
		QuoteTokenSymbol: req.QuoteTokenSymbol,
		BaseToken:        req.BaseToken,
		QuoteToken:       req.QuoteToken,
		BaseTokenType:    req.BaseTokenType,
		QuoteTokenType:   req.QuoteTokenType,
		TokenID:          req.TokenID,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildPairResponse(pair))
}

// GetBook handles GET /pairs/{pair}/book.
func (h *PairHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	pairName := chi.URLParam(r, "pair")

	pair, bids, asks, err := h.pairSvc.BookStatus(pairName)
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, bookResponse{
		Pair: buildPairResponse(pair),
		Bids: buildLevelResponses(bids),
		Asks: buildLevelResponses(asks),
	})
}

func buildPairResponse(p *domain.Pair) pairResponse {
	return pairResponse{
		ID:               p.ID,
		PairName:         p.PairName,
		BaseTokenSymbol:  p.BaseTokenSymbol,
		QuoteTokenSymbol: p.QuoteTokenSymbol,
		BaseToken:        p.BaseToken,
		QuoteToken:       p.QuoteToken,
		BaseTokenType:    p.BaseTokenType,
		QuoteTokenType:   p.QuoteTokenType,
		TokenID:          p.TokenID,
		CreatedAt:        p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func buildLevelResponses(levels []book.Level) []levelResponse {
	out := make([]levelResponse, 0, len(levels))
	for _, l := range levels {
		out = append(out, levelResponse{Price: l.Price, Quantity: l.Quantity, Orders: l.Orders})
	}
	return out
}
