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

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// generateOrderIDRequest is the JSON request body for POST /orders/id.
type generateOrderIDRequest struct {
	PairName string          `json:"pair_name"`
	Creator  string          `json:"creator"`
	Side     string          `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// submitOrderRequest is the JSON request body for POST /orders.
type submitOrderRequest struct {
	PairName  string          `json:"pair_name"`
	OrderID   string          `json:"order_id"`
	Side      string          `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Creator   string          `json:"creator"`
	Signature string          `json:"signature"`
}

// fillResponse is one execution in the submit response.
type fillResponse struct {
	MakerOrderID string          `json:"maker_order_id"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// submitOrderResponse is the JSON response for POST /orders.
type submitOrderResponse struct {
	OrderID string         `json:"order_id"`
	Status  string         `json:"status"`
	Rested  bool           `json:"rested"`
	Fills   []fillResponse `json:"fills"`
	TxHash  *string        `json:"tx_hash,omitempty"`
	TradeID *string        `json:"trade_id,omitempty"`
}

// orderResponse is one order in listing responses.
type orderResponse struct {
	OrderID   string          `json:"order_id"`
	PairName  string          `json:"pair_name"`
	Side      string          `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Creator   string          `json:"creator"`
	Status    string          `json:"status"`
	CreatedAt string          `json:"created_at"`
}

// GenerateOrderID handles POST /orders/id.
func (h *OrderHandler) GenerateOrderID(w http.ResponseWriter, r *http.Request) {
	var req generateOrderIDRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	id, err := h.orderSvc.GenerateOrderID(service.GenerateOrderIDRequest{
		PairName: req.PairName,
		Creator:  req.Creator,
		Side:     domain.Side(req.Side),
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"order_id": id})
}

// SubmitOrder handles POST /orders.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := h.orderSvc.SubmitOrder(r.Context(), service.SubmitOrderRequest{
		PairName:  req.PairName,
		OrderID:   req.OrderID,
		Side:      domain.Side(req.Side),
		Price:     req.Price,
		Quantity:  req.Quantity,
		Creator:   req.Creator,
		Signature: req.Signature,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildSubmitResponse(result))
}

// CancelOrder handles DELETE /orders/{order_id}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	if err := h.orderSvc.CancelOrder(r.Context(), orderID); err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"order_id": orderID,
		"status":   string(domain.OrderStatusCancelled),
	})
}

// OpenOrders handles GET /orders/creator/{address}.
func (h *OrderHandler) OpenOrders(w http.ResponseWriter, r *http.Request) {
	creator := chi.URLParam(r, "address")

	orders, err := h.orderSvc.OpenOrders(r.Context(), creator)
	if err != nil {
		mapError(w, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderResponse{
			OrderID:   o.OrderID,
			PairName:  o.PairName,
			Side:      string(o.Side),
			Price:     o.Price,
			Quantity:  o.Quantity,
			Creator:   o.Creator,
			Status:    string(o.Status),
			CreatedAt: o.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

func buildSubmitResponse(result *service.SubmitOrderResult) submitOrderResponse {
	resp := submitOrderResponse{
		OrderID: result.Order.OrderID,
		Status:  string(statusAfterMatch(result)),
		Rested:  result.Match.Rested,
		Fills:   make([]fillResponse, 0, len(result.Match.Fills)),
	}
	for _, f := range result.Match.Fills {
		resp.Fills = append(resp.Fills, fillResponse{
			MakerOrderID: f.MakerID,
			Price:        f.Price,
			Quantity:     f.Quantity,
		})
	}
	if result.Trade != nil {
		resp.TxHash = &result.Trade.TxHash
		resp.TradeID = &result.Trade.TradeID
	}
	return resp
}

// statusAfterMatch derives the taker's status from the match result.
func statusAfterMatch(result *service.SubmitOrderResult) domain.OrderStatus {
	res := result.Match
	if len(res.Fills) == 0 {
		return domain.OrderStatusOpen
	}
	if takerIn(res.Done, result.Order.OrderID) {
		return domain.OrderStatusMatched
	}
	return domain.OrderStatusPartiallyFilled
}

func takerIn(done []book.ProcessedOrder, orderID string) bool {
	for _, d := range done {
		if d.OrderID == orderID {
			return true
		}
	}
	return false
}
