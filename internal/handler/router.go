package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dexlab-io/matchbook/internal/service"
)

// NewRouter creates a chi router with all routes registered, request
// logging, and Content-Type validation middleware.
func NewRouter(
	orderSvc *service.OrderService,
	pairSvc *service.PairService,
	marketSvc *service.MarketService,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	// Create handlers.
	orderH := NewOrderHandler(orderSvc)
	pairH := NewPairHandler(pairSvc)
	marketH := NewMarketHandler(marketSvc)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Order routes.
	r.Post("/orders/id", orderH.GenerateOrderID)
	r.Post("/orders", orderH.SubmitOrder)
	r.Delete("/orders/{order_id}", orderH.CancelOrder)
	r.Get("/orders/creator/{address}", orderH.OpenOrders)

	// Pair routes.
	r.Post("/pairs", pairH.CreatePair)
	r.Get("/pairs/{pair}/book", pairH.GetBook)

	// Market data routes.
	r.Get("/marketprice", marketH.MarketPrices)
	r.Get("/pairs/{pair}/marketprice", marketH.MarketPrice)
	r.Get("/pairs/{pair}/candles", marketH.Candles)

	return r
}

// requestLogging returns middleware that logs each request's method,
// path, status code, and duration.
func requestLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST,
// PUT, and PATCH requests. If the Content-Type header doesn't start
// with "application/json", it returns 400 Bad Request before the
// handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
