package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"stockgate/internal/inventory"
	"stockgate/internal/orders"
	"stockgate/internal/products"
	"stockgate/internal/saga"
)

// IdempotencyHeader carries the caller-supplied deduplication key.
const IdempotencyHeader = "Idempotency-Key"

// OrderService is the order surface the HTTP adapter depends on.
type OrderService interface {
	CreateOrder(ctx context.Context, idempotencyKey string, productID, quantity int) (string, saga.Outcome, error)
}

// StockChecker is the catalog surface the HTTP adapter depends on.
type StockChecker interface {
	CheckStock(ctx context.Context, productID int) (products.StockReport, error)
}

// WSUpgrader upgrades an HTTP request to a websocket subscription.
type WSUpgrader interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// OutcomeCounter records finished transactions by outcome label.
type OutcomeCounter interface {
	AddOutcome(outcome string)
}

// Handler serves the public HTTP API.
type Handler struct {
	orders   OrderService
	ledger   inventory.Ledger
	catalog  StockChecker
	ws       WSUpgrader
	outcomes OutcomeCounter
	logf     func(format string, args ...any)
}

// NewHandler constructs a Handler. catalog, ws, outcomes and logf may be nil.
func NewHandler(orderSvc OrderService, ledger inventory.Ledger, catalog StockChecker, ws WSUpgrader, outcomes OutcomeCounter, logf func(format string, args ...any)) *Handler {
	if logf == nil {
		logf = log.Printf
	}
	return &Handler{
		orders:   orderSvc,
		ledger:   ledger,
		catalog:  catalog,
		ws:       ws,
		outcomes: outcomes,
		logf:     logf,
	}
}

type createOrderRequest struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

type createOrderResponse struct {
	OrderID string       `json:"order_id"`
	Outcome saga.Outcome `json:"outcome"`
	Message string       `json:"message"`
}

type stockMutation struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Mux lays out the API routes. The returned mux is unwrapped; callers add
// middleware via Wrap.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("GET /api/inventory/{id}", h.getStock)
	mux.HandleFunc("POST /api/inventory/reduce", h.reduceStock)
	mux.HandleFunc("POST /api/inventory/release", h.releaseStock)
	mux.HandleFunc("GET /api/products/{id}/check-stock", h.checkStock)
	if h.ws != nil {
		mux.HandleFunc("GET /ws/orders", h.ws.ServeWS)
	}
	return mux
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key := r.Header.Get(IdempotencyHeader)
	orderID, outcome, err := h.orders.CreateOrder(r.Context(), key, req.ProductID, req.Quantity)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	if h.outcomes != nil {
		h.outcomes.AddOutcome(string(outcome))
	}
	writeJSON(w, outcomeStatus(outcome), createOrderResponse{
		OrderID: orderID,
		Outcome: outcome,
		Message: outcomeMessage(outcome),
	})
}

func (h *Handler) writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrIdempotencyKeyRequired),
		errors.Is(err, saga.ErrInvalidProduct),
		errors.Is(err, saga.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, saga.ErrIdempotencyConflict),
		errors.Is(err, orders.ErrTransactionInFlight):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logf("create order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r)
	if !ok {
		return
	}

	item, err := h.ledger.Stock(r.Context(), productID)
	if err != nil {
		h.writeLedgerError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) reduceStock(w http.ResponseWriter, r *http.Request) {
	var req stockMutation
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.ledger.Reserve(r.Context(), req.ProductID, req.Quantity); err != nil {
		h.writeLedgerError(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "stock reserved"})
}

func (h *Handler) releaseStock(w http.ResponseWriter, r *http.Request) {
	var req stockMutation
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.ledger.Release(r.Context(), req.ProductID, req.Quantity); err != nil {
		h.writeLedgerError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "stock released"})
}

func (h *Handler) checkStock(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeError(w, http.StatusNotFound, "catalog not configured")
		return
	}
	productID, ok := pathID(w, r)
	if !ok {
		return
	}

	report, err := h.catalog.CheckStock(r.Context(), productID)
	if err != nil {
		if errors.Is(err, saga.ErrUnknownProduct) {
			writeError(w, http.StatusNotFound, "unknown product")
			return
		}
		h.logf("check stock: %v", err)
		writeError(w, http.StatusBadGateway, "inventory unavailable")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) writeLedgerError(w http.ResponseWriter, err error, mapInsufficient bool) {
	switch {
	case errors.Is(err, saga.ErrUnknownProduct):
		writeError(w, http.StatusNotFound, "unknown product")
	case mapInsufficient && errors.Is(err, saga.ErrInsufficientStock):
		writeError(w, http.StatusBadRequest, "insufficient stock")
	default:
		h.logf("ledger: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return id, true
}

func outcomeStatus(outcome saga.Outcome) int {
	switch outcome {
	case saga.OutcomeCompleted:
		return http.StatusOK
	case saga.OutcomeRejectedNoStock:
		return http.StatusBadRequest
	case saga.OutcomeFailedAndCompensated:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func outcomeMessage(outcome saga.Outcome) string {
	switch outcome {
	case saga.OutcomeCompleted:
		return "order created and paid"
	case saga.OutcomeRejectedNoStock:
		return "could not reserve stock, transaction aborted"
	case saga.OutcomeFailedAndCompensated:
		return "payment failed, stock was returned, retry later"
	default:
		return "critical system error, contact support"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
