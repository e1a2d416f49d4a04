package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stockgate/internal/inventory"
	"stockgate/internal/orders"
	"stockgate/internal/products"
	"stockgate/internal/saga"
)

type stubOrders struct {
	orderID string
	outcome saga.Outcome
	err     error

	gotKey      string
	gotProduct  int
	gotQuantity int
}

func (s *stubOrders) CreateOrder(ctx context.Context, idempotencyKey string, productID, quantity int) (string, saga.Outcome, error) {
	s.gotKey = idempotencyKey
	s.gotProduct = productID
	s.gotQuantity = quantity
	return s.orderID, s.outcome, s.err
}

type stubCatalog struct {
	report products.StockReport
	err    error
}

func (s *stubCatalog) CheckStock(ctx context.Context, productID int) (products.StockReport, error) {
	return s.report, s.err
}

type countingOutcomes struct {
	labels []string
}

func (c *countingOutcomes) AddOutcome(outcome string) {
	c.labels = append(c.labels, outcome)
}

func newTestHandler(orderSvc OrderService, ledger inventory.Ledger, catalog StockChecker, outcomes OutcomeCounter) *Handler {
	return NewHandler(orderSvc, ledger, catalog, nil, outcomes, func(string, ...any) {})
}

func postJSON(t *testing.T, mux *http.ServeMux, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestCreateOrder_OutcomeStatusMapping(t *testing.T) {
	cases := []struct {
		outcome saga.Outcome
		status  int
	}{
		{saga.OutcomeCompleted, http.StatusOK},
		{saga.OutcomeRejectedNoStock, http.StatusBadRequest},
		{saga.OutcomeFailedAndCompensated, http.StatusUnprocessableEntity},
		{saga.OutcomeCriticalInconsistency, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			svc := &stubOrders{orderID: "order-1", outcome: tc.outcome}
			counter := &countingOutcomes{}
			mux := newTestHandler(svc, nil, nil, counter).Mux()

			rr := postJSON(t, mux, "/api/orders", `{"product_id":1,"quantity":2}`, map[string]string{IdempotencyHeader: "key-1"})
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}

			var resp createOrderResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal response: %v", err)
			}
			if resp.OrderID != "order-1" || resp.Outcome != tc.outcome {
				t.Fatalf("unexpected response %+v", resp)
			}
			if len(counter.labels) != 1 || counter.labels[0] != string(tc.outcome) {
				t.Fatalf("expected outcome counted once, got %v", counter.labels)
			}
			if svc.gotKey != "key-1" || svc.gotProduct != 1 || svc.gotQuantity != 2 {
				t.Fatalf("request not forwarded: key=%q product=%d quantity=%d", svc.gotKey, svc.gotProduct, svc.gotQuantity)
			}
		})
	}
}

func TestCreateOrder_ErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"missing key", orders.ErrIdempotencyKeyRequired, http.StatusBadRequest},
		{"invalid product", saga.ErrInvalidProduct, http.StatusBadRequest},
		{"invalid quantity", saga.ErrInvalidQuantity, http.StatusBadRequest},
		{"idempotency conflict", saga.ErrIdempotencyConflict, http.StatusConflict},
		{"in flight", orders.ErrTransactionInFlight, http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := newTestHandler(&stubOrders{err: tc.err}, nil, nil, nil).Mux()
			rr := postJSON(t, mux, "/api/orders", `{"product_id":1,"quantity":2}`, nil)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestCreateOrder_RejectsMalformedBody(t *testing.T) {
	mux := newTestHandler(&stubOrders{}, nil, nil, nil).Mux()
	rr := postJSON(t, mux, "/api/orders", `{"product_id":`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGetStock(t *testing.T) {
	ledger := inventory.NewMemoryLedger(inventory.SeedCatalog(), nil)
	mux := newTestHandler(&stubOrders{}, ledger, nil, nil).Mux()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/inventory/1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var item inventory.Item
	if err := json.Unmarshal(rr.Body.Bytes(), &item); err != nil {
		t.Fatalf("unmarshal item: %v", err)
	}
	if item.SKU != "LAPTOP-DELL" || item.Stock != 50 {
		t.Fatalf("unexpected item %+v", item)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/inventory/99", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/inventory/abc", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rr.Code)
	}
}

func TestReduceStock(t *testing.T) {
	ledger := inventory.NewMemoryLedger(inventory.SeedCatalog(), nil)
	mux := newTestHandler(&stubOrders{}, ledger, nil, nil).Mux()

	rr := postJSON(t, mux, "/api/inventory/reduce", `{"product_id":1,"quantity":10}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	item, _ := ledger.Stock(context.Background(), 1)
	if item.Stock != 40 {
		t.Fatalf("expected stock 40, got %d", item.Stock)
	}

	rr = postJSON(t, mux, "/api/inventory/reduce", `{"product_id":2,"quantity":1}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for insufficient stock, got %d", rr.Code)
	}

	rr = postJSON(t, mux, "/api/inventory/reduce", `{"product_id":99,"quantity":1}`, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rr.Code)
	}
}

func TestReleaseStock(t *testing.T) {
	ledger := inventory.NewMemoryLedger(inventory.SeedCatalog(), nil)
	mux := newTestHandler(&stubOrders{}, ledger, nil, nil).Mux()

	rr := postJSON(t, mux, "/api/inventory/release", `{"product_id":2,"quantity":3}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	item, _ := ledger.Stock(context.Background(), 2)
	if item.Stock != 3 {
		t.Fatalf("expected stock 3, got %d", item.Stock)
	}

	rr = postJSON(t, mux, "/api/inventory/release", `{"product_id":99,"quantity":1}`, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rr.Code)
	}
}

func TestCheckStock(t *testing.T) {
	catalog := &stubCatalog{report: products.StockReport{
		ProductID:     1,
		MarketingName: "Super Laptop Gamer",
		StockInfo:     inventory.Item{ProductID: 1, SKU: "LAPTOP-DELL", Stock: 50},
		Source:        "live",
	}}
	mux := newTestHandler(&stubOrders{}, nil, catalog, nil).Mux()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/products/1/check-stock", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var report products.StockReport
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if report.MarketingName != "Super Laptop Gamer" {
		t.Fatalf("unexpected report %+v", report)
	}

	catalog.err = saga.ErrUnknownProduct
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/products/99/check-stock", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
