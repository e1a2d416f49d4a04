package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stockgate/internal/saga"
)

// DefaultClientTimeout bounds each remote inventory call.
const DefaultClientTimeout = 5 * time.Second

// HTTPClient talks to a remote inventory service over its JSON API. It maps
// the wire contract (reduce/release endpoints) onto the reserve/release
// boundary the coordinator drives.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient constructs an HTTPClient for the given base URL. A zero
// timeout falls back to DefaultClientTimeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type stockMutation struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// Reserve asks the remote service to decrement stock.
func (c *HTTPClient) Reserve(ctx context.Context, productID, quantity int) error {
	return c.post(ctx, "/api/inventory/reduce", productID, quantity, true)
}

// Release asks the remote service to return previously reserved stock.
func (c *HTTPClient) Release(ctx context.Context, productID, quantity int) error {
	return c.post(ctx, "/api/inventory/release", productID, quantity, false)
}

// Stock fetches the current ledger entry for a product.
func (c *HTTPClient) Stock(ctx context.Context, productID int) (Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/inventory/%d", c.baseURL, productID), nil)
	if err != nil {
		return Item{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Item{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var item Item
		if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
			return Item{}, fmt.Errorf("decode inventory response: %w", err)
		}
		return item, nil
	case http.StatusNotFound:
		return Item{}, fmt.Errorf("stock product %d: %w", productID, saga.ErrUnknownProduct)
	default:
		return Item{}, fmt.Errorf("inventory returned status %d", resp.StatusCode)
	}
}

func (c *HTTPClient) post(ctx context.Context, path string, productID, quantity int, mapBadRequest bool) error {
	payload, err := json.Marshal(stockMutation{ProductID: productID, Quantity: quantity})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s product %d: %w", path, productID, saga.ErrUnknownProduct)
	case resp.StatusCode == http.StatusBadRequest && mapBadRequest:
		return fmt.Errorf("%s product %d: %w", path, productID, saga.ErrInsufficientStock)
	default:
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
}
