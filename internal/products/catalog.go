package products

import (
	"context"
	"fmt"

	"stockgate/internal/inventory"
)

// StockReader is the slice of the inventory surface the catalog needs.
type StockReader interface {
	Stock(ctx context.Context, productID int) (inventory.Item, error)
}

// StockReport enriches the raw inventory snapshot with catalog data.
type StockReport struct {
	ProductID     int            `json:"product_id"`
	MarketingName string         `json:"marketing_name"`
	StockInfo     inventory.Item `json:"stock_info"`
	Source        string         `json:"source"`
}

// Catalog serves product-facing views over the stock ledger.
type Catalog struct {
	stock StockReader
	names map[int]string
}

// DefaultNames returns the marketing names for the seeded products.
func DefaultNames() map[int]string {
	return map[int]string{
		1: "Super Laptop Gamer",
		2: "Super Mouse Gamer",
	}
}

// NewCatalog constructs a Catalog. A nil names map falls back to DefaultNames.
func NewCatalog(stock StockReader, names map[int]string) *Catalog {
	if names == nil {
		names = DefaultNames()
	}
	return &Catalog{stock: stock, names: names}
}

// CheckStock fetches the live stock for a product and wraps it with the
// catalog's marketing name. Unknown products propagate the ledger error.
func (c *Catalog) CheckStock(ctx context.Context, productID int) (StockReport, error) {
	item, err := c.stock.Stock(ctx, productID)
	if err != nil {
		return StockReport{}, fmt.Errorf("check stock for product %d: %w", productID, err)
	}

	name, ok := c.names[productID]
	if !ok {
		name = item.SKU
	}
	return StockReport{
		ProductID:     productID,
		MarketingName: name,
		StockInfo:     item,
		Source:        "live",
	}, nil
}
