package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// DefaultTaxRate is the standard 18% GST slab, applied to products imported
// without an explicit rate.
var DefaultTaxRate = decimal.New(18, -2)

// Product is a catalog item, keyed by its scannable barcode.
type Product struct {
	Barcode       string
	Name          string
	Brand         string
	Category      string
	Price         decimal.Decimal
	TaxRate       decimal.Decimal
	StockQuantity int
	Description   string
	ImageURL      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByBarcode(ctx context.Context, barcode string) (*Product, error)
	GetByBarcodes(ctx context.Context, barcodes []string) ([]Product, error)
	UpsertMany(ctx context.Context, products []Product) (int, error)
	Count(ctx context.Context) (int64, error)
}
