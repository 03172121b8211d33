package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/catalog"
)

const (
	productColumns = `barcode, name, brand, category, price, tax_rate, stock_quantity, description, image_url, created_at, updated_at`

	listProductsSQL = `SELECT ` + productColumns + `
		FROM products ORDER BY name`

	getProductByBarcodeSQL = `SELECT ` + productColumns + `
		FROM products WHERE barcode = $1`

	getProductsByBarcodesSQL = `SELECT ` + productColumns + `
		FROM products WHERE barcode = ANY($1)`

	upsertProductSQL = `INSERT INTO products
		(barcode, name, brand, category, price, tax_rate, stock_quantity, description, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (barcode) DO UPDATE SET
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			tax_rate = EXCLUDED.tax_rate,
			stock_quantity = EXCLUDED.stock_quantity,
			description = EXCLUDED.description,
			image_url = EXCLUDED.image_url,
			updated_at = now()`

	countProductsSQL = `SELECT COUNT(*) FROM products`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// List returns the whole catalog ordered by product name.
func (r *CatalogRepository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByBarcode returns a single product by its barcode.
func (r *CatalogRepository) GetByBarcode(ctx context.Context, barcode string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByBarcodeSQL, barcode)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", barcode, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", barcode, err)
	}
	return &p, nil
}

// GetByBarcodes returns products matching any of the given barcodes.
func (r *CatalogRepository) GetByBarcodes(ctx context.Context, barcodes []string) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByBarcodesSQL, barcodes)
	if err != nil {
		return nil, fmt.Errorf("getting products by barcodes: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// UpsertMany writes all products in one transaction; either every row lands
// or none do. Returns the number of rows written.
func (r *CatalogRepository) UpsertMany(ctx context.Context, products []catalog.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(upsertProductSQL,
			p.Barcode, p.Name, p.Brand, p.Category,
			p.Price, p.TaxRate, p.StockQuantity, p.Description, p.ImageURL,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for _, p := range products {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("upserting product %q: %w", p.Barcode, err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("closing upsert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing upsert transaction: %w", err)
	}
	return len(products), nil
}

// Count returns the number of products in the catalog.
func (r *CatalogRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, countProductsSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return count, nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(
		&p.Barcode, &p.Name, &p.Brand, &p.Category,
		&p.Price, &p.TaxRate, &p.StockQuantity,
		&p.Description, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
