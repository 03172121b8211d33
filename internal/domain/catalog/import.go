package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrMissingHeader is returned when the CSV input has no header row or the
// header lacks a required column.
var ErrMissingHeader = errors.New("csv header with barcode, product_name and price columns required")

// RowError reports a single rejected CSV row. Row numbers are 1-based and
// include the header line, matching what a spreadsheet shows.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

// ImportResult summarizes a catalog import: how many products were written
// and which rows were rejected. Rejected rows never abort the import.
type ImportResult struct {
	Written int
	Skipped []RowError
}

// Importer parses product CSV exports and upserts them into the catalog.
type Importer struct {
	products Repository
}

// NewImporter creates an Importer writing through the given repository.
func NewImporter(products Repository) *Importer {
	return &Importer{products: products}
}

// Import reads a CSV stream and upserts every parseable row. Malformed rows
// are collected in the result and skipped; only header or storage failures
// abort the whole import.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	products, skipped, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}

	written := 0
	if len(products) > 0 {
		written, err = im.products.UpsertMany(ctx, products)
		if err != nil {
			return nil, fmt.Errorf("upsert products: %w", err)
		}
	}

	return &ImportResult{Written: written, Skipped: skipped}, nil
}

// Columns maps recognized header names to their index in the input.
// Column order is free; unknown columns are ignored.
type Columns map[string]int

func (c Columns) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ParseHeader builds the column map for a CSV header row. The POS export
// calls the name column product_name; a plain name column is accepted too.
func ParseHeader(header []string) (Columns, error) {
	cols := make(Columns, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["name"]; !ok {
		if i, ok := cols["product_name"]; ok {
			cols["name"] = i
		}
	}
	for _, required := range []string{"barcode", "name", "price"} {
		if _, ok := cols[required]; !ok {
			return nil, ErrMissingHeader
		}
	}
	return cols, nil
}

// ParseCSV decodes rows of (barcode, product_name, brand, category, price,
// tax_rate, stock_quantity, description, image_url) in any column order.
// Rows failing validation are returned as RowErrors alongside the parsed
// products.
func ParseCSV(r io.Reader) ([]Product, []RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, nil, ErrMissingHeader
	}
	cols, err := ParseHeader(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		products []Product
		skipped  []RowError
		seen     = make(map[string]int)
		rowNum   = 1
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			skipped = append(skipped, RowError{Row: rowNum, Err: errors.New("malformed csv row")})
			continue
		}

		p, err := cols.ParseRow(row)
		if err != nil {
			skipped = append(skipped, RowError{Row: rowNum, Err: err})
			continue
		}

		// Later rows win on duplicate barcodes, mirroring upsert semantics.
		if i, ok := seen[p.Barcode]; ok {
			products[i] = p
			continue
		}
		seen[p.Barcode] = len(products)
		products = append(products, p)
	}

	return products, skipped, nil
}

// ParseRow decodes and validates one data row against the column map.
func (c Columns) ParseRow(row []string) (Product, error) {
	p := Product{
		Barcode:     c.get(row, "barcode"),
		Name:        c.get(row, "name"),
		Brand:       c.get(row, "brand"),
		Category:    c.get(row, "category"),
		Description: c.get(row, "description"),
		ImageURL:    c.get(row, "image_url"),
	}
	if p.Barcode == "" {
		return Product{}, errors.New("barcode is required")
	}
	if p.Name == "" {
		return Product{}, errors.New("product name is required")
	}

	price, err := decimal.NewFromString(c.get(row, "price"))
	if err != nil {
		return Product{}, errors.Wrap(err, "price")
	}
	if price.IsNegative() {
		return Product{}, errors.New("price must not be negative")
	}
	p.Price = price

	p.TaxRate = DefaultTaxRate
	if raw := c.get(row, "tax_rate"); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return Product{}, errors.Wrap(err, "tax_rate")
		}
		if rate.IsNegative() || rate.GreaterThan(decimal.New(1, 0)) {
			return Product{}, errors.New("tax_rate must be between 0 and 1")
		}
		p.TaxRate = rate
	}

	if raw := c.get(row, "stock_quantity"); raw != "" {
		qty, err := strconv.Atoi(raw)
		if err != nil {
			return Product{}, errors.Wrap(err, "stock_quantity")
		}
		if qty < 0 {
			return Product{}, errors.New("stock_quantity must not be negative")
		}
		p.StockQuantity = qty
	}

	return p, nil
}
