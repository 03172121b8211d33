package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/cart"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/catalog"
)

// Sentinel errors for checkout validation.
var ErrEmptyCart = fmt.Errorf("cart is empty")

// UnknownProductError indicates a scanned barcode with no catalog entry.
type UnknownProductError struct {
	Barcode string
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("no product for barcode %s", e.Barcode)
}

// InvalidQuantityError indicates a cart line with a non-positive quantity.
type InvalidQuantityError struct {
	Barcode string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for barcode %s", e.Barcode)
}

// Quote is a priced cart: per-line snapshots plus totals. It is what the
// cart preview shows and what checkout persists.
type Quote struct {
	Lines    []Line
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Request holds the input for completing a checkout.
type Request struct {
	CustomerName string
	// PaymentRef is the customer's payment reference (UPI UTR). When empty a
	// reference is generated.
	PaymentRef string
	Lines      []cart.Line
}

// Service turns carts into persisted transactions.
type Service struct {
	products catalog.Repository
	ledger   Ledger
	now      func() time.Time
}

// NewService creates a checkout Service with the required dependencies.
func NewService(products catalog.Repository, ledger Ledger) *Service {
	return &Service{
		products: products,
		ledger:   ledger,
		now:      time.Now,
	}
}

// Quote prices the given cart lines against the current catalog without
// persisting anything. Validation matches Checkout exactly.
//
// Totals: subtotal is the exact sum of quantity times unit price per line;
// tax is the sum of per-line tax rounded half-to-even at 2 decimals; total is
// subtotal plus rounded tax, so total always equals subtotal + tax exactly.
func (s *Service) Quote(ctx context.Context, lines []cart.Line) (*Quote, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	// Validate quantities and collect barcodes for a single batch fetch.
	barcodes := make([]string, len(lines))
	for i, line := range lines {
		if line.Quantity <= 0 {
			return nil, &InvalidQuantityError{Barcode: line.Barcode}
		}
		barcodes[i] = line.Barcode
	}

	fetched, err := s.products.GetByBarcodes(ctx, barcodes)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	byBarcode := make(map[string]catalog.Product, len(fetched))
	for _, p := range fetched {
		byBarcode[p.Barcode] = p
	}

	q := &Quote{
		Lines:    make([]Line, len(lines)),
		Subtotal: decimal.Zero,
		Tax:      decimal.Zero,
	}
	taxExact := decimal.Zero
	for i, line := range lines {
		p, ok := byBarcode[line.Barcode]
		if !ok {
			return nil, &UnknownProductError{Barcode: line.Barcode}
		}

		qty := decimal.NewFromInt(int64(line.Quantity))
		lineTotal := p.Price.Mul(qty)
		q.Lines[i] = Line{
			Barcode:   p.Barcode,
			Name:      p.Name,
			Brand:     p.Brand,
			Quantity:  line.Quantity,
			UnitPrice: p.Price,
			TaxRate:   p.TaxRate,
			LineTotal: lineTotal,
		}
		q.Subtotal = q.Subtotal.Add(lineTotal)
		taxExact = taxExact.Add(lineTotal.Mul(p.TaxRate))
	}

	q.Tax = taxExact.RoundBank(2)
	q.Total = q.Subtotal.Add(q.Tax)
	return q, nil
}

// Checkout prices the cart, assigns transaction and exit identifiers, and
// persists the result atomically. No state changes when any validation fails.
func (s *Service) Checkout(ctx context.Context, req Request) (*Transaction, error) {
	q, err := s.Quote(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stamp := now.Format("20060102150405")

	paymentRef := req.PaymentRef
	if paymentRef == "" {
		paymentRef = "PAY-" + shortID()
	}

	t := &Transaction{
		ID:           "TXN-" + stamp + "-" + shortID(),
		CustomerName: req.CustomerName,
		Lines:        q.Lines,
		Subtotal:     q.Subtotal,
		Tax:          q.Tax,
		Total:        q.Total,
		PaymentRef:   paymentRef,
		ExitCode:     "EXIT-" + stamp + "-" + shortID(),
		ExitStatus:   ExitPending,
		CreatedAt:    now,
	}
	if err := s.ledger.Insert(ctx, t); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	return t, nil
}

// shortID returns the 8-character UUID prefix used in transaction, exit, and
// payment identifiers.
func shortID() string {
	return uuid.New().String()[:8]
}
