// Package invoice renders human-readable artifacts for completed
// transactions.
package invoice

import (
	"fmt"
	"strings"

	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/checkout"
)

// Renderer produces an invoice artifact for a transaction. Implementations
// must not mutate the transaction.
type Renderer interface {
	Render(t *checkout.Transaction) ([]byte, error)
	ContentType() string
}

const lineWidth = 46

var (
	doubleRule = strings.Repeat("=", lineWidth)
	singleRule = strings.Repeat("-", lineWidth)
)

// TextRenderer renders the fixed-width store receipt handed to customers.
type TextRenderer struct{}

// NewTextRenderer returns the plain-text receipt renderer.
func NewTextRenderer() *TextRenderer {
	return &TextRenderer{}
}

func (*TextRenderer) ContentType() string { return "text/plain; charset=utf-8" }

// Render produces the receipt. Amounts use the "Rs." prefix; the item table
// truncates long names so rows stay aligned.
func (*TextRenderer) Render(t *checkout.Transaction) ([]byte, error) {
	var b strings.Builder

	b.WriteString(doubleRule + "\n")
	b.WriteString(center("RETAIL360 INVOICE") + "\n")
	b.WriteString(doubleRule + "\n")
	fmt.Fprintf(&b, "Transaction ID: %s\n", t.ID)
	fmt.Fprintf(&b, "Date: %s\n", t.CreatedAt.Format("2006-01-02T15:04:05"))
	fmt.Fprintf(&b, "Customer: %s\n", orNA(t.CustomerName))
	fmt.Fprintf(&b, "Payment Ref: %s\n", orNA(t.PaymentRef))
	b.WriteString(singleRule + "\n")
	fmt.Fprintf(&b, "%-25s | %4s | %8s | %8s\n", "Product Name", "Qty", "Price", "Total")
	b.WriteString(singleRule + "\n")

	for _, line := range t.Lines {
		name := line.Name
		if line.Brand != "" {
			name += " (" + line.Brand + ")"
		}
		fmt.Fprintf(&b, "%-25s | %4d | %8s | %8s\n",
			truncate(name, 24), line.Quantity,
			line.UnitPrice.StringFixed(2), line.LineTotal.StringFixed(2))
	}

	b.WriteString(singleRule + "\n")
	fmt.Fprintf(&b, "Subtotal: %33s\n", "Rs. "+t.Subtotal.StringFixed(2))
	fmt.Fprintf(&b, "Tax: %38s\n", "Rs. "+t.Tax.StringFixed(2))
	b.WriteString(singleRule + "\n")
	fmt.Fprintf(&b, "TOTAL: %36s\n", "Rs. "+t.Total.StringFixed(2))
	b.WriteString(doubleRule + "\n")
	b.WriteString(center("Thank you for shopping with us!") + "\n")
	b.WriteString(doubleRule + "\n")

	return []byte(b.String()), nil
}

// Noop renders nothing; wired when invoice generation is disabled.
type Noop struct{}

func (Noop) Render(_ *checkout.Transaction) ([]byte, error) { return nil, nil }

func (Noop) ContentType() string { return "text/plain; charset=utf-8" }

func center(s string) string {
	if len(s) >= lineWidth {
		return s
	}
	left := (lineWidth - len(s)) / 2
	return strings.Repeat(" ", left) + s
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
