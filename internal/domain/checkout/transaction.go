package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for ledger lookups and writes.
var (
	// ErrNotFound is returned when no transaction matches the lookup.
	ErrNotFound = errors.New("transaction not found")
	// ErrDuplicatePaymentRef is returned when the payment reference has
	// already been recorded on another transaction.
	ErrDuplicatePaymentRef = errors.New("payment reference already used")
)

// ExitStatus tracks whether a transaction's exit pass has been consumed.
// The only legal transition is ExitPending to Exited, exactly once.
type ExitStatus string

const (
	ExitPending ExitStatus = "PENDING"
	Exited      ExitStatus = "EXITED"
)

// Line is the immutable snapshot of one cart line taken at checkout. Catalog
// edits after checkout never change it.
type Line struct {
	Barcode   string          `json:"barcode"`
	Name      string          `json:"name"`
	Brand     string          `json:"brand,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Transaction is a completed checkout. Rows are append-only; only the exit
// fields ever change, through Ledger.MarkExited.
type Transaction struct {
	ID           string
	CustomerName string
	Lines        []Line
	Subtotal     decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
	PaymentRef   string
	ExitCode     string
	ExitStatus   ExitStatus
	ExitedAt     *time.Time
	CreatedAt    time.Time
}

// AlreadyExitedError is returned by MarkExited when the exit pass was
// consumed earlier. ExitedAt is when the first verification happened.
type AlreadyExitedError struct {
	ExitedAt time.Time
}

func (e *AlreadyExitedError) Error() string {
	return "exit pass already used at " + e.ExitedAt.Format(time.RFC3339)
}

// Summary holds store-wide aggregates for the admin dashboard.
type Summary struct {
	TotalSales       decimal.Decimal
	TransactionCount int64
	PendingExits     int64
}

// Ledger defines persistence for completed transactions.
type Ledger interface {
	Insert(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id string) (*Transaction, error)
	GetByExitCode(ctx context.Context, code string) (*Transaction, error)
	// MarkExited flips the transaction's exit status from PENDING to EXITED
	// and returns the updated row. The transition must be atomic: of any
	// number of concurrent calls for one code, exactly one succeeds and the
	// rest get an AlreadyExitedError. Unknown codes return ErrNotFound.
	MarkExited(ctx context.Context, exitCode string, at time.Time) (*Transaction, error)
	ListRecent(ctx context.Context, limit int) ([]Transaction, error)
	SalesSummary(ctx context.Context) (*Summary, error)
}
