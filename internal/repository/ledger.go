package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/checkout"
)

const (
	transactionColumns = `id, customer_name, lines, subtotal, tax, total, payment_ref, exit_code, exit_status, exited_at, created_at`

	insertTransactionSQL = `INSERT INTO transactions
		(id, customer_name, lines, subtotal, tax, total, payment_ref, exit_code, exit_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	getTransactionByIDSQL = `SELECT ` + transactionColumns + `
		FROM transactions WHERE id = $1`

	getTransactionByExitCodeSQL = `SELECT ` + transactionColumns + `
		FROM transactions WHERE exit_code = $1`

	// The PENDING guard makes the status flip a compare-and-set: of any
	// number of concurrent verifications, exactly one update matches.
	markExitedSQL = `UPDATE transactions
		SET exit_status = 'EXITED', exited_at = $2
		WHERE exit_code = $1 AND exit_status = 'PENDING'
		RETURNING ` + transactionColumns

	listRecentTransactionsSQL = `SELECT ` + transactionColumns + `
		FROM transactions ORDER BY created_at DESC LIMIT $1`

	salesSummarySQL = `SELECT
			COALESCE(SUM(total), 0),
			COUNT(*),
			COUNT(*) FILTER (WHERE exit_status = 'PENDING')
		FROM transactions`

	uniqueViolationCode = "23505"
)

var _ checkout.Ledger = (*LedgerRepository)(nil)

// LedgerRepository implements checkout.Ledger backed by PostgreSQL.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository returns a LedgerRepository that uses the given pool.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Insert persists a completed checkout. The line snapshots are serialized to
// JSON for storage in the JSONB column, so the whole transaction is a single
// atomic row write.
func (r *LedgerRepository) Insert(ctx context.Context, t *checkout.Transaction) error {
	linesJSON, err := json.Marshal(t.Lines)
	if err != nil {
		return fmt.Errorf("marshaling transaction lines: %w", err)
	}

	_, err = r.pool.Exec(ctx, insertTransactionSQL,
		t.ID, t.CustomerName, linesJSON,
		t.Subtotal, t.Tax, t.Total,
		t.PaymentRef, t.ExitCode, string(t.ExitStatus), t.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode && pgErr.ConstraintName == "transactions_payment_ref_key" {
			return checkout.ErrDuplicatePaymentRef
		}
		return fmt.Errorf("inserting transaction %q: %w", t.ID, err)
	}

	return nil
}

// GetByID returns a single transaction by its identifier.
func (r *LedgerRepository) GetByID(ctx context.Context, id string) (*checkout.Transaction, error) {
	return r.getOne(ctx, getTransactionByIDSQL, id)
}

// GetByExitCode returns the transaction holding the given exit code.
func (r *LedgerRepository) GetByExitCode(ctx context.Context, code string) (*checkout.Transaction, error) {
	return r.getOne(ctx, getTransactionByExitCodeSQL, code)
}

func (r *LedgerRepository) getOne(ctx context.Context, sql, arg string) (*checkout.Transaction, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting transaction %q: %w", arg, err)
	}

	t, err := pgx.CollectExactlyOneRow(rows, scanTransaction)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkout.ErrNotFound
		}
		return nil, fmt.Errorf("getting transaction %q: %w", arg, err)
	}
	return &t, nil
}

// MarkExited attempts the PENDING to EXITED transition. When the conditional
// update matches no row the code is either unknown (ErrNotFound) or already
// consumed (AlreadyExitedError with the original exit time).
func (r *LedgerRepository) MarkExited(ctx context.Context, exitCode string, at time.Time) (*checkout.Transaction, error) {
	rows, err := r.pool.Query(ctx, markExitedSQL, exitCode, at)
	if err != nil {
		return nil, fmt.Errorf("marking transaction exited %q: %w", exitCode, err)
	}

	t, err := pgx.CollectExactlyOneRow(rows, scanTransaction)
	if err == nil {
		return &t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("marking transaction exited %q: %w", exitCode, err)
	}

	// CAS missed: look at the row to tell not-found from already-used.
	existing, err := r.GetByExitCode(ctx, exitCode)
	if err != nil {
		return nil, err
	}
	if existing.ExitStatus == checkout.Exited && existing.ExitedAt != nil {
		return nil, &checkout.AlreadyExitedError{ExitedAt: *existing.ExitedAt}
	}
	return nil, checkout.ErrNotFound
}

// ListRecent returns the newest transactions, most recent first.
func (r *LedgerRepository) ListRecent(ctx context.Context, limit int) ([]checkout.Transaction, error) {
	rows, err := r.pool.Query(ctx, listRecentTransactionsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent transactions: %w", err)
	}
	return pgx.CollectRows(rows, scanTransaction)
}

// SalesSummary returns the store-wide aggregates for the admin dashboard.
func (r *LedgerRepository) SalesSummary(ctx context.Context) (*checkout.Summary, error) {
	var s checkout.Summary
	err := r.pool.QueryRow(ctx, salesSummarySQL).Scan(
		&s.TotalSales, &s.TransactionCount, &s.PendingExits,
	)
	if err != nil {
		return nil, fmt.Errorf("computing sales summary: %w", err)
	}
	return &s, nil
}

func scanTransaction(row pgx.CollectableRow) (checkout.Transaction, error) {
	var (
		t         checkout.Transaction
		linesJSON []byte
		status    string
	)
	err := row.Scan(
		&t.ID, &t.CustomerName, &linesJSON,
		&t.Subtotal, &t.Tax, &t.Total,
		&t.PaymentRef, &t.ExitCode, &status, &t.ExitedAt, &t.CreatedAt,
	)
	if err != nil {
		return t, err
	}
	t.ExitStatus = checkout.ExitStatus(status)
	if err := json.Unmarshal(linesJSON, &t.Lines); err != nil {
		return t, fmt.Errorf("unmarshaling transaction lines: %w", err)
	}
	return t, nil
}
