package exitpass

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/checkout"
)

// Result classifies a verification attempt.
type Result string

const (
	// ResultApproved means this verification consumed the pass; the customer
	// may leave.
	ResultApproved Result = "APPROVED"
	// ResultAlreadyUsed means the pass was consumed earlier and the attempt
	// needs manual review.
	ResultAlreadyUsed Result = "ALREADY_USED"
	// ResultNotFound means the pass is unknown or malformed.
	ResultNotFound Result = "NOT_FOUND"
)

// Verification is the outcome shown to door staff.
type Verification struct {
	Result Result
	// Transaction is set for APPROVED so staff can see what was paid for.
	Transaction *checkout.Transaction
	// ExitedAt is set for ALREADY_USED: when the pass was first consumed.
	ExitedAt *time.Time
}

// Service verifies exit passes against the transaction ledger.
type Service struct {
	ledger checkout.Ledger
	now    func() time.Time
}

// NewService creates an exit verification Service.
func NewService(ledger checkout.Ledger) *Service {
	return &Service{ledger: ledger, now: time.Now}
}

// Verify parses the scanned pass and attempts the PENDING to EXITED
// transition. The transition is a compare-and-set in the ledger, so two
// concurrent verifications of one pass produce exactly one APPROVED; the
// loser sees ALREADY_USED. Unknown and malformed passes change nothing.
//
// The error return is reserved for storage failures; every decidable outcome
// is a Verification.
func (s *Service) Verify(ctx context.Context, rawPass string) (*Verification, error) {
	code, ok := ParsePass(rawPass)
	if !ok {
		return &Verification{Result: ResultNotFound}, nil
	}

	t, err := s.ledger.MarkExited(ctx, code, s.now())
	if err != nil {
		var usedErr *checkout.AlreadyExitedError
		if errors.As(err, &usedErr) {
			return &Verification{Result: ResultAlreadyUsed, ExitedAt: &usedErr.ExitedAt}, nil
		}
		if errors.Is(err, checkout.ErrNotFound) {
			return &Verification{Result: ResultNotFound}, nil
		}
		return nil, errors.Wrap(err, "mark exited")
	}

	return &Verification{Result: ResultApproved, Transaction: t}, nil
}
