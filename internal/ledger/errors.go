package ledger

import (
	"errors"
	"fmt"

	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// Validation errors. They are returned before anything is written and are
// never worth retrying unchanged.
var (
	ErrInvalidAmount = money.ErrInvalidAmount
	ErrSplitMismatch = money.ErrSplitMismatch

	// ErrUnknownParticipant is returned when a payer, split participant or
	// settlement party is not a member of the group.
	ErrUnknownParticipant = errors.New("unknown participant")

	// ErrSettlementExceedsBalance is returned when completing a settlement
	// would leave the payer owed money by the payee and overpayment is not
	// allowed.
	ErrSettlementExceedsBalance = errors.New("settlement exceeds balance")

	// ErrSelfSettlement is returned for a settlement whose payer and payee
	// are the same member.
	ErrSelfSettlement = errors.New("settlement payer and payee are the same")

	// ErrInvalidTransition is returned when a settlement is not pending.
	ErrInvalidTransition = errors.New("invalid settlement transition")

	// ErrParticipantHasBalance is returned when removing a member who still
	// has a non-zero balance with someone, or who is named by an expense or
	// a pending settlement that could give them one.
	ErrParticipantHasBalance = errors.New("participant has outstanding balance")
)

// Not-found errors. All of them match ErrNotFound with errors.Is.
var (
	ErrNotFound           = storage.ErrNotFound
	ErrGroupNotFound      = fmt.Errorf("group %w", storage.ErrNotFound)
	ErrExpenseNotFound    = fmt.Errorf("expense %w", storage.ErrNotFound)
	ErrSettlementNotFound = fmt.Errorf("settlement %w", storage.ErrNotFound)
)

// Transient errors. The operation had no effect and may be retried.
var (
	// ErrLockTimeout is returned when the group's write lock could not be
	// acquired within the configured timeout.
	ErrLockTimeout = errors.New("lock timeout")

	// ErrTransactionConflict is returned when the datastore kept rejecting
	// the write transaction after all retries.
	ErrTransactionConflict = errors.New("transaction conflict")
)

// IsRetryable reports whether err is transient, so the caller may retry the
// same request after backing off.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrTransactionConflict)
}

var rejections = []error{
	ErrInvalidAmount,
	ErrSplitMismatch,
	ErrUnknownParticipant,
	ErrSettlementExceedsBalance,
	ErrSelfSettlement,
	ErrInvalidTransition,
	ErrParticipantHasBalance,
	ErrNotFound,
}

// isRejection reports whether err is a caller mistake rather than an
// infrastructure failure.
func isRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// notFound rewrites a storage not-found error into the given domain error.
func notFound(err error, domain error, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain, id)
	}
	return err
}
