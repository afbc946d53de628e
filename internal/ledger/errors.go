package ledger

import (
	"errors"

	"github.com/mmynk/splitledger/internal/calculator"
)

// Sentinel errors for ledger operations. Use errors.Is to classify.
var (
	// ErrInvalidSplit means the split input is malformed. Rejected before any write.
	ErrInvalidSplit = calculator.ErrInvalidSplit

	// ErrUnknownParticipant means the payer, creator or a split user is not a (current or
	// historical) member of the group. Rejected before any write.
	ErrUnknownParticipant = errors.New("ledger: unknown participant")

	// ErrGroupNotFound means the directory does not know the group.
	ErrGroupNotFound = errors.New("ledger: group not found")

	// ErrNotFound means the transaction does not exist or was already deleted.
	ErrNotFound = errors.New("ledger: transaction not found")

	// ErrAlreadyExists means a transaction with the same ID was already recorded.
	ErrAlreadyExists = errors.New("ledger: transaction already recorded")

	// ErrConcurrencyConflict means the operation lost a race (lock wait timed out or the
	// store detected a conflicting write). Nothing was written; retry the whole operation.
	ErrConcurrencyConflict = errors.New("ledger: concurrency conflict")

	// ErrTransactionFailed means a failure happened after writes began. Everything was rolled back.
	ErrTransactionFailed = errors.New("ledger: transaction failed")
)

// IsRetryable returns true if the operation can be retried unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// ErrorClass returns a short, stable name for err's class, used as a metric label.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidSplit):
		return "invalid_split"
	case errors.Is(err, ErrUnknownParticipant):
		return "unknown_participant"
	case errors.Is(err, ErrGroupNotFound):
		return "group_not_found"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, ErrTransactionFailed):
		return "transaction_failed"
	default:
		return "internal"
	}
}
