// Package storage provides abstractions for persistent ledger storage.
//
// A Store holds the two durable collections of the ledger: the transaction log
// and the balance entries derived from it. All mutations go through a Tx obtained
// from WithTx, so a balance update and its log record commit or roll back together.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitledger/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist (or is tombstoned, for deletions).
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicate is returned when appending a transaction whose ID is already in the log.
	ErrDuplicate = errors.New("storage: duplicate record")

	// ErrConflict is returned when a concurrent write invalidated this transaction.
	// The whole operation may be retried.
	ErrConflict = errors.New("storage: write conflict")

	// ErrInvalidPair is returned when a balance delta names the same user twice.
	ErrInvalidPair = errors.New("storage: balance pair must name two different users")
)

// ListOptions filters transaction log listings.
type ListOptions struct {
	// IncludeDeleted also returns tombstoned transactions.
	IncludeDeleted bool
}

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (memory, SQLite, PostgreSQL)
// without changing the ledger engine.
type Store interface {
	// WithTx runs fn inside one atomic storage transaction.
	// If fn returns an error, or ctx is cancelled before commit, nothing fn wrote persists.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// GetTransaction retrieves a transaction (live or tombstoned) by ID.
	// Returns ErrNotFound if it was never recorded.
	GetTransaction(ctx context.Context, txnID string) (*models.Transaction, error)

	// ListTransactions returns a group's transactions in creation order.
	ListTransactions(ctx context.Context, groupID string, opts ListOptions) ([]*models.Transaction, error)

	// ListGroupIDs returns every group that has at least one recorded transaction.
	ListGroupIDs(ctx context.Context) ([]string, error)

	// GetBalance returns how much a owes b in the group (negative when b owes a).
	// Returns 0 when the pair has never been touched.
	GetBalance(ctx context.Context, groupID, a, b string) (int64, error)

	// ListBalances returns every balance entry of a group, including settled (zero) rows,
	// ordered by (UserA, UserB).
	ListBalances(ctx context.Context, groupID string) ([]models.BalanceEntry, error)

	// Close releases any resources held by the store.
	Close() error
}

// Tx is the mutating half of a Store, valid only inside WithTx.
type Tx interface {
	// ApplyDelta atomically adds amount to "debtor owes creditor", creating the entry at zero
	// if absent. The pair is stored in canonical order.
	ApplyDelta(ctx context.Context, groupID, debtor, creditor string, amount int64) error

	// AppendTransaction adds txn to the log and assigns txn.Seq.
	// Returns ErrDuplicate if the ID is already present, live or tombstoned.
	AppendTransaction(ctx context.Context, txn *models.Transaction) error

	// TombstoneTransaction marks a live transaction deleted at the given Unix time.
	// Returns ErrNotFound if the transaction is absent or already tombstoned.
	TombstoneTransaction(ctx context.Context, txnID string, deletedAt int64) error
}
