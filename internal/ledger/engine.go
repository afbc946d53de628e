// Package ledger implements the balance ledger engine.
//
// The engine turns transaction create and delete events into balance deltas,
// applies them exactly once, and reverses them exactly on deletion using the
// splits stored with the transaction. Balance entries are never edited any
// other way, so they can always be re-derived by replaying the transaction log
// (see Verify).
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/id"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// DefaultLockTimeout bounds how long a writer waits for its group's lock.
const DefaultLockTimeout = 5 * time.Second

// Directory resolves group membership and user identities.
// It is owned by an external system; the engine only reads it.
type Directory interface {
	// GroupExists reports whether the group is known.
	GroupExists(ctx context.Context, groupID string) (bool, error)

	// IsMember reports whether the user is a current or historical member of the group.
	IsMember(ctx context.Context, groupID, userID string) (bool, error)

	// ResolveUser returns the user, or an error wrapping storage.ErrNotFound.
	ResolveUser(ctx context.Context, userID string) (*models.User, error)
}

// Engine is the balance ledger engine.
type Engine struct {
	store   storage.Store
	dir     Directory
	locks   *GroupLocks
	logger  *slog.Logger
	metrics *Metrics

	lockTimeout time.Duration
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLockTimeout bounds how long a write waits for its group's lock.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.lockTimeout = d
	}
}

// WithClock overrides the time source used to stamp transactions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates a new Engine over the given store and directory.
func New(store storage.Store, dir Directory, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		dir:         dir,
		locks:       NewGroupLocks(),
		logger:      slog.Default(),
		metrics:     NewMetrics(nil),
		lockTimeout: DefaultLockTimeout,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// CreateRequest is a request to record a new transaction.
type CreateRequest struct {
	// ID is optional. Callers retrying a create pass the same ID so the retry is
	// rejected with ErrAlreadyExists instead of being recorded twice.
	ID string

	GroupID     string
	PayerID     string
	CreatorID   string
	Amount      int64
	Split       calculator.SplitSpec
	Description string
}

// CreateTransaction computes the splits for req and records the resulting transaction.
func (e *Engine) CreateTransaction(ctx context.Context, req CreateRequest) (*models.Transaction, error) {
	txn, err := e.create(ctx, req)
	e.metrics.observeError("create", err)
	return txn, err
}

func (e *Engine) create(ctx context.Context, req CreateRequest) (*models.Transaction, error) {
	splits, err := calculator.ComputeSplits(req.Amount, req.PayerID, req.Split)
	if err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		ID:          req.ID,
		GroupID:     req.GroupID,
		Amount:      req.Amount,
		PayerID:     req.PayerID,
		CreatorID:   req.CreatorID,
		Splits:      splits,
		Kind:        req.Split.Kind,
		Description: req.Description,
		CreatedAt:   e.now().Unix(),
	}
	if txn.ID == "" {
		txn.ID = id.NewTransactionID()
	}
	if txn.CreatorID == "" {
		txn.CreatorID = txn.PayerID
	}

	if err := e.record(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// RecordTransaction validates txn and applies it: every participant other than the payer
// owes the payer their split, and txn is appended to the log, all in one storage transaction.
// txn.Seq is set on success.
func (e *Engine) RecordTransaction(ctx context.Context, txn *models.Transaction) error {
	err := e.record(ctx, txn)
	e.metrics.observeError("record", err)
	return err
}

func (e *Engine) record(ctx context.Context, txn *models.Transaction) error {
	if err := e.validate(ctx, txn); err != nil {
		return err
	}

	unlock, err := e.lockGroup(ctx, txn.GroupID)
	if err != nil {
		return err
	}
	defer unlock()

	deltas := calculator.Deltas(txn)
	err = e.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := applyDeltas(ctx, tx, txn.GroupID, deltas); err != nil {
			return err
		}
		return tx.AppendTransaction(ctx, txn)
	})
	if err != nil {
		err = e.writeFailure(txn.ID, err)
		e.logger.Error("RecordTransaction failed", "txn_id", txn.ID, "group_id", txn.GroupID, "error", err)
		return err
	}

	e.metrics.recorded.Inc()
	e.logger.Info("Transaction recorded",
		"txn_id", txn.ID,
		"group_id", txn.GroupID,
		"payer_id", txn.PayerID,
		"amount", txn.Amount,
		"deltas", len(deltas),
	)
	return nil
}

// DeleteTransaction reverses the stored splits of a live transaction and tombstones it.
// Deleting an unknown or already deleted transaction fails with ErrNotFound.
// The returned record carries its deletion timestamp.
func (e *Engine) DeleteTransaction(ctx context.Context, txnID string) (*models.Transaction, error) {
	txn, err := e.delete(ctx, txnID)
	e.metrics.observeError("delete", err)
	return txn, err
}

func (e *Engine) delete(ctx context.Context, txnID string) (*models.Transaction, error) {
	txn, err := e.store.GetTransaction(ctx, txnID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, txnID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if txn.Deleted() {
		return nil, fmt.Errorf("%w: %s (already deleted)", ErrNotFound, txnID)
	}

	unlock, err := e.lockGroup(ctx, txn.GroupID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	deletedAt := e.now().Unix()
	inverse := calculator.Inverse(calculator.Deltas(txn))
	err = e.store.WithTx(ctx, func(tx storage.Tx) error {
		// Tombstone first: a concurrent second delete fails here before touching balances.
		if err := tx.TombstoneTransaction(ctx, txn.ID, deletedAt); err != nil {
			return err
		}
		return applyDeltas(ctx, tx, txn.GroupID, inverse)
	})
	if err != nil {
		err = e.writeFailure(txn.ID, err)
		e.logger.Error("DeleteTransaction failed", "txn_id", txn.ID, "group_id", txn.GroupID, "error", err)
		return nil, err
	}

	txn.DeletedAt = deletedAt
	e.metrics.deleted.Inc()
	e.logger.Info("Transaction deleted",
		"txn_id", txn.ID,
		"group_id", txn.GroupID,
		"amount", txn.Amount,
		"deltas", len(inverse),
	)
	return txn, nil
}

// Replay records each live transaction of txns, in order, as if it were new.
// It is used to rebuild a store from an exported log; deleted entries are skipped
// because their creation and deletion cancel out.
func (e *Engine) Replay(ctx context.Context, txns []*models.Transaction) error {
	for _, txn := range txns {
		if txn.Deleted() {
			continue
		}
		c := txn.Clone()
		c.Seq = 0
		if err := e.RecordTransaction(ctx, c); err != nil {
			return fmt.Errorf("failed to replay transaction %s: %w", txn.ID, err)
		}
	}
	return nil
}

// validate checks everything that can be checked before writing.
func (e *Engine) validate(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == "" {
		return fmt.Errorf("%w: transaction ID is required", ErrInvalidSplit)
	}
	if txn.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidSplit, txn.Amount)
	}
	if txn.PayerID == "" {
		return fmt.Errorf("%w: payer is required", ErrInvalidSplit)
	}
	if len(txn.Splits) == 0 {
		return fmt.Errorf("%w: no participants", ErrInvalidSplit)
	}

	seen := make(map[string]bool, len(txn.Splits))
	for _, s := range txn.Splits {
		if s.UserID == "" {
			return fmt.Errorf("%w: participant ID is empty", ErrInvalidSplit)
		}
		if s.Amount < 0 {
			return fmt.Errorf("%w: negative share %d for %s", ErrInvalidSplit, s.Amount, s.UserID)
		}
		if s.Amount > txn.Amount {
			return fmt.Errorf("%w: share %d for %s exceeds amount %d", ErrInvalidSplit, s.Amount, s.UserID, txn.Amount)
		}
		if seen[s.UserID] {
			return fmt.Errorf("%w: duplicate participant %s", ErrInvalidSplit, s.UserID)
		}
		seen[s.UserID] = true
	}
	total, ok := txn.SplitTotal()
	if !ok {
		return fmt.Errorf("%w: splits overflow, want %d", ErrInvalidSplit, txn.Amount)
	}
	if total != txn.Amount {
		return fmt.Errorf("%w: splits sum to %d, want %d", ErrInvalidSplit, total, txn.Amount)
	}

	if txn.GroupID == "" {
		return fmt.Errorf("%w: group ID is required", ErrGroupNotFound)
	}
	exists, err := e.dir.GroupExists(ctx, txn.GroupID)
	if err != nil {
		return fmt.Errorf("failed to look up group: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, txn.GroupID)
	}

	members := append([]string{txn.PayerID}, txn.Participants()...)
	for _, userID := range members {
		if err := e.checkMember(ctx, txn.GroupID, userID); err != nil {
			return err
		}
	}

	if txn.CreatorID != "" && !seen[txn.CreatorID] && txn.CreatorID != txn.PayerID {
		if _, err := e.resolve(ctx, txn.CreatorID); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) checkMember(ctx context.Context, groupID, userID string) error {
	if _, err := e.resolve(ctx, userID); err != nil {
		return err
	}
	member, err := e.dir.IsMember(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		return fmt.Errorf("%w: %s is not a member of %s", ErrUnknownParticipant, userID, groupID)
	}
	return nil
}

func (e *Engine) resolve(ctx context.Context, userID string) (*models.User, error) {
	u, err := e.dir.ResolveUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return u, nil
}

// lockGroup takes the group's write lock, waiting at most lockTimeout.
func (e *Engine) lockGroup(ctx context.Context, groupID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, e.lockTimeout)
	defer cancel()

	start := time.Now()
	unlock, err := e.locks.Lock(lockCtx, groupID)
	e.metrics.observeLockWait(time.Since(start))
	if err == nil {
		return unlock, nil
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("failed to lock group %s: %w", groupID, ctx.Err())
	}
	e.logger.Warn("Group lock wait timed out", "group_id", groupID, "timeout", e.lockTimeout)
	return nil, fmt.Errorf("%w: timed out waiting for group %s", ErrConcurrencyConflict, groupID)
}

// writeFailure classifies an error returned from inside a storage transaction.
func (e *Engine) writeFailure(txnID string, err error) error {
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		return fmt.Errorf("%w: %s", ErrAlreadyExists, txnID)
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, txnID)
	case errors.Is(err, storage.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
	default:
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
}

// applyDeltas writes deltas in canonical pair order so concurrent writers sharing a
// database always take row locks in the same order.
func applyDeltas(ctx context.Context, tx storage.Tx, groupID string, deltas []calculator.Delta) error {
	for _, d := range calculator.SortDeltas(deltas) {
		if err := tx.ApplyDelta(ctx, groupID, d.Debtor, d.Creditor, d.Amount); err != nil {
			return fmt.Errorf("failed to apply delta %s->%s: %w", d.Debtor, d.Creditor, err)
		}
	}
	return nil
}
