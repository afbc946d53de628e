// Package memory provides an in-process implementation of storage.Store.
//
// Writes made inside WithTx are staged privately and committed under a single
// lock, so concurrent transactions never observe each other's partial state.
// Commit re-validates tombstones and appends against the latest state and fails
// with storage.ErrConflict if another transaction got there first.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("memory: store is closed")

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

type balanceKey struct {
	group, a, b string
}

// Store implements storage.Store in memory.
type Store struct {
	mu sync.RWMutex

	txns     map[string]*models.Transaction
	byGroup  map[string][]string
	balances map[balanceKey]int64
	seq      int64
	closed   bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		txns:     make(map[string]*models.Transaction),
		byGroup:  make(map[string][]string),
		balances: make(map[balanceKey]int64),
	}
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// WithTx stages fn's writes and commits them atomically.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		store:      s,
		deltas:     make(map[balanceKey]int64),
		tombstones: make(map[string]int64),
	}
	if err := fn(tx); err != nil {
		return err
	}
	// A cancellation that lands before commit still discards everything.
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	for _, a := range tx.appends {
		if _, exists := s.txns[a.stored.ID]; exists {
			return storage.ErrConflict
		}
	}
	for txnID := range tx.tombstones {
		if txn, ok := s.txns[txnID]; !ok || txn.Deleted() {
			return storage.ErrConflict
		}
	}

	for key, amount := range tx.deltas {
		s.balances[key] += amount
	}
	for txnID, at := range tx.tombstones {
		s.txns[txnID].DeletedAt = at
	}
	for _, a := range tx.appends {
		s.seq++
		a.stored.Seq = s.seq
		a.caller.Seq = s.seq
		s.txns[a.stored.ID] = a.stored
		s.byGroup[a.stored.GroupID] = append(s.byGroup[a.stored.GroupID], a.stored.ID)
	}
	return nil
}

// GetTransaction retrieves a transaction by ID.
func (s *Store) GetTransaction(_ context.Context, txnID string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	txn, ok := s.txns[txnID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return txn.Clone(), nil
}

// ListTransactions returns a group's transactions in creation order.
func (s *Store) ListTransactions(_ context.Context, groupID string, opts storage.ListOptions) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	result := make([]*models.Transaction, 0, len(s.byGroup[groupID]))
	for _, txnID := range s.byGroup[groupID] {
		txn := s.txns[txnID]
		if txn.Deleted() && !opts.IncludeDeleted {
			continue
		}
		result = append(result, txn.Clone())
	}
	return result, nil
}

// ListGroupIDs returns every group with recorded transactions, sorted.
func (s *Store) ListGroupIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	ids := make([]string, 0, len(s.byGroup))
	for groupID := range s.byGroup {
		ids = append(ids, groupID)
	}
	sort.Strings(ids)
	return ids, nil
}

// GetBalance returns how much a owes b.
func (s *Store) GetBalance(_ context.Context, groupID, a, b string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}
	lo, hi, _ := models.CanonicalPair(a, b, 0)
	amount := s.balances[balanceKey{groupID, lo, hi}]
	if a != lo {
		return -amount, nil
	}
	return amount, nil
}

// ListBalances returns every entry of the group including zero rows.
func (s *Store) ListBalances(_ context.Context, groupID string) ([]models.BalanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	entries := make([]models.BalanceEntry, 0)
	for key, amount := range s.balances {
		if key.group != groupID {
			continue
		}
		entries = append(entries, models.BalanceEntry{GroupID: key.group, UserA: key.a, UserB: key.b, Amount: amount})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].UserA != entries[j].UserA {
			return entries[i].UserA < entries[j].UserA
		}
		return entries[i].UserB < entries[j].UserB
	})
	return entries, nil
}

type stagedAppend struct {
	stored *models.Transaction
	caller *models.Transaction
}

// memTx collects writes until WithTx commits them.
type memTx struct {
	store      *Store
	deltas     map[balanceKey]int64
	appends    []stagedAppend
	tombstones map[string]int64
}

func (tx *memTx) ApplyDelta(ctx context.Context, groupID, debtor, creditor string, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if debtor == creditor {
		return storage.ErrInvalidPair
	}
	a, b, amt := models.CanonicalPair(debtor, creditor, amount)
	tx.deltas[balanceKey{groupID, a, b}] += amt
	return nil
}

func (tx *memTx) AppendTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, a := range tx.appends {
		if a.stored.ID == txn.ID {
			return storage.ErrDuplicate
		}
	}

	tx.store.mu.RLock()
	_, exists := tx.store.txns[txn.ID]
	tx.store.mu.RUnlock()
	if exists {
		return storage.ErrDuplicate
	}

	tx.appends = append(tx.appends, stagedAppend{stored: txn.Clone(), caller: txn})
	return nil
}

func (tx *memTx) TombstoneTransaction(ctx context.Context, txnID string, deletedAt int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, staged := tx.tombstones[txnID]; staged {
		return storage.ErrNotFound
	}

	tx.store.mu.RLock()
	txn, ok := tx.store.txns[txnID]
	live := ok && !txn.Deleted()
	tx.store.mu.RUnlock()
	if !live {
		return storage.ErrNotFound
	}

	tx.tombstones[txnID] = deletedAt
	return nil
}
