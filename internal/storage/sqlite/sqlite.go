// Package sqlite provides a SQLite-backed implementation of the storage.Store interface,
// plus a reference ledger directory kept in the same database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sqlitedrv "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// BusyTimeoutMillis is how long a connection waits on a lock held by another process.
const BusyTimeoutMillis = 5000

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*Store, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas go in the DSN so they apply to every connection the pool opens.
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		dbPath, BusyTimeoutMillis)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time. A single connection turns lock contention
	// inside this process into queueing instead of SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Directory returns the ledger directory stored alongside the ledger tables.
func (s *Store) Directory() *Directory {
	return &Directory{db: s.db}
}

// WithTx runs fn inside one SQLite transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return classify(err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// GetTransaction retrieves a transaction by ID, including its splits.
func (s *Store) GetTransaction(ctx context.Context, txnID string) (*models.Transaction, error) {
	txn := &models.Transaction{}
	var kind string
	err := s.db.QueryRowContext(ctx, `
		SELECT seq, id, group_id, amount, payer_id, creator_id, kind, description, created_at, deleted_at
		FROM transactions
		WHERE id = ?`,
		txnID,
	).Scan(&txn.Seq, &txn.ID, &txn.GroupID, &txn.Amount, &txn.PayerID, &txn.CreatorID,
		&kind, &txn.Description, &txn.CreatedAt, &txn.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	txn.Kind = models.SplitKind(kind)

	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, amount FROM transaction_splits WHERE txn_id = ? ORDER BY position",
		txnID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var split models.Split
		if err := rows.Scan(&split.UserID, &split.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		txn.Splits = append(txn.Splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}

	return txn, nil
}

// ListTransactions returns a group's transactions in creation order.
func (s *Store) ListTransactions(ctx context.Context, groupID string, opts storage.ListOptions) ([]*models.Transaction, error) {
	query := `
		SELECT seq, id, group_id, amount, payer_id, creator_id, kind, description, created_at, deleted_at
		FROM transactions
		WHERE group_id = ?`
	if !opts.IncludeDeleted {
		query += " AND deleted_at = 0"
	}
	query += " ORDER BY seq"

	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	// Collect the headers before querying splits; the pool has a single connection.
	txns := []*models.Transaction{}
	byID := make(map[string]*models.Transaction)
	for rows.Next() {
		txn := &models.Transaction{}
		var kind string
		if err := rows.Scan(&txn.Seq, &txn.ID, &txn.GroupID, &txn.Amount, &txn.PayerID, &txn.CreatorID,
			&kind, &txn.Description, &txn.CreatedAt, &txn.DeletedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Kind = models.SplitKind(kind)
		txns = append(txns, txn)
		byID[txn.ID] = txn
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	if len(txns) == 0 {
		return txns, nil
	}

	splitRows, err := s.db.QueryContext(ctx, `
		SELECT s.txn_id, s.user_id, s.amount
		FROM transaction_splits s
		JOIN transactions t ON t.id = s.txn_id
		WHERE t.group_id = ?
		ORDER BY t.seq, s.position`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer splitRows.Close()

	for splitRows.Next() {
		var txnID string
		var split models.Split
		if err := splitRows.Scan(&txnID, &split.UserID, &split.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		if txn, ok := byID[txnID]; ok {
			txn.Splits = append(txn.Splits, split)
		}
	}
	if err := splitRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}

	return txns, nil
}

// ListGroupIDs returns every group with at least one recorded transaction.
func (s *Store) ListGroupIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT group_id FROM transactions ORDER BY group_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return ids, nil
}

// GetBalance returns how much a owes b in the group.
func (s *Store) GetBalance(ctx context.Context, groupID, a, b string) (int64, error) {
	if a == b {
		return 0, nil
	}
	userA, userB, sign := models.CanonicalPair(a, b, 1)

	var amount int64
	err := s.db.QueryRowContext(ctx,
		"SELECT amount FROM balances WHERE group_id = ? AND user_a = ? AND user_b = ?",
		groupID, userA, userB,
	).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return amount * sign, nil
}

// ListBalances returns every balance entry of a group, including settled rows.
func (s *Store) ListBalances(ctx context.Context, groupID string) ([]models.BalanceEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_a, user_b, amount FROM balances WHERE group_id = ? ORDER BY user_a, user_b",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	entries := []models.BalanceEntry{}
	for rows.Next() {
		e := models.BalanceEntry{GroupID: groupID}
		if err := rows.Scan(&e.UserA, &e.UserB, &e.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}
	return entries, nil
}

// sqliteTx implements storage.Tx over a *sql.Tx.
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) ApplyDelta(ctx context.Context, groupID, debtor, creditor string, amount int64) error {
	if debtor == creditor {
		return storage.ErrInvalidPair
	}
	a, b, amt := models.CanonicalPair(debtor, creditor, amount)

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO balances (group_id, user_a, user_b, amount) VALUES (?, ?, ?, ?)
		ON CONFLICT (group_id, user_a, user_b) DO UPDATE SET amount = amount + excluded.amount`,
		groupID, a, b, amt,
	)
	if err != nil {
		return fmt.Errorf("failed to apply balance delta: %w", err)
	}
	return nil
}

func (t *sqliteTx) AppendTransaction(ctx context.Context, txn *models.Transaction) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions (id, group_id, amount, payer_id, creator_id, kind, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		txn.ID, txn.GroupID, txn.Amount, txn.PayerID, txn.CreatorID, string(txn.Kind), txn.Description, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	} else if n == 0 {
		return storage.ErrDuplicate
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read transaction sequence: %w", err)
	}

	for i, split := range txn.Splits {
		_, err = t.tx.ExecContext(ctx,
			"INSERT INTO transaction_splits (txn_id, position, user_id, amount) VALUES (?, ?, ?, ?)",
			txn.ID, i, split.UserID, split.Amount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}

	txn.Seq = seq
	return nil
}

func (t *sqliteTx) TombstoneTransaction(ctx context.Context, txnID string, deletedAt int64) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE transactions SET deleted_at = ? WHERE id = ? AND deleted_at = 0",
		deletedAt, txnID,
	)
	if err != nil {
		return fmt.Errorf("failed to tombstone transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to tombstone transaction: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// classify marks lock contention from another process as a retryable conflict.
func classify(err error) error {
	var se *sqlitedrv.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %w", storage.ErrConflict, err)
		}
	}
	return err
}
