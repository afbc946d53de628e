// Package postgres provides a PostgreSQL-backed storage.Store built on gorm,
// for deployments where several server processes share one database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// SQLSTATE codes that mean "retry the whole transaction".
const (
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
)

// Store implements storage.Store on PostgreSQL.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.New(slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres database: %w", err)
	}

	if err := db.AutoMigrate(&transactionRow{}, &splitRow{}, &balanceRow{}, &userRow{}, &groupRow{}, &memberRow{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Directory returns the ledger directory stored alongside the ledger tables.
func (s *Store) Directory() *Directory {
	return &Directory{db: s.db}
}

// WithTx runs fn inside one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(&pgTx{db: tx}); err != nil {
			return err
		}
		return ctx.Err()
	})
	return classify(err)
}

func preloadSplits(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}

// GetTransaction retrieves a transaction by ID, including its splits.
func (s *Store) GetTransaction(ctx context.Context, txnID string) (*models.Transaction, error) {
	var row transactionRow
	err := s.db.WithContext(ctx).Preload("Splits", preloadSplits).Where("id = ?", txnID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return row.toModel(), nil
}

// ListTransactions returns a group's transactions in creation order.
func (s *Store) ListTransactions(ctx context.Context, groupID string, opts storage.ListOptions) ([]*models.Transaction, error) {
	q := s.db.WithContext(ctx).Preload("Splits", preloadSplits).Where("group_id = ?", groupID)
	if !opts.IncludeDeleted {
		q = q.Where("deleted_at = 0")
	}

	var rows []transactionRow
	if err := q.Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	txns := make([]*models.Transaction, len(rows))
	for i := range rows {
		txns[i] = rows[i].toModel()
	}
	return txns, nil
}

// ListGroupIDs returns every group with at least one recorded transaction.
func (s *Store) ListGroupIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&transactionRow{}).Distinct("group_id").Order("group_id").Pluck("group_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return ids, nil
}

// GetBalance returns how much a owes b in the group.
func (s *Store) GetBalance(ctx context.Context, groupID, a, b string) (int64, error) {
	if a == b {
		return 0, nil
	}
	userA, userB, sign := models.CanonicalPair(a, b, 1)

	var row balanceRow
	err := s.db.WithContext(ctx).
		Where("group_id = ? AND user_a = ? AND user_b = ?", groupID, userA, userB).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return row.Amount * sign, nil
}

// ListBalances returns every balance entry of a group, including settled rows.
func (s *Store) ListBalances(ctx context.Context, groupID string) ([]models.BalanceEntry, error) {
	var rows []balanceRow
	err := s.db.WithContext(ctx).Where("group_id = ?", groupID).Order("user_a, user_b").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}

	entries := make([]models.BalanceEntry, len(rows))
	for i, r := range rows {
		entries[i] = models.BalanceEntry{GroupID: r.GroupID, UserA: r.UserA, UserB: r.UserB, Amount: r.Amount}
	}
	return entries, nil
}

type pgTx struct {
	db *gorm.DB
}

func (t *pgTx) ApplyDelta(ctx context.Context, groupID, debtor, creditor string, amount int64) error {
	if debtor == creditor {
		return storage.ErrInvalidPair
	}
	a, b, amt := models.CanonicalPair(debtor, creditor, amount)

	row := balanceRow{GroupID: groupID, UserA: a, UserB: b, Amount: amt}
	err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_a"}, {Name: "user_b"}},
		DoUpdates: clause.Assignments(map[string]any{"amount": gorm.Expr("balances.amount + excluded.amount")}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to apply balance delta: %w", err)
	}
	return nil
}

func (t *pgTx) AppendTransaction(ctx context.Context, txn *models.Transaction) error {
	row := fromModel(txn)
	res := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Omit("Splits").
		Create(&row)
	if res.Error != nil {
		return fmt.Errorf("failed to insert transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrDuplicate
	}

	if len(row.Splits) > 0 {
		if err := t.db.WithContext(ctx).Create(&row.Splits).Error; err != nil {
			return fmt.Errorf("failed to insert splits: %w", err)
		}
	}

	txn.Seq = row.Seq
	return nil
}

func (t *pgTx) TombstoneTransaction(ctx context.Context, txnID string, deletedAt int64) error {
	res := t.db.WithContext(ctx).Model(&transactionRow{}).
		Where("id = ? AND deleted_at = 0", txnID).
		Update("deleted_at", deletedAt)
	if res.Error != nil {
		return fmt.Errorf("failed to tombstone transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func fromModel(txn *models.Transaction) transactionRow {
	row := transactionRow{
		ID:          txn.ID,
		GroupID:     txn.GroupID,
		Amount:      txn.Amount,
		PayerID:     txn.PayerID,
		CreatorID:   txn.CreatorID,
		Kind:        string(txn.Kind),
		Description: txn.Description,
		CreatedAt:   txn.CreatedAt,
	}
	for i, s := range txn.Splits {
		row.Splits = append(row.Splits, splitRow{TxnID: txn.ID, Position: i, UserID: s.UserID, Amount: s.Amount})
	}
	return row
}

func (r *transactionRow) toModel() *models.Transaction {
	txn := &models.Transaction{
		ID:          r.ID,
		GroupID:     r.GroupID,
		Amount:      r.Amount,
		PayerID:     r.PayerID,
		CreatorID:   r.CreatorID,
		Kind:        models.SplitKind(r.Kind),
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		DeletedAt:   r.DeletedAt,
		Seq:         r.Seq,
	}
	for _, s := range r.Splits {
		txn.Splits = append(txn.Splits, models.Split{UserID: s.UserID, Amount: s.Amount})
	}
	return txn
}

// classify marks serialization failures and deadlocks as retryable conflicts.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateSerializationFailure, sqlstateDeadlockDetected:
			return fmt.Errorf("%w: %w", storage.ErrConflict, err)
		}
	}
	return err
}
