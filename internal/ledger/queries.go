package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// GetGroupBalances returns the group's outstanding balance entries, ordered by (UserA, UserB).
// Settled pairs are omitted.
func (e *Engine) GetGroupBalances(ctx context.Context, groupID string) ([]models.BalanceEntry, error) {
	entries, err := e.groupEntries(ctx, groupID)
	if err != nil {
		e.metrics.observeError("balances", err)
		return nil, err
	}
	return calculator.NonZero(entries), nil
}

// GetBalance returns how much a owes b in the group (negative when b owes a).
func (e *Engine) GetBalance(ctx context.Context, groupID, a, b string) (int64, error) {
	if err := e.checkGroup(ctx, groupID); err != nil {
		return 0, err
	}
	if a == b {
		return 0, nil
	}

	amount, err := e.store.GetBalance(ctx, groupID, a, b)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return amount, nil
}

// GetUserNetPosition returns the sum of every entry touching userID in the group.
// Positive means the user is owed money, negative means the user owes.
func (e *Engine) GetUserNetPosition(ctx context.Context, groupID, userID string) (int64, error) {
	entries, err := e.groupEntries(ctx, groupID)
	if err != nil {
		return 0, err
	}
	return calculator.NetPosition(entries, userID), nil
}

// GetNetPositions returns every user's net position in the group.
func (e *Engine) GetNetPositions(ctx context.Context, groupID string) (map[string]int64, error) {
	entries, err := e.groupEntries(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return calculator.NetPositions(entries), nil
}

// SuggestSettlements returns a short list of payments that would settle every balance in the group.
// Recording each suggestion as an Exact transaction (payer = FromUserID, split {ToUserID: Amount})
// zeroes the group.
func (e *Engine) SuggestSettlements(ctx context.Context, groupID string) ([]models.Settlement, error) {
	positions, err := e.GetNetPositions(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return calculator.SimplifyDebts(positions), nil
}

// GetTransaction returns a transaction, live or deleted.
func (e *Engine) GetTransaction(ctx context.Context, txnID string) (*models.Transaction, error) {
	txn, err := e.store.GetTransaction(ctx, txnID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, txnID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// ListTransactions returns the group's transactions in creation order.
func (e *Engine) ListTransactions(ctx context.Context, groupID string, includeDeleted bool) ([]*models.Transaction, error) {
	if err := e.checkGroup(ctx, groupID); err != nil {
		return nil, err
	}

	txns, err := e.store.ListTransactions(ctx, groupID, storage.ListOptions{IncludeDeleted: includeDeleted})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

func (e *Engine) groupEntries(ctx context.Context, groupID string) ([]models.BalanceEntry, error) {
	if err := e.checkGroup(ctx, groupID); err != nil {
		return nil, err
	}

	entries, err := e.store.ListBalances(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	return entries, nil
}

func (e *Engine) checkGroup(ctx context.Context, groupID string) error {
	exists, err := e.dir.GroupExists(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to look up group: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	return nil
}
