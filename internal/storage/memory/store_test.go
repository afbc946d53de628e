package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

func TestApplyDeltaIsReversible(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.WithTx(ctx, func(tx storage.Tx) error {
		return tx.ApplyDelta(ctx, "g", "bob", "alice", 30)
	}))

	got, err := s.GetBalance(ctx, "g", "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(30), got)

	got, err = s.GetBalance(ctx, "g", "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(-30), got)

	require.NoError(t, s.WithTx(ctx, func(tx storage.Tx) error {
		return tx.ApplyDelta(ctx, "g", "bob", "alice", -30)
	}))

	entries, err := s.ListBalances(ctx, "g")
	require.NoError(t, err)
	require.Len(t, entries, 1, "settled rows are retained")
	assert.Equal(t, models.BalanceEntry{GroupID: "g", UserA: "alice", UserB: "bob", Amount: 0}, entries[0])
}

func TestApplyDeltaRejectsSelfLoop(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.WithTx(ctx, func(tx storage.Tx) error {
		return tx.ApplyDelta(ctx, "g", "alice", "alice", 10)
	})
	assert.ErrorIs(t, err, storage.ErrInvalidPair)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.ApplyDelta(ctx, "g", "bob", "alice", 30); err != nil {
			return err
		}
		if err := tx.AppendTransaction(ctx, &models.Transaction{ID: "t1", GroupID: "g", Amount: 30}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	entries, err := s.ListBalances(ctx, "g")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = s.GetTransaction(ctx, "t1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWithTxCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New()

	err := s.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.ApplyDelta(ctx, "g", "bob", "alice", 30); err != nil {
			return err
		}
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	got, err := s.GetBalance(context.Background(), "g", "bob", "alice")
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestTransactionLog(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := &models.Transaction{ID: "t1", GroupID: "g", Amount: 10}
	second := &models.Transaction{ID: "t2", GroupID: "g", Amount: 20}
	require.NoError(t, s.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.AppendTransaction(ctx, first); err != nil {
			return err
		}
		return tx.AppendTransaction(ctx, second)
	}))
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)

	err := s.WithTx(ctx, func(tx storage.Tx) error {
		return tx.AppendTransaction(ctx, &models.Transaction{ID: "t1", GroupID: "g", Amount: 99})
	})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	require.NoError(t, s.WithTx(ctx, func(tx storage.Tx) error {
		return tx.TombstoneTransaction(ctx, "t1", 1234)
	}))

	err = s.WithTx(ctx, func(tx storage.Tx) error {
		return tx.TombstoneTransaction(ctx, "t1", 5678)
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	live, err := s.ListTransactions(ctx, "g", storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "t2", live[0].ID)

	all, err := s.ListTransactions(ctx, "g", storage.ListOptions{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1234), all[0].DeletedAt)

	groups, err := s.ListGroupIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"g"}, groups)
}

func TestCommitDetectsConcurrentTombstone(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.WithTx(ctx, func(tx storage.Tx) error {
		return tx.AppendTransaction(ctx, &models.Transaction{ID: "t1", GroupID: "g", Amount: 10})
	}))

	err := s.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.TombstoneTransaction(ctx, "t1", 1); err != nil {
			return err
		}
		// Another writer deletes the same transaction before this one commits.
		return s.WithTx(ctx, func(inner storage.Tx) error {
			return inner.TombstoneTransaction(ctx, "t1", 2)
		})
	})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory()
	d.AddGroup("g", "Roommates", "alice", "bob")

	exists, err := d.GroupExists(ctx, "g")
	require.NoError(t, err)
	assert.True(t, exists)

	member, err := d.IsMember(ctx, "g", "bob")
	require.NoError(t, err)
	assert.True(t, member)

	require.NoError(t, d.RemoveMember("g", "bob"))
	member, err = d.IsMember(ctx, "g", "bob")
	require.NoError(t, err)
	assert.True(t, member, "departed members stay historical members")

	group, err := d.GetGroup(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, group.Members)

	_, err = d.ResolveUser(ctx, "mallory")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
