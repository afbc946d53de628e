package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}

func TestSQLiteStore(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	t.Run("ApplyDelta upserts in canonical order", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx storage.Tx) error {
			if err := tx.ApplyDelta(ctx, "g1", "bob", "alice", 30); err != nil {
				return err
			}
			return tx.ApplyDelta(ctx, "g1", "alice", "bob", 10)
		})
		if err != nil {
			t.Fatalf("WithTx failed: %v", err)
		}

		got, err := store.GetBalance(ctx, "g1", "bob", "alice")
		if err != nil {
			t.Fatalf("GetBalance failed: %v", err)
		}
		if got != 20 {
			t.Errorf("Expected bob to owe alice 20, got %d", got)
		}

		entries, err := store.ListBalances(ctx, "g1")
		if err != nil {
			t.Fatalf("ListBalances failed: %v", err)
		}
		want := []models.BalanceEntry{{GroupID: "g1", UserA: "alice", UserB: "bob", Amount: -20}}
		if !reflect.DeepEqual(entries, want) {
			t.Errorf("Expected %+v, got %+v", want, entries)
		}
	})

	t.Run("ApplyDelta rejects self loop", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.ApplyDelta(ctx, "g1", "alice", "alice", 5)
		})
		if !errors.Is(err, storage.ErrInvalidPair) {
			t.Errorf("Expected ErrInvalidPair, got %v", err)
		}
	})

	t.Run("Untouched pair reads as zero", func(t *testing.T) {
		got, err := store.GetBalance(ctx, "g1", "carol", "dave")
		if err != nil {
			t.Fatalf("GetBalance failed: %v", err)
		}
		if got != 0 {
			t.Errorf("Expected 0, got %d", got)
		}
	})

	t.Run("AppendTransaction round trips splits", func(t *testing.T) {
		txn := &models.Transaction{
			ID:          "txn_1",
			GroupID:     "g2",
			Amount:      100,
			PayerID:     "alice",
			CreatorID:   "bob",
			Kind:        models.SplitExact,
			Description: "Dinner",
			CreatedAt:   1700000000,
			Splits:      []models.Split{{UserID: "carol", Amount: 70}, {UserID: "alice", Amount: 30}},
		}
		err := store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.AppendTransaction(ctx, txn)
		})
		if err != nil {
			t.Fatalf("AppendTransaction failed: %v", err)
		}
		if txn.Seq == 0 {
			t.Error("Expected Seq to be assigned")
		}

		got, err := store.GetTransaction(ctx, "txn_1")
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}
		if !reflect.DeepEqual(got, txn) {
			t.Errorf("Expected %+v, got %+v", txn, got)
		}
	})

	t.Run("AppendTransaction rejects duplicate ID", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.AppendTransaction(ctx, &models.Transaction{ID: "txn_1", GroupID: "g2", Amount: 5, PayerID: "alice", CreatorID: "alice"})
		})
		if !errors.Is(err, storage.ErrDuplicate) {
			t.Errorf("Expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("TombstoneTransaction only once", func(t *testing.T) {
		tombstone := func() error {
			return store.WithTx(ctx, func(tx storage.Tx) error {
				return tx.TombstoneTransaction(ctx, "txn_1", 1700000100)
			})
		}
		if err := tombstone(); err != nil {
			t.Fatalf("TombstoneTransaction failed: %v", err)
		}
		if err := tombstone(); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound on second tombstone, got %v", err)
		}

		live, err := store.ListTransactions(ctx, "g2", storage.ListOptions{})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(live) != 0 {
			t.Errorf("Expected no live transactions, got %d", len(live))
		}

		all, err := store.ListTransactions(ctx, "g2", storage.ListOptions{IncludeDeleted: true})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(all) != 1 || all[0].DeletedAt != 1700000100 || len(all[0].Splits) != 2 {
			t.Errorf("Expected one tombstoned transaction with splits, got %+v", all)
		}
	})

	t.Run("Rollback discards every write", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.WithTx(ctx, func(tx storage.Tx) error {
			if err := tx.ApplyDelta(ctx, "g3", "x", "y", 9); err != nil {
				return err
			}
			if err := tx.AppendTransaction(ctx, &models.Transaction{ID: "txn_rb", GroupID: "g3", Amount: 9, PayerID: "y", CreatorID: "y"}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Expected boom, got %v", err)
		}

		entries, err := store.ListBalances(ctx, "g3")
		if err != nil {
			t.Fatalf("ListBalances failed: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("Expected no balances after rollback, got %+v", entries)
		}
		if _, err := store.GetTransaction(ctx, "txn_rb"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected rolled back transaction to be absent, got %v", err)
		}
	})

	t.Run("ListGroupIDs", func(t *testing.T) {
		ids, err := store.ListGroupIDs(ctx)
		if err != nil {
			t.Fatalf("ListGroupIDs failed: %v", err)
		}
		if !reflect.DeepEqual(ids, []string{"g2"}) {
			t.Errorf("Expected [g2], got %v", ids)
		}
	})
}

func TestDirectory(t *testing.T) {
	store, _ := newTestStore(t)
	dir := store.Directory()
	ctx := context.Background()

	for _, u := range []*models.User{
		models.NewUser("alice", "Alice", "alice@example.com"),
		models.NewUser("bob", "Bob", ""),
	} {
		if err := dir.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}
	if err := dir.CreateUser(ctx, models.NewUser("alice", "Alice", "")); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}

	if err := dir.CreateGroup(ctx, &models.Group{ID: "g1", Name: "Roommates", Members: []string{"alice", "bob"}}); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if err := dir.CreateGroup(ctx, &models.Group{ID: "g2", Members: []string{"mallory"}}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown member, got %v", err)
	}

	ok, err := dir.GroupExists(ctx, "g2")
	if err != nil || ok {
		t.Errorf("Expected failed group to be rolled back, got %v %v", ok, err)
	}

	if err := dir.RemoveMember(ctx, "g1", "bob"); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	if err := dir.RemoveMember(ctx, "g1", "bob"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound removing departed member, got %v", err)
	}

	member, err := dir.IsMember(ctx, "g1", "bob")
	if err != nil || !member {
		t.Errorf("Expected departed bob to stay a historical member, got %v %v", member, err)
	}

	group, err := dir.GetGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if !reflect.DeepEqual(group.Members, []string{"alice"}) {
		t.Errorf("Expected current members [alice], got %v", group.Members)
	}

	if err := dir.AddMember(ctx, "g1", "bob"); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	group, err = dir.GetGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if !reflect.DeepEqual(group.Members, []string{"alice", "bob"}) {
		t.Errorf("Expected rejoined members [alice bob], got %v", group.Members)
	}

	users, err := dir.GetUsersByIDs(ctx, []string{"alice", "bob", "ghost"})
	if err != nil {
		t.Fatalf("GetUsersByIDs failed: %v", err)
	}
	if len(users) != 2 || users["alice"].Email != "alice@example.com" {
		t.Errorf("Unexpected users: %+v", users)
	}

	if _, err := dir.ResolveUser(ctx, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLedgerOnSQLite(t *testing.T) {
	store, dbPath := newTestStore(t)
	dir := store.Directory()
	ctx := context.Background()

	for _, id := range []string{"alice", "bob", "carol"} {
		if err := dir.CreateUser(ctx, models.NewUser(id, id, "")); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}
	if err := dir.CreateGroup(ctx, &models.Group{ID: "trip", Name: "Trip", Members: []string{"alice", "bob", "carol"}}); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	engine := ledger.New(store, dir)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.CreateTransaction(ctx, ledger.CreateRequest{
				GroupID: "trip",
				PayerID: []string{"alice", "bob", "carol"}[i%3],
				Amount:  int64(100 + i),
				Split:   calculator.Equal("alice", "bob", "carol"),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
	}

	txns, err := engine.ListTransactions(ctx, "trip", false)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if _, err := engine.DeleteTransaction(ctx, txns[0].ID); err != nil {
		t.Fatalf("DeleteTransaction failed: %v", err)
	}

	report, err := engine.Verify(ctx, "trip")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !report.OK() {
		t.Errorf("Expected balances to match the log, got %+v", report.Mismatches)
	}

	before, err := engine.GetGroupBalances(ctx, "trip")
	if err != nil {
		t.Fatalf("GetGroupBalances failed: %v", err)
	}
	store.Close()

	reopened, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	after, err := ledger.New(reopened, reopened.Directory()).GetGroupBalances(ctx, "trip")
	if err != nil {
		t.Fatalf("GetGroupBalances after reopen failed: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("Expected balances to survive reopen: %+v vs %+v", before, after)
	}
}
