package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGroupLocksSerializeSameGroup(t *testing.T) {
	l := NewGroupLocks()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "g1")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		u, err := l.Lock(ctx, "g1")
		if err != nil {
			t.Errorf("second Lock failed: %v", err)
			return
		}
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held lock")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
}

func TestGroupLocksIndependentGroups(t *testing.T) {
	l := NewGroupLocks()
	ctx := context.Background()

	u1, err := l.Lock(ctx, "g1")
	if err != nil {
		t.Fatalf("Lock g1 failed: %v", err)
	}
	defer u1()

	ctx2, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	u2, err := l.Lock(ctx2, "g2")
	if err != nil {
		t.Fatalf("Lock g2 blocked behind g1: %v", err)
	}
	u2()
}

func TestGroupLocksTimeout(t *testing.T) {
	l := NewGroupLocks()

	unlock, err := l.Lock(context.Background(), "g1")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "g1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}

	if got := l.size(); got != 1 {
		t.Errorf("expected 1 live lock, got %d", got)
	}
	unlock()
	if got := l.size(); got != 0 {
		t.Errorf("expected lock table to be empty, got %d", got)
	}
}
