package ledger

import (
	"context"
	"sync"
)

// GroupLocks serializes writers per group. Different groups never contend.
// Each request holds at most one group lock, so no lock ordering is needed.
type GroupLocks struct {
	mu    sync.Mutex
	locks map[string]*groupLock
}

type groupLock struct {
	slot chan struct{}
	refs int
}

// NewGroupLocks creates an empty lock table.
func NewGroupLocks() *GroupLocks {
	return &GroupLocks{locks: make(map[string]*groupLock)}
}

// Lock waits until the group's lock is free or ctx is done.
// On success the returned func releases the lock and must be called exactly once.
func (l *GroupLocks) Lock(ctx context.Context, groupID string) (func(), error) {
	l.mu.Lock()
	gl, ok := l.locks[groupID]
	if !ok {
		gl = &groupLock{slot: make(chan struct{}, 1)}
		l.locks[groupID] = gl
	}
	gl.refs++
	l.mu.Unlock()

	select {
	case gl.slot <- struct{}{}:
		return func() {
			<-gl.slot
			l.release(groupID, gl)
		}, nil
	case <-ctx.Done():
		l.release(groupID, gl)
		return nil, ctx.Err()
	}
}

// release drops a reference and forgets idle locks so the table does not grow forever.
func (l *GroupLocks) release(groupID string, gl *groupLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	gl.refs--
	if gl.refs == 0 {
		delete(l.locks, groupID)
	}
}

// size reports how many groups currently have holders or waiters.
func (l *GroupLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
