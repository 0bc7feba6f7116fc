package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// groupLocks serializes writers per group. Readers never take these locks.
// It also counts committed writes per group so cache fills can tell whether
// a write landed while they were reading.
type groupLocks struct {
	mu          sync.Mutex
	locks       map[string]*semaphore.Weighted
	generations map[string]uint64
}

func newGroupLocks() *groupLocks {
	return &groupLocks{
		locks:       make(map[string]*semaphore.Weighted),
		generations: make(map[string]uint64),
	}
}

// generation returns the number of committed writes to groupID.
func (l *groupLocks) generation(groupID string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generations[groupID]
}

// bump records a committed write to groupID.
func (l *groupLocks) bump(groupID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.generations[groupID]++
}

func (l *groupLocks) get(groupID string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.locks[groupID]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.locks[groupID] = sem
	}
	return sem
}

// acquire takes the group's lock, waiting at most timeout. The returned
// release func must be called exactly once.
func (l *groupLocks) acquire(ctx context.Context, groupID string, timeout time.Duration) (func(), error) {
	sem := l.get(groupID)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: group %s after %s", ErrLockTimeout, groupID, timeout)
	}
	return func() { sem.Release(1) }, nil
}
