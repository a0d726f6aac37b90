package authz

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// UserLockTable serializes permission-affecting operations per user id
// while keeping distinct users fully parallel. Lock handles are held in a
// bounded LRU so idle users do not accumulate; a user's entry is only
// evictable once nothing in flight references it.
type UserLockTable struct {
	mu    sync.Mutex
	locks *lru.Cache[int64, *sync.Mutex]
}

// NewUserLockTable creates a lock table retaining up to size entries.
func NewUserLockTable(size int) (*UserLockTable, error) {
	cache, err := lru.New[int64, *sync.Mutex](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create user lock cache: %w", err)
	}
	return &UserLockTable{locks: cache}, nil
}

// Lock acquires the per-user lock, creating it on first use.
func (t *UserLockTable) Lock(userID int64) *sync.Mutex {
	t.mu.Lock()
	lock, ok := t.locks.Get(userID)
	if !ok {
		lock = &sync.Mutex{}
		t.locks.Add(userID, lock)
	}
	t.mu.Unlock()

	lock.Lock()
	return lock
}

// WithLock runs fn while holding the user's lock.
func (t *UserLockTable) WithLock(userID int64, fn func() error) error {
	lock := t.Lock(userID)
	defer lock.Unlock()
	return fn()
}

// Len reports the number of retained lock entries.
func (t *UserLockTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.locks.Len()
}
