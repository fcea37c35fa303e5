package ledger

import "sync"

// LockManager hands out one mutex per account id. Locks are created
// lazily on first reference and kept for the lifetime of the process;
// the index is insertion-only.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*sync.Mutex)}
}

// LockFor returns the mutex for accountID, creating it on first use.
// The check-then-create runs under the manager mutex so two goroutines
// racing on a new id always receive the same mutex. This serialization
// is a correctness requirement, not an optimization.
func (m *LockManager) LockFor(accountID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[accountID] = lock
	}
	return lock
}
