package ledger

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Accounts is the view handed to an atomic operation: only the
// accounts whose locks the executor currently holds.
type Accounts map[string]*Account

// Executor is the sole mutation path for account balances. It acquires
// every required per-account lock in canonical (sorted id) order,
// snapshots balances for rollback, runs the operation, and always
// releases the locks in reverse acquisition order.
type Executor struct {
	locks *LockManager
}

func NewExecutor(locks *LockManager) *Executor {
	return &Executor{locks: locks}
}

type heldLock struct {
	id string
	mu *sync.Mutex
}

// Lookup resolves an account id against the registry. Implementations
// must be safe to call concurrently.
type Lookup func(accountID string) (*Account, bool)

// Atomic runs op while holding the lock of every account in ids that
// lookup resolves. Locks are acquired in sorted id order; because every
// caller acquires in the same global order, two transactions over the
// same accounts can never wait on each other in a cycle.
//
// If op returns an error or panics, every touched balance is restored
// from the pre-operation snapshot before the error or panic propagates.
// Ids that do not resolve are skipped; callers validate existence
// before entering the executor.
func (e *Executor) Atomic(ids []string, lookup Lookup, op func(tx Accounts) error) (err error) {
	order := canonicalOrder(ids)

	held := make([]heldLock, 0, len(order))
	tx := make(Accounts, len(order))
	snapshot := make(map[string]decimal.Decimal, len(order))

	for _, id := range order {
		acct, ok := lookup(id)
		if !ok {
			continue
		}
		mu := e.locks.LockFor(id)
		mu.Lock()
		held = append(held, heldLock{id: id, mu: mu})
		tx[id] = acct
		snapshot[id] = acct.Balance
	}

	// Registered first so it runs last: balances are restored while the
	// locks are still held.
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			restore(tx, snapshot)
			panic(r)
		}
		if err != nil {
			restore(tx, snapshot)
		}
	}()

	return op(tx)
}

// canonicalOrder sorts and de-duplicates the id set. Sorting is the
// deadlock-avoidance mechanism; de-duplication matters because
// sync.Mutex is not re-entrant and the same id may appear twice in a
// caller's set.
func canonicalOrder(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	order := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	sort.Strings(order)
	return order
}

func restore(tx Accounts, snapshot map[string]decimal.Decimal) {
	for id, balance := range snapshot {
		tx[id].Balance = balance
	}
}
