package ledger

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func testRegistry(t *testing.T, balances map[string]string) map[string]*Account {
	t.Helper()
	registry := make(map[string]*Account, len(balances))
	for id, balance := range balances {
		registry[id] = NewAccount(id, "holder of "+id, dec(t, balance))
	}
	return registry
}

func lookupIn(registry map[string]*Account) Lookup {
	return func(id string) (*Account, bool) {
		acct, ok := registry[id]
		return acct, ok
	}
}

func TestAtomicCommit(t *testing.T) {
	registry := testRegistry(t, map[string]string{"ACC0001": "1000.00", "ACC0002": "500.00"})
	exec := NewExecutor(NewLockManager())

	err := exec.Atomic([]string{"ACC0002", "ACC0001"}, lookupIn(registry), func(tx Accounts) error {
		if len(tx) != 2 {
			t.Fatalf("expected 2 accounts in view, got %d", len(tx))
		}
		tx["ACC0001"].Withdraw(dec(t, "200.00"))
		tx["ACC0002"].Deposit(dec(t, "200.00"))
		return nil
	})
	if err != nil {
		t.Fatalf("Atomic returned error: %v", err)
	}
	if !registry["ACC0001"].Balance.Equal(dec(t, "800.00")) {
		t.Errorf("ACC0001 balance = %s, want 800.00", registry["ACC0001"].Balance)
	}
	if !registry["ACC0002"].Balance.Equal(dec(t, "700.00")) {
		t.Errorf("ACC0002 balance = %s, want 700.00", registry["ACC0002"].Balance)
	}
}

func TestAtomicRollbackOnError(t *testing.T) {
	registry := testRegistry(t, map[string]string{"ACC0001": "1000.00", "ACC0002": "500.00"})
	exec := NewExecutor(NewLockManager())

	boom := errors.New("boom")
	err := exec.Atomic([]string{"ACC0001", "ACC0002"}, lookupIn(registry), func(tx Accounts) error {
		tx["ACC0001"].Withdraw(dec(t, "200.00"))
		tx["ACC0002"].Deposit(dec(t, "200.00"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Atomic returned %v, want boom", err)
	}
	if !registry["ACC0001"].Balance.Equal(dec(t, "1000.00")) {
		t.Errorf("ACC0001 balance = %s, want rollback to 1000.00", registry["ACC0001"].Balance)
	}
	if !registry["ACC0002"].Balance.Equal(dec(t, "500.00")) {
		t.Errorf("ACC0002 balance = %s, want rollback to 500.00", registry["ACC0002"].Balance)
	}
}

func TestAtomicRollbackOnPanic(t *testing.T) {
	registry := testRegistry(t, map[string]string{"ACC0001": "1000.00", "ACC0002": "500.00"})
	exec := NewExecutor(NewLockManager())

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the panic to propagate")
			}
		}()
		exec.Atomic([]string{"ACC0001", "ACC0002"}, lookupIn(registry), func(tx Accounts) error {
			tx["ACC0001"].Withdraw(dec(t, "200.00"))
			tx["ACC0002"].Deposit(dec(t, "200.00"))
			panic("unexpected failure mid-transfer")
		})
	}()

	if !registry["ACC0001"].Balance.Equal(dec(t, "1000.00")) {
		t.Errorf("ACC0001 balance = %s, want rollback to 1000.00", registry["ACC0001"].Balance)
	}
	if !registry["ACC0002"].Balance.Equal(dec(t, "500.00")) {
		t.Errorf("ACC0002 balance = %s, want rollback to 500.00", registry["ACC0002"].Balance)
	}

	// The locks must have been released despite the panic.
	done := make(chan struct{})
	go func() {
		exec.Atomic([]string{"ACC0001", "ACC0002"}, lookupIn(registry), func(tx Accounts) error {
			return nil
		})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("locks were not released after panic")
	}
}

func TestAtomicSkipsUnknownIDs(t *testing.T) {
	registry := testRegistry(t, map[string]string{"ACC0001": "1000.00"})
	exec := NewExecutor(NewLockManager())

	err := exec.Atomic([]string{"ACC0001", "UNKNOWN"}, lookupIn(registry), func(tx Accounts) error {
		if _, ok := tx["UNKNOWN"]; ok {
			t.Error("unknown id should not appear in the transaction view")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Atomic returned error: %v", err)
	}
}

func TestAtomicDuplicateIDs(t *testing.T) {
	registry := testRegistry(t, map[string]string{"ACC0001": "1000.00"})
	exec := NewExecutor(NewLockManager())

	done := make(chan error, 1)
	go func() {
		done <- exec.Atomic([]string{"ACC0001", "ACC0001"}, lookupIn(registry), func(tx Accounts) error {
			tx["ACC0001"].Deposit(dec(t, "1.00"))
			return nil
		})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Atomic returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("duplicate ids self-deadlocked")
	}
	if !registry["ACC0001"].Balance.Equal(dec(t, "1001.00")) {
		t.Errorf("balance = %s, want 1001.00", registry["ACC0001"].Balance)
	}
}

// Opposite-direction multi-account transactions must not deadlock:
// every caller acquires in sorted order, so no cycle of waiters forms.
func TestAtomicOppositeOrdersNoDeadlock(t *testing.T) {
	registry := testRegistry(t, map[string]string{"ACC0001": "1000.00", "ACC0002": "1000.00"})
	exec := NewExecutor(NewLockManager())

	const rounds = 200
	var wg sync.WaitGroup
	wg.Add(2)
	move := func(ids []string, from, to string) {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			exec.Atomic(ids, lookupIn(registry), func(tx Accounts) error {
				if tx[from].Withdraw(dec(t, "10.00")) {
					tx[to].Deposit(dec(t, "10.00"))
				}
				return nil
			})
		}
	}
	go move([]string{"ACC0001", "ACC0002"}, "ACC0001", "ACC0002")
	go move([]string{"ACC0002", "ACC0001"}, "ACC0002", "ACC0001")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("opposite-direction transactions deadlocked")
	}

	total := registry["ACC0001"].Balance.Add(registry["ACC0002"].Balance)
	if !total.Equal(dec(t, "2000.00")) {
		t.Errorf("total balance = %s, want 2000.00", total)
	}
}
