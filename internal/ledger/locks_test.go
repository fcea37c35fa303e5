package ledger

import (
	"sync"
	"testing"
)

func TestLockForSameID(t *testing.T) {
	m := NewLockManager()
	if m.LockFor("ACC0001") != m.LockFor("ACC0001") {
		t.Fatal("expected the same mutex for the same account id")
	}
	if m.LockFor("ACC0001") == m.LockFor("ACC0002") {
		t.Fatal("expected distinct mutexes for distinct account ids")
	}
}

// Two goroutines racing on a brand-new id must end up with the same
// mutex; otherwise two "exclusive" critical sections could run at once.
func TestLockForConcurrentCreate(t *testing.T) {
	m := NewLockManager()

	const goroutines = 64
	results := make(chan *sync.Mutex, goroutines)
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer done.Done()
			start.Wait()
			results <- m.LockFor("ACC9999")
		}()
	}
	start.Done()
	done.Wait()
	close(results)

	first := <-results
	for mu := range results {
		if mu != first {
			t.Fatal("concurrent LockFor calls returned different mutexes")
		}
	}
}
