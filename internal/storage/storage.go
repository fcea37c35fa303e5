// Package storage persists ledger snapshots. Stores are invoked only
// at process start/stop or on explicit save/load requests, never while
// any account lock is held.
package storage

import "github.com/shopspring/decimal"

// Record is one persisted account.
type Record struct {
	ID      string
	Name    string
	Balance decimal.Decimal
}

// Snapshot is the full persistable ledger state: every account plus
// the next account id, so restored ledgers keep allocating ids from
// where they left off.
type Snapshot struct {
	Accounts []Record
	NextID   int64
}

// Store loads and saves ledger snapshots.
type Store interface {
	Load() (*Snapshot, error)
	Save(snapshot *Snapshot) error
}
