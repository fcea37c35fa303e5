package storage

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

const nextIDKey = "next_account_id"

// PostgresStore persists snapshots to PostgreSQL: an accounts table as
// the write store plus a system_metadata key/value table for the next
// account id. Balances are stored as NUMERIC and scanned through
// strings so they never pass through a float.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Init creates the schema if it does not exist yet.
func (s *PostgresStore) Init() error {
	schema := `
		CREATE TABLE IF NOT EXISTS accounts (
			account_id TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			balance    NUMERIC(20, 4) NOT NULL
		);
		CREATE TABLE IF NOT EXISTS system_metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save writes the whole snapshot in one SQL transaction so a crash
// mid-save never leaves a half-written snapshot behind.
func (s *PostgresStore) Save(snapshot *Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO accounts (account_id, name, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE SET name = $2, balance = $3
	`
	for _, rec := range snapshot.Accounts {
		if _, err := tx.Exec(upsert, rec.ID, rec.Name, rec.Balance.String()); err != nil {
			return fmt.Errorf("failed to save account %s: %w", rec.ID, err)
		}
	}

	meta := `
		INSERT INTO system_metadata (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = $2
	`
	if _, err := tx.Exec(meta, nextIDKey, strconv.FormatInt(snapshot.NextID, 10)); err != nil {
		return fmt.Errorf("failed to save next account id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load() (*Snapshot, error) {
	snapshot := &Snapshot{NextID: 1}

	rows, err := s.db.Query(`SELECT account_id, name, balance FROM accounts ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec Record
		var balance string
		if err := rows.Scan(&rec.ID, &rec.Name, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		rec.Balance, err = decimal.NewFromString(balance)
		if err != nil {
			return nil, fmt.Errorf("malformed balance %q for account %s: %w", balance, rec.ID, err)
		}
		snapshot.Accounts = append(snapshot.Accounts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	var value string
	err = s.db.QueryRow(`SELECT value FROM system_metadata WHERE key = $1`, nextIDKey).Scan(&value)
	if err == sql.ErrNoRows {
		return snapshot, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load next account id: %w", err)
	}
	next, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed next account id %q: %w", value, err)
	}
	snapshot.NextID = next
	return snapshot, nil
}
