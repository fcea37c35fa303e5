package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"
)

const systemRow = "SYSTEM"

// CSVStore persists snapshots to a single CSV file: a header row, one
// SYSTEM row carrying the next account id, then one row per account
// with the balance serialized as a decimal string.
type CSVStore struct {
	path string
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) Save(snapshot *Snapshot) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"account_id", "name", "balance", "next_account_id"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := w.Write([]string{systemRow, "", "", strconv.FormatInt(snapshot.NextID, 10)}); err != nil {
		return fmt.Errorf("failed to write system row: %w", err)
	}
	for _, rec := range snapshot.Accounts {
		if err := w.Write([]string{rec.ID, rec.Name, rec.Balance.String()}); err != nil {
			return fmt.Errorf("failed to write account %s: %w", rec.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// Load reads a snapshot back. A missing file is not an error: it loads
// as an empty ledger, matching first-run behavior.
func (s *CSVStore) Load() (*Snapshot, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return &Snapshot{NextID: 1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	// Account rows have three fields, the header and system rows four.
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	snapshot := &Snapshot{NextID: 1}
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue // header
		}
		if row[0] == systemRow {
			if len(row) < 4 {
				return nil, fmt.Errorf("malformed system row: %v", row)
			}
			next, err := strconv.ParseInt(row[3], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed next account id %q: %w", row[3], err)
			}
			snapshot.NextID = next
			continue
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("malformed account row: %v", row)
		}
		balance, err := decimal.NewFromString(row[2])
		if err != nil {
			return nil, fmt.Errorf("malformed balance %q for account %s: %w", row[2], row[0], err)
		}
		snapshot.Accounts = append(snapshot.Accounts, Record{ID: row[0], Name: row[1], Balance: balance})
	}
	return snapshot, nil
}
