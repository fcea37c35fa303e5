// Package audit records one structured event per completed or failed
// ledger operation.
package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Actions.
const (
	ActionAccountCreated = "account_created"
	ActionDeposit        = "deposit"
	ActionWithdraw       = "withdraw"
	ActionTransfer       = "transfer"
)

// Statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Event is the audit record for a single operation. Balance fields are
// populated only on success; Reason only on failure.
type Event struct {
	ID            string           `json:"id"`
	Action        string           `json:"action"`
	AccountID     string           `json:"accountId,omitempty"`
	FromAccountID string           `json:"fromAccountId,omitempty"`
	ToAccountID   string           `json:"toAccountId,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	Status        string           `json:"status"`
	Reason        string           `json:"reason,omitempty"`
	Balance       *decimal.Decimal `json:"balance,omitempty"`
	FromBalance   *decimal.Decimal `json:"fromBalance,omitempty"`
	ToBalance     *decimal.Decimal `json:"toBalance,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(action string) Event {
	return Event{
		ID:        uuid.NewString(),
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
}

// Recorder receives audit events. Implementations must be safe for
// concurrent use; a failed write is the recorder's problem to report,
// the ledger never fails an operation over it.
type Recorder interface {
	Record(event Event) error
}

// MultiRecorder fans an event out to several recorders, returning the
// first error after all recorders have been attempted.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(event Event) error {
	var first error
	for _, r := range m {
		if err := r.Record(event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
