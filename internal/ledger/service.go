package ledger

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jimmy2002916/SimpleBanking/internal/audit"
	"github.com/jimmy2002916/SimpleBanking/internal/storage"
)

// Service exposes the ledger operations. Input validation happens
// before any lock is taken; every balance mutation goes through the
// executor under the relevant per-account locks; audit events are
// recorded after all locks are released.
//
// The registry map and the id allocator are guarded by mu. This guard
// covers only map membership and id allocation, never the per-account
// critical sections.
type Service struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	nextID   int64

	locks    *LockManager
	exec     *Executor
	store    storage.Store
	recorder audit.Recorder
}

// NewService builds a ledger. store and recorder may be nil, in which
// case save/load are unavailable and audit events are dropped.
func NewService(store storage.Store, recorder audit.Recorder) *Service {
	locks := NewLockManager()
	return &Service{
		accounts: make(map[string]*Account),
		nextID:   1,
		locks:    locks,
		exec:     NewExecutor(locks),
		store:    store,
		recorder: recorder,
	}
}

// CreateAccount allocates a fresh account id and stores the account.
// Creation is not routed through the executor: no concurrent operation
// can reference an id that has not been returned yet.
func (s *Service) CreateAccount(name string, initialBalance decimal.Decimal) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrEmptyName
	}
	if initialBalance.IsNegative() {
		return "", ErrNegativeBalance
	}

	s.mu.Lock()
	id := fmt.Sprintf("ACC%04d", s.nextID)
	s.nextID++
	s.accounts[id] = NewAccount(id, name, initialBalance)
	s.mu.Unlock()

	ev := audit.NewEvent(audit.ActionAccountCreated)
	ev.AccountID = id
	ev.Amount = initialBalance
	ev.Status = audit.StatusSuccess
	ev.Balance = &initialBalance
	s.record(ev)

	return id, nil
}

// Deposit credits amount to the account and returns the resulting
// balance.
func (s *Service) Deposit(accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	fail := func(err error) (decimal.Decimal, error) {
		s.recordSingle(audit.ActionDeposit, accountID, amount, nil, err)
		return decimal.Zero, err
	}

	if !amount.IsPositive() {
		return fail(ErrInvalidAmount)
	}
	if !s.exists(accountID) {
		return fail(ErrAccountNotFound)
	}

	var newBalance decimal.Decimal
	err := s.exec.Atomic([]string{accountID}, s.lookup, func(tx Accounts) error {
		acct, ok := tx[accountID]
		if !ok {
			return ErrAccountNotFound
		}
		if !acct.Deposit(amount) {
			return ErrInvalidAmount
		}
		newBalance = acct.Balance
		return nil
	})
	if err != nil {
		return fail(err)
	}

	s.recordSingle(audit.ActionDeposit, accountID, amount, &newBalance, nil)
	return newBalance, nil
}

// Withdraw debits amount from the account and returns the resulting
// balance. The pre-lock balance check is a cheap early rejection only;
// the authoritative check runs again inside the locked closure, since
// the balance may move between the two.
func (s *Service) Withdraw(accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	fail := func(err error) (decimal.Decimal, error) {
		s.recordSingle(audit.ActionWithdraw, accountID, amount, nil, err)
		return decimal.Zero, err
	}

	if !amount.IsPositive() {
		return fail(ErrInvalidAmount)
	}
	balance, err := s.Balance(accountID)
	if err != nil {
		return fail(err)
	}
	if amount.GreaterThan(balance) {
		return fail(ErrInsufficientFunds)
	}

	var newBalance decimal.Decimal
	err = s.exec.Atomic([]string{accountID}, s.lookup, func(tx Accounts) error {
		acct, ok := tx[accountID]
		if !ok {
			return ErrAccountNotFound
		}
		if !acct.Withdraw(amount) {
			return ErrInsufficientFunds
		}
		newBalance = acct.Balance
		return nil
	})
	if err != nil {
		return fail(err)
	}

	s.recordSingle(audit.ActionWithdraw, accountID, amount, &newBalance, nil)
	return newBalance, nil
}

// Transfer moves amount from one account to another. Both mutations
// happen while both locks are held, so no other operation can observe
// a half-applied transfer.
func (s *Service) Transfer(fromID, toID string, amount decimal.Decimal) error {
	fail := func(err error) error {
		s.recordTransfer(fromID, toID, amount, nil, nil, err)
		return err
	}

	if !amount.IsPositive() {
		return fail(ErrInvalidAmount)
	}
	if fromID == toID {
		return fail(ErrSameAccount)
	}
	if !s.exists(fromID) || !s.exists(toID) {
		return fail(ErrAccountNotFound)
	}

	var fromBalance, toBalance decimal.Decimal
	err := s.exec.Atomic([]string{fromID, toID}, s.lookup, func(tx Accounts) error {
		from, to := tx[fromID], tx[toID]
		if from == nil || to == nil {
			return ErrAccountNotFound
		}
		if !from.Withdraw(amount) {
			return ErrInsufficientFunds
		}
		if !to.Deposit(amount) {
			// Unreachable once the amount validated positive; the
			// executor restores the debit if it ever happens.
			return ErrInvalidAmount
		}
		fromBalance, toBalance = from.Balance, to.Balance
		return nil
	})
	if err != nil {
		return fail(err)
	}

	s.recordTransfer(fromID, toID, amount, &fromBalance, &toBalance, nil)
	return nil
}

// GetAccount returns a copy of the account. The copy is taken under
// the account lock so the balance read is never torn against a
// concurrent mutation.
func (s *Service) GetAccount(accountID string) (Account, error) {
	s.mu.RLock()
	acct, ok := s.accounts[accountID]
	s.mu.RUnlock()
	if !ok {
		return Account{}, ErrAccountNotFound
	}

	mu := s.locks.LockFor(accountID)
	mu.Lock()
	cp := *acct
	mu.Unlock()
	return cp, nil
}

// Balance returns the current balance of the account.
func (s *Service) Balance(accountID string) (decimal.Decimal, error) {
	acct, err := s.GetAccount(accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return acct.Balance, nil
}

// ListAccounts returns copies of all accounts, sorted by id.
func (s *Service) ListAccounts() []Account {
	s.mu.RLock()
	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	accounts := make([]Account, 0, len(ids))
	for _, id := range ids {
		if acct, err := s.GetAccount(id); err == nil {
			accounts = append(accounts, acct)
		}
	}
	return accounts
}

// Save writes the current ledger snapshot to the configured store.
// Balances are copied account by account under their own locks; the
// store itself is called with no lock held.
func (s *Service) Save() error {
	if s.store == nil {
		return fmt.Errorf("no store configured")
	}

	s.mu.RLock()
	nextID := s.nextID
	s.mu.RUnlock()

	snapshot := &storage.Snapshot{NextID: nextID}
	for _, acct := range s.ListAccounts() {
		snapshot.Accounts = append(snapshot.Accounts, storage.Record{
			ID:      acct.ID,
			Name:    acct.Name,
			Balance: acct.Balance,
		})
	}
	return s.store.Save(snapshot)
}

// Load replaces the ledger state with the snapshot from the configured
// store. Meant for process start or an explicit operator request, not
// for use concurrently with in-flight mutations.
func (s *Service) Load() error {
	if s.store == nil {
		return fmt.Errorf("no store configured")
	}

	snapshot, err := s.store.Load()
	if err != nil {
		return err
	}

	accounts := make(map[string]*Account, len(snapshot.Accounts))
	for _, rec := range snapshot.Accounts {
		accounts[rec.ID] = NewAccount(rec.ID, rec.Name, rec.Balance)
	}

	s.mu.Lock()
	s.accounts = accounts
	if snapshot.NextID > 0 {
		s.nextID = snapshot.NextID
	}
	s.mu.Unlock()
	return nil
}

func (s *Service) exists(accountID string) bool {
	s.mu.RLock()
	_, ok := s.accounts[accountID]
	s.mu.RUnlock()
	return ok
}

// lookup resolves an id against the registry for the executor.
func (s *Service) lookup(accountID string) (*Account, bool) {
	s.mu.RLock()
	acct, ok := s.accounts[accountID]
	s.mu.RUnlock()
	return acct, ok
}

func (s *Service) recordSingle(action, accountID string, amount decimal.Decimal, balance *decimal.Decimal, opErr error) {
	ev := audit.NewEvent(action)
	ev.AccountID = accountID
	ev.Amount = amount
	if opErr != nil {
		ev.Status = audit.StatusFailed
		ev.Reason = opErr.Error()
	} else {
		ev.Status = audit.StatusSuccess
		ev.Balance = balance
	}
	s.record(ev)
}

func (s *Service) recordTransfer(fromID, toID string, amount decimal.Decimal, fromBalance, toBalance *decimal.Decimal, opErr error) {
	ev := audit.NewEvent(audit.ActionTransfer)
	ev.FromAccountID = fromID
	ev.ToAccountID = toID
	ev.Amount = amount
	if opErr != nil {
		ev.Status = audit.StatusFailed
		ev.Reason = opErr.Error()
	} else {
		ev.Status = audit.StatusSuccess
		ev.FromBalance = fromBalance
		ev.ToBalance = toBalance
	}
	s.record(ev)
}

func (s *Service) record(ev audit.Event) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ev); err != nil {
		log.Printf("Failed to record audit event %s: %v", ev.ID, err)
	}
}
