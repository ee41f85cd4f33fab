package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ledger-core/internal/domain/account"
	"github.com/ledger-core/internal/domain/outbox"
	"github.com/ledger-core/internal/domain/transaction"
)

type balanceWrite struct {
	base  int64 // committed balance the first swap was made against
	value int64
	swaps int
}

// unit is one storage transaction: staged writes plus the account locks it holds.
type unit struct {
	store *Store

	held     map[uuid.UUID]chan struct{}
	created  map[uuid.UUID]*account.Account
	balances map[uuid.UUID]*balanceWrite
	statuses map[uuid.UUID]account.Status
	appended []*transaction.Transaction
	messages []*outbox.Message
}

func newUnit(s *Store) *unit {
	return &unit{
		store:    s,
		held:     make(map[uuid.UUID]chan struct{}),
		created:  make(map[uuid.UUID]*account.Account),
		balances: make(map[uuid.UUID]*balanceWrite),
		statuses: make(map[uuid.UUID]account.Status),
	}
}

func (u *unit) lock(ctx context.Context, id uuid.UUID) error {
	if _, ok := u.held[id]; ok {
		return nil
	}
	if _, ok := u.created[id]; ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l := u.store.lockFor(id)
	select {
	case l <- struct{}{}:
		u.held[id] = l
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *unit) release() {
	for id, l := range u.held {
		<-l
		delete(u.held, id)
	}
}

// view is the account as this unit sees it: committed state overlaid with
// staged writes. Returns nil when the account does not exist.
func (u *unit) view(id uuid.UUID) *account.Account {
	if acc, ok := u.created[id]; ok {
		cp := *acc
		return &cp
	}
	acc := u.store.committedAccount(id)
	if acc == nil {
		return nil
	}
	if w, ok := u.balances[id]; ok {
		acc.Balance = w.value
		acc.Version += w.swaps
	}
	if st, ok := u.statuses[id]; ok {
		acc.Status = st
		acc.Version++
	}
	return acc
}

func (u *unit) viewByNumber(number string) *account.Account {
	for _, acc := range u.created {
		if acc.Number == number {
			cp := *acc
			return &cp
		}
	}
	acc := u.store.committedByNumber(number)
	if acc == nil {
		return nil
	}
	return u.view(acc.ID)
}

func (u *unit) create(acc *account.Account) error {
	if u.viewByNumber(acc.Number) != nil {
		return account.ErrDuplicateAccountNumber{Number: acc.Number}
	}
	cp := *acc
	u.created[acc.ID] = &cp
	return nil
}

func (u *unit) compareAndSwap(id uuid.UUID, expected, newBalance int64) error {
	cur := u.view(id)
	if cur == nil {
		return account.ErrAccountNotFound{AccountID: id}
	}
	if cur.Balance != expected {
		return account.ErrConcurrentModification{AccountID: id}
	}
	if acc, ok := u.created[id]; ok {
		acc.Balance = newBalance
		acc.Version++
		return nil
	}
	w, ok := u.balances[id]
	if !ok {
		w = &balanceWrite{base: expected}
		u.balances[id] = w
	}
	w.value = newBalance
	w.swaps++
	return nil
}

func (u *unit) setStatus(id uuid.UUID, status account.Status) error {
	if u.view(id) == nil {
		return account.ErrAccountNotFound{AccountID: id}
	}
	if acc, ok := u.created[id]; ok {
		acc.Status = status
		acc.Version++
		return nil
	}
	u.statuses[id] = status
	return nil
}

func (u *unit) stagedByKey(key string) *transaction.Transaction {
	for _, tx := range u.appended {
		if tx.IdempotencyKey == key {
			return tx
		}
	}
	return nil
}

func (u *unit) appendTx(tx *transaction.Transaction) error {
	if tx.IdempotencyKey != "" {
		u.store.mu.Lock()
		_, exists := u.store.byKey[tx.IdempotencyKey]
		u.store.mu.Unlock()
		if exists || u.stagedByKey(tx.IdempotencyKey) != nil {
			return transaction.ErrDuplicateIdempotencyKey{Key: tx.IdempotencyKey}
		}
	}
	tx.Sequence = u.store.nextSeq()
	cp := *tx
	u.appended = append(u.appended, &cp)
	return nil
}

func (u *unit) addMessage(m *outbox.Message) {
	u.store.mu.Lock()
	u.store.outboxSeq++
	m.ID = u.store.outboxSeq
	u.store.mu.Unlock()

	cp := *m
	u.messages = append(u.messages, &cp)
}

// commit validates staged writes against committed state and applies them
// atomically. Validation failures leave committed state untouched.
func (u *unit) commit() error {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range u.created {
		if _, taken := s.byNumber[acc.Number]; taken {
			return account.ErrDuplicateAccountNumber{Number: acc.Number}
		}
	}
	for id, w := range u.balances {
		acc, ok := s.accounts[id]
		if !ok {
			return account.ErrAccountNotFound{AccountID: id}
		}
		if acc.Balance != w.base {
			return account.ErrConcurrentModification{AccountID: id}
		}
	}
	for _, tx := range u.appended {
		if tx.IdempotencyKey == "" {
			continue
		}
		if _, dup := s.byKey[tx.IdempotencyKey]; dup {
			return transaction.ErrDuplicateIdempotencyKey{Key: tx.IdempotencyKey}
		}
	}

	now := time.Now().UTC()
	for id, acc := range u.created {
		s.accounts[id] = acc
		s.byNumber[acc.Number] = id
	}
	for id, w := range u.balances {
		acc := s.accounts[id]
		acc.Balance = w.value
		acc.Version += w.swaps
		acc.UpdatedAt = now
	}
	for id, st := range u.statuses {
		acc := s.accounts[id]
		acc.Status = st
		acc.Version++
		acc.UpdatedAt = now
	}
	for _, tx := range u.appended {
		s.transactions = append(s.transactions, tx)
		s.byID[tx.ID] = tx
		if tx.IdempotencyKey != "" {
			s.byKey[tx.IdempotencyKey] = tx
		}
	}
	if len(u.appended) > 0 {
		sort.SliceStable(s.transactions, func(i, j int) bool {
			return s.transactions[i].Sequence < s.transactions[j].Sequence
		})
	}
	s.messages = append(s.messages, u.messages...)
	if len(u.messages) > 0 {
		sort.SliceStable(s.messages, func(i, j int) bool { return s.messages[i].ID < s.messages[j].ID })
	}
	return nil
}
