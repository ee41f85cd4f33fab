// Package memory is an in-process implementation of the account store, the
// transaction log and the outbox. A unit of work stages its writes and holds
// per-account locks until it commits or rolls back, mirroring the row locks
// and transaction semantics of the PostgreSQL implementation.
package memory

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/ledger-core/internal/domain/account"
	"github.com/ledger-core/internal/domain/outbox"
	"github.com/ledger-core/internal/domain/transaction"
	"github.com/ledger-core/internal/ledger"
)

// Store holds committed state. The zero value is not usable; call NewStore.
type Store struct {
	logger *slog.Logger

	mu           sync.Mutex
	accounts     map[uuid.UUID]*account.Account
	byNumber     map[string]uuid.UUID
	transactions []*transaction.Transaction
	byID         map[uuid.UUID]*transaction.Transaction
	byKey        map[string]*transaction.Transaction
	messages     []*outbox.Message
	seq          int64
	outboxSeq    int64

	// one single-slot semaphore per account, so lock waits honour ctx
	lockMu sync.Mutex
	locks  map[uuid.UUID]chan struct{}
}

var _ ledger.Store = (*Store)(nil)

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		logger:   logger,
		accounts: make(map[uuid.UUID]*account.Account),
		byNumber: make(map[string]uuid.UUID),
		byID:     make(map[uuid.UUID]*transaction.Transaction),
		byKey:    make(map[string]*transaction.Transaction),
		locks:    make(map[uuid.UUID]chan struct{}),
	}
}

// Accounts returns a repository that reads committed state and autocommits writes.
func (s *Store) Accounts() account.Repository { return &accountRepo{store: s} }

func (s *Store) Transactions() transaction.Repository { return &transactionRepo{store: s} }

func (s *Store) Outbox() outbox.Repository { return &outboxRepo{store: s} }

// RunInTx implements ledger.Store.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, repos ledger.Repositories) error) error {
	u := newUnit(s)
	defer u.release()

	repos := ledger.Repositories{
		Accounts:     &accountRepo{store: s, unit: u},
		Transactions: &transactionRepo{store: s, unit: u},
		Outbox:       &outboxRepo{store: s, unit: u},
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	return u.commit()
}

// autocommit runs a single repository write in its own unit of work.
func (s *Store) autocommit(ctx context.Context, fn func(u *unit) error) error {
	u := newUnit(s)
	defer u.release()
	if err := fn(u); err != nil {
		return err
	}
	return u.commit()
}

func (s *Store) lockFor(id uuid.UUID) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[id] = l
	}
	return l
}

func (s *Store) nextSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// committedAccount returns a copy of the committed account, or nil.
func (s *Store) committedAccount(id uuid.UUID) *account.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[id]; ok {
		cp := *acc
		return &cp
	}
	return nil
}

func (s *Store) committedByNumber(number string) *account.Account {
	s.mu.Lock()
	id, ok := s.byNumber[number]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.committedAccount(id)
}

func (s *Store) listIDs(after uuid.UUID, limit int) []uuid.UUID {
	s.mu.Lock()
	ids := make([]uuid.UUID, 0, len(s.accounts))
	for id := range s.accounts {
		if bytes.Compare(id[:], after[:]) > 0 {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}
