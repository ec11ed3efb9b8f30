// Package memory is an in-process store for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"finboard/internal/core"
)

type Store struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[string]core.Account
	txs      map[string]core.Transaction
	byID     map[int64]string
}

func New() *Store {
	return &Store{
		accounts: make(map[string]core.Account),
		txs:      make(map[string]core.Transaction),
		byID:     make(map[int64]string),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) FindAccountByPlaidID(_ context.Context, plaidID string) (core.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[plaidID]
	return a, ok, nil
}

// UpsertAccount keeps the internal id of an existing account and replaces
// the rest of its fields.
func (s *Store) UpsertAccount(_ context.Context, a core.Account) (bool, error) {
	if err := a.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.accounts[a.PlaidID]; ok {
		a.ID = existing.ID
		s.accounts[a.PlaidID] = a
		return false, nil
	}
	a.ID = s.id()
	s.accounts[a.PlaidID] = a
	return true, nil
}

func (s *Store) ListAccounts(context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindTransactionByPlaidID(_ context.Context, plaidID string) (core.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[plaidID]
	return t, ok, nil
}

func (s *Store) InsertTransactionIfAbsent(_ context.Context, t core.Transaction) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txs[t.PlaidID]; ok {
		return false, nil
	}
	t.ID = s.id()
	s.txs[t.PlaidID] = t
	s.byID[t.ID] = t.PlaidID
	return true, nil
}

func (s *Store) UpdateTransaction(_ context.Context, id int64, edit core.TransactionEdit) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plaidID, ok := s.byID[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	t := edit.Apply(s.txs[plaidID])
	s.txs[plaidID] = t
	return t, nil
}

// ListRecentTransactions orders by date, newest first, then by id.
func (s *Store) ListRecentTransactions(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	out := make([]core.Transaction, 0, len(s.txs))
	for _, t := range s.txs {
		out = append(out, t)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListTransactionsByPlaidIDs(_ context.Context, plaidIDs []string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, id := range plaidIDs {
		if t, ok := s.txs[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}
