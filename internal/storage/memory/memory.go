// Package memory provides the in-memory account store used by the service.
// One Store is created per process and handed to the services; nothing is persisted.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tinoosan/finapi/internal/errs"
	"github.com/tinoosan/finapi/internal/ledger"
)

// record is the store's entry for one customer.
// mu guards every field and is held across check-then-append in AppendOperation.
type record struct {
	mu       sync.Mutex
	customer ledger.Customer
	// removed is set once the record is unlinked from the index so that callers
	// still holding the pointer cannot write into a deleted account.
	removed bool
}

// Store is an in-memory implementation of the account repository and writer.
// The RWMutex guards the tax id index only; per-account state is guarded by
// the record's own mutex so operations on different accounts never contend.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*record
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{accounts: make(map[string]*record)}
}

// lookup resolves a tax id to its live record without taking the record lock.
func (s *Store) lookup(taxID string) (*record, error) {
	s.mu.RLock()
	a, ok := s.accounts[taxID]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.ErrNotFound
	}
	return a, nil
}

// CreateCustomer inserts c. The uniqueness check and insert share one write lock.
func (s *Store) CreateCustomer(_ context.Context, c ledger.Customer) (ledger.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[c.TaxID]; exists {
		return ledger.Customer{}, errs.ErrDuplicateAccount
	}
	c.Statements = make([]ledger.Operation, 0)
	s.accounts[c.TaxID] = &record{customer: c}
	return snapshot(c), nil
}

// GetCustomer returns a copy of the customer including its statement history.
func (s *Store) GetCustomer(_ context.Context, taxID string) (ledger.Customer, error) {
	a, err := s.lookup(taxID)
	if err != nil {
		return ledger.Customer{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.removed {
		return ledger.Customer{}, errs.ErrNotFound
	}
	return snapshot(a.customer), nil
}

// ListCustomers returns every customer ordered by registration time.
func (s *Store) ListCustomers(_ context.Context) ([]ledger.Customer, error) {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.accounts))
	for _, a := range s.accounts {
		recs = append(recs, a)
	}
	s.mu.RUnlock()

	out := make([]ledger.Customer, 0, len(recs))
	for _, a := range recs {
		a.mu.Lock()
		if !a.removed {
			out = append(out, snapshot(a.customer))
		}
		a.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TaxID < out[j].TaxID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// CountCustomers returns the number of registered accounts.
func (s *Store) CountCustomers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}

// UpdateCustomerName replaces the display name in place.
func (s *Store) UpdateCustomerName(_ context.Context, taxID, name string) (ledger.Customer, error) {
	a, err := s.lookup(taxID)
	if err != nil {
		return ledger.Customer{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.removed {
		return ledger.Customer{}, errs.ErrNotFound
	}
	a.customer.Name = name
	return snapshot(a.customer), nil
}

// DeleteCustomer removes exactly the account keyed by taxID and its history.
func (s *Store) DeleteCustomer(_ context.Context, taxID string) error {
	s.mu.Lock()
	a, ok := s.accounts[taxID]
	if !ok {
		s.mu.Unlock()
		return errs.ErrNotFound
	}
	delete(s.accounts, taxID)
	s.mu.Unlock()

	a.mu.Lock()
	a.removed = true
	a.customer.Statements = nil
	a.mu.Unlock()
	return nil
}

// Statements returns a copy of the customer's history in recorded order.
func (s *Store) Statements(_ context.Context, taxID string) ([]ledger.Operation, error) {
	a, err := s.lookup(taxID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.removed {
		return nil, errs.ErrNotFound
	}
	return copyOps(a.customer.Statements), nil
}

// AppendOperation appends op to the customer's history. When guard is non-nil it
// runs first against the current history under the same account lock; a guard
// error aborts the append and is returned unchanged.
func (s *Store) AppendOperation(_ context.Context, taxID string, op ledger.Operation, guard func(history []ledger.Operation) error) (ledger.Operation, error) {
	a, err := s.lookup(taxID)
	if err != nil {
		return ledger.Operation{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.removed {
		return ledger.Operation{}, errs.ErrNotFound
	}
	if guard != nil {
		if err := guard(a.customer.Statements); err != nil {
			return ledger.Operation{}, err
		}
	}
	a.customer.Statements = append(a.customer.Statements, op)
	return op, nil
}

func snapshot(c ledger.Customer) ledger.Customer {
	c.Statements = copyOps(c.Statements)
	return c
}

func copyOps(ops []ledger.Operation) []ledger.Operation {
	out := make([]ledger.Operation, len(ops))
	copy(out, ops)
	return out
}
