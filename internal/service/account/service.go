// Package account implements the account registry rules: one account per tax id,
// immutable identity fields, editable name, hard deletes.
package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tinoosan/finapi/internal/errs"
	"github.com/tinoosan/finapi/internal/ledger"
)

type Repo interface {
	GetCustomer(ctx context.Context, taxID string) (ledger.Customer, error)
	ListCustomers(ctx context.Context) ([]ledger.Customer, error)
	CountCustomers(ctx context.Context) (int, error)
}

type Writer interface {
	CreateCustomer(ctx context.Context, c ledger.Customer) (ledger.Customer, error)
	UpdateCustomerName(ctx context.Context, taxID, name string) (ledger.Customer, error)
	DeleteCustomer(ctx context.Context, taxID string) error
}

type Service interface {
	Register(ctx context.Context, name, taxID string) (ledger.Customer, error)
	Find(ctx context.Context, taxID string) (ledger.Customer, error)
	List(ctx context.Context) ([]ledger.Customer, error)
	Count(ctx context.Context) (int, error)
	Rename(ctx context.Context, taxID, name string) (ledger.Customer, error)
	Remove(ctx context.Context, taxID string) error
}

// Option customizes the service.
type Option func(*service)

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

type service struct {
	repo   Repo
	writer Writer
	now    func() time.Time
}

func New(repo Repo, writer Writer, opts ...Option) Service {
	s := &service{repo: repo, writer: writer, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register creates an account with an empty history. Fails with errs.ErrDuplicateAccount
// when taxID is already registered.
func (s *service) Register(ctx context.Context, name, taxID string) (ledger.Customer, error) {
	name = strings.TrimSpace(name)
	taxID = strings.TrimSpace(taxID)
	if name == "" {
		return ledger.Customer{}, fmt.Errorf("%w: name is required", errs.ErrInvalid)
	}
	if taxID == "" {
		return ledger.Customer{}, fmt.Errorf("%w: cpf is required", errs.ErrInvalid)
	}
	c := ledger.Customer{
		ID:        uuid.New(),
		Name:      name,
		TaxID:     taxID,
		CreatedAt: s.now(),
	}
	return s.writer.CreateCustomer(ctx, c)
}

func (s *service) Find(ctx context.Context, taxID string) (ledger.Customer, error) {
	taxID = strings.TrimSpace(taxID)
	if taxID == "" {
		return ledger.Customer{}, errs.ErrNotFound
	}
	return s.repo.GetCustomer(ctx, taxID)
}

func (s *service) List(ctx context.Context) ([]ledger.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// Count reports how many accounts are registered.
func (s *service) Count(ctx context.Context) (int, error) {
	return s.repo.CountCustomers(ctx)
}

// Rename replaces the customer's name; statements are untouched.
func (s *service) Rename(ctx context.Context, taxID, name string) (ledger.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ledger.Customer{}, fmt.Errorf("%w: name is required", errs.ErrInvalid)
	}
	taxID = strings.TrimSpace(taxID)
	if taxID == "" {
		return ledger.Customer{}, errs.ErrNotFound
	}
	return s.writer.UpdateCustomerName(ctx, taxID, name)
}

// Remove deletes the account and its whole history.
func (s *service) Remove(ctx context.Context, taxID string) error {
	taxID = strings.TrimSpace(taxID)
	if taxID == "" {
		return errs.ErrNotFound
	}
	return s.writer.DeleteCustomer(ctx, taxID)
}
