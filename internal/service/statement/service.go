// Package statement implements the per-account ledger: deposits, withdrawals,
// the running balance and date-filtered statements.
package statement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/finapi/internal/errs"
	"github.com/tinoosan/finapi/internal/ledger"
)

// Repo defines read operations needed by the service.
type Repo interface {
	Statements(ctx context.Context, taxID string) ([]ledger.Operation, error)
}

// Writer defines write operations needed by the service. The guard runs under
// the account's lock right before the append.
type Writer interface {
	AppendOperation(ctx context.Context, taxID string, op ledger.Operation, guard func(history []ledger.Operation) error) (ledger.Operation, error)
}

// Service exposes ledger operations scoped to one account.
type Service interface {
	Deposit(ctx context.Context, taxID, description string, amount money.Amount) (ledger.Operation, error)
	Withdraw(ctx context.Context, taxID, description string, amount money.Amount) (ledger.Operation, error)
	Balance(ctx context.Context, taxID string) (money.Amount, error)
	Statements(ctx context.Context, taxID string) ([]ledger.Operation, error)
	StatementsOnDate(ctx context.Context, taxID string, day ledger.Date) ([]ledger.Operation, error)
	Currency() string
	Location() *time.Location
}

// Option customizes the service.
type Option func(*service)

// WithClock overrides the time source used to stamp operations.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone used to truncate timestamps to calendar days.
func WithLocation(loc *time.Location) Option {
	return func(s *service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

type service struct {
	repo   Repo
	writer Writer
	curr   string
	loc    *time.Location
	now    func() time.Time
}

// New builds the service. All amounts are expected in curr (ISO 4217 code).
func New(repo Repo, writer Writer, curr string, opts ...Option) Service {
	s := &service{repo: repo, writer: writer, curr: strings.ToUpper(curr), loc: time.Local, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *service) Currency() string         { return s.curr }
func (s *service) Location() *time.Location { return s.loc }

// Deposit appends a credit stamped with the current time.
func (s *service) Deposit(ctx context.Context, taxID, description string, amount money.Amount) (ledger.Operation, error) {
	if err := s.validateAmount(amount); err != nil {
		return ledger.Operation{}, err
	}
	op := s.newOperation(ledger.KindCredit, description, amount)
	return s.writer.AppendOperation(ctx, taxID, op, nil)
}

// Withdraw appends a debit unless amount exceeds the current balance, in which
// case errs.ErrInsufficientFunds is returned and the history is left unchanged.
func (s *service) Withdraw(ctx context.Context, taxID, description string, amount money.Amount) (ledger.Operation, error) {
	if err := s.validateAmount(amount); err != nil {
		return ledger.Operation{}, err
	}
	op := s.newOperation(ledger.KindDebit, description, amount)
	return s.writer.AppendOperation(ctx, taxID, op, func(history []ledger.Operation) error {
		bal, err := ledger.Balance(s.curr, history)
		if err != nil {
			return err
		}
		ok, err := ledger.Covers(bal, amount)
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrInsufficientFunds
		}
		return nil
	})
}

// Balance folds the account history: credits minus debits.
func (s *service) Balance(ctx context.Context, taxID string) (money.Amount, error) {
	ops, err := s.repo.Statements(ctx, taxID)
	if err != nil {
		return money.Amount{}, err
	}
	return ledger.Balance(s.curr, ops)
}

// Statements returns the full history in recorded order.
func (s *service) Statements(ctx context.Context, taxID string) ([]ledger.Operation, error) {
	return s.repo.Statements(ctx, taxID)
}

// StatementsOnDate returns the entries recorded on the given calendar day in the
// service time zone. No match yields an empty slice, not an error.
func (s *service) StatementsOnDate(ctx context.Context, taxID string, day ledger.Date) ([]ledger.Operation, error) {
	if day.IsZero() {
		return nil, fmt.Errorf("%w: date is required", errs.ErrInvalid)
	}
	ops, err := s.repo.Statements(ctx, taxID)
	if err != nil {
		return nil, err
	}
	return ledger.OnDate(ops, day, s.loc), nil
}

func (s *service) validateAmount(amount money.Amount) error {
	if !strings.EqualFold(amount.Curr().Code(), s.curr) {
		return fmt.Errorf("%w: expected %s, got %s", errs.ErrInvalidAmount, s.curr, amount.Curr().Code())
	}
	if amount.IsNeg() {
		return fmt.Errorf("%w: amount must be >= 0", errs.ErrInvalidAmount)
	}
	return nil
}

func (s *service) newOperation(kind ledger.Kind, description string, amount money.Amount) ledger.Operation {
	return ledger.Operation{
		ID:          uuid.New(),
		Description: strings.TrimSpace(description),
		Amount:      amount,
		CreatedAt:   s.now(),
		Kind:        kind,
	}
}
