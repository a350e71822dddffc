package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
)

// Kind represents the direction of a statement operation.
type Kind string

const (
	// KindCredit adds the operation amount to the balance (deposit).
	KindCredit Kind = "credit"
	// KindDebit subtracts the operation amount from the balance (withdrawal).
	KindDebit Kind = "debit"
)

// Customer is a registered account holder and its statement history.
// TaxID (CPF) is the natural key; ID is an opaque identifier generated at registration.
type Customer struct {
	ID         uuid.UUID
	Name       string
	TaxID      string
	CreatedAt  time.Time
	Statements []Operation
}

// Operation is one immutable statement entry.
type Operation struct {
	ID          uuid.UUID
	Description string
	Amount      money.Amount
	CreatedAt   time.Time
	Kind        Kind
}
