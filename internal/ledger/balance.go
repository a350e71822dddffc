package ledger

import (
	"fmt"

	"github.com/govalues/money"
)

// Balance folds ops in recorded order: credits add, debits subtract.
// An empty history yields zero in curr.
func Balance(curr string, ops []Operation) (money.Amount, error) {
	bal, err := money.NewAmountFromMinorUnits(curr, 0)
	if err != nil {
		return money.Amount{}, err
	}
	for i, op := range ops {
		switch op.Kind {
		case KindCredit:
			bal, err = bal.Add(op.Amount)
		case KindDebit:
			bal, err = bal.Sub(op.Amount)
		default:
			return money.Amount{}, fmt.Errorf("operation[%d]: unknown kind %q", i, op.Kind)
		}
		if err != nil {
			return money.Amount{}, fmt.Errorf("operation[%d]: %w", i, err)
		}
	}
	return bal, nil
}

// Covers reports whether bal is large enough to pay amount.
func Covers(bal, amount money.Amount) (bool, error) {
	c, err := amount.Cmp(bal)
	if err != nil {
		return false, err
	}
	return c <= 0, nil
}
