package httpapi

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/finapi/internal/cpf"
	"github.com/tinoosan/finapi/internal/ledger"
)

type postAccountRequest struct {
	Name string `json:"name"`
	CPF  string `json:"cpf"`
}

type updateAccountRequest struct {
	Name string `json:"name"`
}

// postOperationRequest is shared by deposit and withdraw. Amount accepts a JSON
// number or a numeric string.
type postOperationRequest struct {
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
}

type customerResponse struct {
	ID         uuid.UUID           `json:"id"`
	Name       string              `json:"name"`
	CPF        string              `json:"cpf"`
	CreatedAt  time.Time           `json:"created_at"`
	Statements []operationResponse `json:"statements"`
}

type operationResponse struct {
	ID          uuid.UUID   `json:"id"`
	Description string      `json:"description"`
	Amount      string      `json:"amount"`
	Currency    string      `json:"currency"`
	Type        ledger.Kind `json:"type"`
	CreatedAt   time.Time   `json:"created_at"`
}

type balanceResponse struct {
	CPF      string `json:"cpf"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

type listAccountsResponse struct {
	Items []customerSummary `json:"items"`
}

// customerSummary omits the history; GET /account/{cpf} carries it.
type customerSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CPF       string    `json:"cpf"`
	CreatedAt time.Time `json:"created_at"`
}

type statementsResponse struct {
	CPF        string              `json:"cpf"`
	Date       string              `json:"date,omitempty"`
	Statements []operationResponse `json:"statements"`
}

func toCustomerResponse(c ledger.Customer) customerResponse {
	return customerResponse{
		ID:         c.ID,
		Name:       c.Name,
		CPF:        cpf.Format(c.TaxID),
		CreatedAt:  c.CreatedAt,
		Statements: toOperationResponses(c.Statements),
	}
}

func toCustomerSummary(c ledger.Customer) customerSummary {
	return customerSummary{ID: c.ID, Name: c.Name, CPF: cpf.Format(c.TaxID), CreatedAt: c.CreatedAt}
}

func toOperationResponse(op ledger.Operation) operationResponse {
	return operationResponse{
		ID:          op.ID,
		Description: op.Description,
		Amount:      amountString(op.Amount),
		Currency:    op.Amount.Curr().Code(),
		Type:        op.Kind,
		CreatedAt:   op.CreatedAt,
	}
}

func toOperationResponses(ops []ledger.Operation) []operationResponse {
	out := make([]operationResponse, 0, len(ops))
	for _, op := range ops {
		out = append(out, toOperationResponse(op))
	}
	return out
}

func amountString(a money.Amount) string {
	return a.Decimal().String()
}
