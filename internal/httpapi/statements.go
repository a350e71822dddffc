package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/govalues/money"

	"github.com/tinoosan/finapi/internal/errs"
	"github.com/tinoosan/finapi/internal/idempotency"
	"github.com/tinoosan/finapi/internal/ledger"
)

// POST /deposit/{cpf}
func (s *Server) postDeposit(w http.ResponseWriter, r *http.Request) {
	s.postOperation(w, r, ledger.KindCredit)
}

// POST /withdraw/{cpf}
func (s *Server) postWithdraw(w http.ResponseWriter, r *http.Request) {
	s.postOperation(w, r, ledger.KindDebit)
}

func (s *Server) postOperation(w http.ResponseWriter, r *http.Request, kind ledger.Kind) {
	id, ok := taxIDParam(w, r)
	if !ok {
		return
	}
	if !requireJSON(w, r) {
		return
	}
	c, err := s.accounts.Find(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	var req postOperationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Amount == "" {
		badRequest(w, "amount is required", "invalid_amount")
		return
	}
	amount, err := money.ParseAmount(s.ledger.Currency(), req.Amount.String())
	if err != nil {
		badRequest(w, "invalid amount: "+err.Error(), "invalid_amount")
		return
	}

	// Hash the normalized request so 100 and "100.00" count as the same body.
	norm, _ := json.Marshal(struct {
		Kind        ledger.Kind `json:"kind"`
		Description string      `json:"description"`
		Amount      string      `json:"amount"`
	}{Kind: kind, Description: req.Description, Amount: amount.Decimal().Trim(0).String()})

	// Records are scoped to the account id, not the CPF, so a re-registered CPF
	// never replays responses of the removed account.
	s.idempotent(w, r, c.ID.String(), idempotency.HashBytes(norm), func(w http.ResponseWriter) {
		var (
			op  ledger.Operation
			err error
		)
		switch kind {
		case ledger.KindCredit:
			op, err = s.ledger.Deposit(r.Context(), id, req.Description, amount)
		default:
			op, err = s.ledger.Withdraw(r.Context(), id, req.Description, amount)
		}
		if err != nil {
			if errors.Is(err, errs.ErrInsufficientFunds) {
				s.metrics.insufficientFunds.Inc()
			}
			s.writeServiceErr(w, r, err)
			return
		}
		s.metrics.operations.WithLabelValues(string(kind)).Inc()
		s.log.Info("statement appended", "req_id", chimw.GetReqID(r.Context()), "operation_id", op.ID, "type", kind)
		toJSON(w, http.StatusCreated, toOperationResponse(op))
	})
}

// GET /account/{cpf}/balance
func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := taxIDParam(w, r)
	if !ok {
		return
	}
	bal, err := s.ledger.Balance(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, balanceResponse{CPF: id, Balance: amountString(bal), Currency: bal.Curr().Code()})
}

// GET /statements/{cpf}
func (s *Server) getStatements(w http.ResponseWriter, r *http.Request) {
	id, ok := taxIDParam(w, r)
	if !ok {
		return
	}
	ops, err := s.ledger.Statements(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, statementsResponse{CPF: id, Statements: toOperationResponses(ops)})
}

// GET /statements/{cpf}/date?date=YYYY-MM-DD
func (s *Server) getStatementsOnDate(w http.ResponseWriter, r *http.Request) {
	id, ok := taxIDParam(w, r)
	if !ok {
		return
	}
	raw := r.URL.Query().Get("date")
	if raw == "" {
		badRequest(w, "date is required", "invalid")
		return
	}
	day, err := ledger.ParseDate(raw)
	if err != nil {
		badRequest(w, "invalid date, want "+ledger.DateLayout, "invalid")
		return
	}
	ops, err := s.ledger.StatementsOnDate(r.Context(), id, day)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, statementsResponse{CPF: id, Date: day.String(), Statements: toOperationResponses(ops)})
}
