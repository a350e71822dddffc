package httpapi

import (
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/finapi/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg, code string) {
	writeErr(w, http.StatusBadRequest, msg, code)
}
func notFound(w http.ResponseWriter) { writeErr(w, http.StatusNotFound, "not_found", "not_found") }
func conflict(w http.ResponseWriter, msg, code string) {
	writeErr(w, http.StatusConflict, msg, code)
}
func unprocessable(w http.ResponseWriter, msg, code string) {
	writeErr(w, http.StatusUnprocessableEntity, msg, code)
}

// writeServiceErr maps a service error to its HTTP status. Anything unrecognised
// is logged and reported as 500 without leaking the message.
func (s *Server) writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		notFound(w)
	case errors.Is(err, errs.ErrDuplicateAccount):
		conflict(w, "account already exists for this cpf", "duplicate_account")
	case errors.Is(err, errs.ErrInsufficientFunds):
		unprocessable(w, "insufficient funds", "insufficient_funds")
	case errors.Is(err, errs.ErrInvalidAmount):
		badRequest(w, err.Error(), "invalid_amount")
	case errors.Is(err, errs.ErrInvalid):
		badRequest(w, err.Error(), "invalid")
	default:
		s.log.Error("request failed", "req_id", chimw.GetReqID(r.Context()), "err", err)
		writeErr(w, http.StatusInternalServerError, "internal", "internal")
	}
}
