package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/finapi/internal/cpf"
)

// maxBodyBytes caps request bodies; every payload here is a handful of fields.
const maxBodyBytes = 1 << 16

// taxIDParam reads and validates the {cpf} path parameter. On failure it writes
// 400 and returns false.
func taxIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := cpf.Normalize(chi.URLParam(r, "cpf"))
	if !cpf.IsValid(id) {
		badRequest(w, "invalid cpf", "invalid_cpf")
		return "", false
	}
	return id, true
}

// decodeJSON decodes a single JSON object into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid JSON: "+err.Error(), "invalid_json")
		return false
	}
	return true
}

// POST /account
func (s *Server) postAccount(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var req postAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := cpf.Normalize(req.CPF)
	if !cpf.IsValid(id) {
		badRequest(w, "invalid cpf", "invalid_cpf")
		return
	}
	c, err := s.accounts.Register(r.Context(), req.Name, id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	s.log.Info("account registered", "req_id", chimw.GetReqID(r.Context()), "account_id", c.ID)
	toJSON(w, http.StatusCreated, toCustomerResponse(c))
}

// GET /accounts
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := s.accounts.List(r.Context())
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	resp := listAccountsResponse{Items: make([]customerSummary, 0, len(list))}
	for _, c := range list {
		resp.Items = append(resp.Items, toCustomerSummary(c))
	}
	toJSON(w, http.StatusOK, resp)
}

// GET /account/{cpf}
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := taxIDParam(w, r)
	if !ok {
		return
	}
	c, err := s.accounts.Find(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toCustomerResponse(c))
}

// PUT /account/{cpf}
func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := taxIDParam(w, r)
	if !ok {
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var req updateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.accounts.Rename(r.Context(), id, req.Name)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toCustomerResponse(c))
}

// DELETE /account/{cpf}
func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := taxIDParam(w, r)
	if !ok {
		return
	}
	if err := s.accounts.Remove(r.Context(), id); err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	s.log.Info("account removed", "req_id", chimw.GetReqID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// countAccounts backs the accounts gauge; it is read on every scrape.
func (s *Server) countAccounts() float64 {
	n, err := s.accounts.Count(context.Background())
	if err != nil {
		s.log.Warn("count accounts", "err", err)
		return 0
	}
	return float64(n)
}
