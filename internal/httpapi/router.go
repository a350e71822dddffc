// Package httpapi wires the HTTP surface of the account ledger.
// Handlers stay thin and delegate business rules to the service layer.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tinoosan/finapi/internal/idempotency"
	"github.com/tinoosan/finapi/internal/service/account"
	"github.com/tinoosan/finapi/internal/service/statement"
)

// Server wires handlers and middleware using Chi.
type Server struct {
	accounts account.Service
	ledger   statement.Service
	idem     idempotency.Store
	idemTTL  time.Duration
	origins  []string
	ready    []ReadyChecker
	metrics  *metrics
	log      *slog.Logger
	rt       *chi.Mux
}

// Option customizes the server.
type Option func(*Server)

// WithIdempotencyTTL sets how long replay records are kept.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(s *Server) { s.idemTTL = ttl }
}

// WithAllowedOrigins sets the CORS allow-list. Defaults to "*".
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithReadyCheck adds a dependency probed by /readyz.
func WithReadyCheck(rc ReadyChecker) Option {
	return func(s *Server) {
		if rc != nil {
			s.ready = append(s.ready, rc)
		}
	}
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by request logging, panic recovery and 500 responses.
func New(accounts account.Service, ledger statement.Service, idem idempotency.Store, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		accounts: accounts,
		ledger:   ledger,
		idem:     idem,
		idemTTL:  24 * time.Hour,
		origins:  []string{"*"},
		log:      logger,
		rt:       chi.NewRouter(),
	}
	for _, o := range opts {
		o(s)
	}
	if rc, ok := idem.(ReadyChecker); ok {
		s.ready = append(s.ready, rc)
	}
	s.metrics = newMetrics(s.countAccounts)

	s.rt.Use(chimw.RequestID)
	s.rt.Use(chimw.RealIP)
	s.rt.Use(requestLogger(logger))
	s.rt.Use(recoverer(logger))
	s.rt.Use(s.metrics.middleware)
	s.rt.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"Idempotent-Replayed"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints.
func (s *Server) routes() {
	// Accounts
	s.rt.Post("/account", s.postAccount)
	s.rt.Get("/accounts", s.listAccounts)
	s.rt.Route("/account/{cpf}", func(r chi.Router) {
		r.Get("/", s.getAccount)
		r.Put("/", s.updateAccount)
		r.Delete("/", s.deleteAccount)
		r.Get("/balance", s.getBalance)
	})
	// Ledger
	s.rt.Post("/deposit/{cpf}", s.postDeposit)
	s.rt.Post("/withdraw/{cpf}", s.postWithdraw)
	s.rt.Get("/statements/{cpf}", s.getStatements)
	s.rt.Get("/statements/{cpf}/date", s.getStatementsOnDate)
	// Ops
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", s.metrics.handler())
}
