package httpapi

import (
	"bytes"
	"context"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/finapi/internal/idempotency"
)

const headerIdempotencyKey = "Idempotency-Key"

// captureWriter tees the response so it can be stored for replay.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *captureWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }
func (w *captureWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// idempotent runs fn at most once per (account, Idempotency-Key). The key is
// reserved before fn runs, so a concurrent retry gets 409 idempotency_in_progress
// instead of a second append. A finished key replays the stored response when
// the request hash matches and answers 409 idempotency_mismatch otherwise.
// Requests without the header run fn directly.
func (s *Server) idempotent(w http.ResponseWriter, r *http.Request, scope, bodyHash string, fn func(w http.ResponseWriter)) {
	key := r.Header.Get(headerIdempotencyKey)
	if key == "" || s.idem == nil {
		fn(w)
		return
	}
	storeKey := scope + ":" + key
	prev, reserved, err := s.idem.Reserve(r.Context(), storeKey, bodyHash, s.idemTTL)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	if !reserved {
		switch {
		case prev.BodyHash != bodyHash:
			conflict(w, "idempotency key reused with a different request", "idempotency_mismatch")
		case prev.Pending:
			conflict(w, "a request with this idempotency key is in progress", "idempotency_in_progress")
		default:
			s.metrics.replays.Inc()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(prev.Status)
			_, _ = w.Write(prev.Payload)
		}
		return
	}

	rw := &captureWriter{ResponseWriter: w}
	completed := false
	defer func() {
		if completed {
			return
		}
		// fn panicked or failed with 5xx: free the key so the client can retry.
		if err := s.idem.Release(context.WithoutCancel(r.Context()), storeKey); err != nil {
			s.log.Warn("idempotency release failed", "req_id", chimw.GetReqID(r.Context()), "err", err)
		}
	}()
	fn(rw)
	if rw.status >= http.StatusInternalServerError {
		return
	}
	// From here on the key stays taken: if Complete fails the pending marker
	// blocks retries until it expires rather than risking a second append.
	completed = true
	rec := idempotency.Record{BodyHash: bodyHash, Status: rw.status, Payload: rw.buf.Bytes()}
	if err := s.idem.Complete(context.WithoutCancel(r.Context()), storeKey, rec, s.idemTTL); err != nil {
		s.log.Warn("idempotency save failed", "req_id", chimw.GetReqID(r.Context()), "err", err)
	}
}
