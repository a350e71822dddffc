package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tinoosan/finapi/internal/idempotency"
)

type idemEntry struct {
	rec       idempotency.Record
	expiresAt time.Time
}

func (e idemEntry) live(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

// IdempotencyStore keeps replay records in memory with a per-record TTL.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idemEntry
	now     func() time.Time
}

// NewIdempotencyStore constructs an empty store. A nil clock defaults to time.Now.
func NewIdempotencyStore(now func() time.Time) *IdempotencyStore {
	if now == nil {
		now = time.Now
	}
	return &IdempotencyStore{entries: make(map[string]idemEntry), now: now}
}

// Reserve implements idempotency.Store. The check and the insert share one lock.
func (s *IdempotencyStore) Reserve(_ context.Context, key, bodyHash string, ttl time.Duration) (idempotency.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if cur, ok := s.entries[key]; ok {
		if cur.live(now) {
			return cloneRecord(cur.rec), false, nil
		}
		delete(s.entries, key)
	}
	s.entries[key] = s.entry(idempotency.Record{BodyHash: bodyHash, Pending: true}, now, ttl)
	return idempotency.Record{}, true, nil
}

// Complete implements idempotency.Store.
func (s *IdempotencyStore) Complete(_ context.Context, key string, rec idempotency.Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Pending = false
	s.entries[key] = s.entry(cloneRecord(rec), s.now(), ttl)
	return nil
}

// Release implements idempotency.Store.
func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *IdempotencyStore) entry(rec idempotency.Record, now time.Time, ttl time.Duration) idemEntry {
	e := idemEntry{rec: rec}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	return e
}

func cloneRecord(r idempotency.Record) idempotency.Record {
	r.Payload = append([]byte(nil), r.Payload...)
	return r
}
