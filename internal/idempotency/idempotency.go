// Package idempotency defines the replay record shared by the HTTP layer and
// the idempotency store backends.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Record is the response produced for an idempotency key. Pending marks a key
// that has been reserved by a request still in flight.
type Record struct {
	BodyHash string `json:"body_hash"`
	Status   int    `json:"status"`
	Payload  []byte `json:"payload"`
	Pending  bool   `json:"pending,omitempty"`
}

// Store persists Records by key for a bounded time.
//
// A request first calls Reserve. Only the caller that gets reserved == true
// runs the operation, then either Completes the key with the final response
// or Releases it so the request can be retried.
type Store interface {
	// Reserve stores a pending record under key if the key is free. When the key
	// is taken it returns the existing record and reserved == false.
	Reserve(ctx context.Context, key, bodyHash string, ttl time.Duration) (existing Record, reserved bool, err error)
	// Complete replaces the pending record with the final response.
	Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error
	// Release drops the key.
	Release(ctx context.Context, key string) error
}

// HashBytes returns the hex sha256 of b, used to detect key reuse with a different body.
func HashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
