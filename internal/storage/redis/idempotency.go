// Package redis keeps idempotency records in Redis so replays survive restarts
// and are shared between API replicas.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tinoosan/finapi/internal/idempotency"
)

const namespace = "finapi:idem"

// Store implements idempotency.Store on a go-redis client.
// All methods are safe for concurrent use.
type Store struct {
	client goredis.UniversalClient
}

// Open connects to addr and verifies the connection with a PING.
func Open(ctx context.Context, addr, password string) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

// Close releases the underlying client.
func (s *Store) Close() error { return s.client.Close() }

// Ready pings Redis.
func (s *Store) Ready(ctx context.Context) error { return s.client.Ping(ctx).Err() }

// Reserve implements idempotency.Store. SETNX writes the pending marker only
// when the key is free; otherwise the current record is returned.
func (s *Store) Reserve(ctx context.Context, key, bodyHash string, ttl time.Duration) (idempotency.Record, bool, error) {
	marker, err := json.Marshal(idempotency.Record{BodyHash: bodyHash, Pending: true})
	if err != nil {
		return idempotency.Record{}, false, err
	}
	k := namespace + ":" + key
	// The holder's record can expire between SETNX and GET; retry once.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, k, marker, ttl).Result()
		if err != nil {
			return idempotency.Record{}, false, err
		}
		if ok {
			return idempotency.Record{}, true, nil
		}
		raw, err := s.client.Get(ctx, k).Bytes()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return idempotency.Record{}, false, err
		}
		var rec idempotency.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return idempotency.Record{}, false, fmt.Errorf("decode idempotency record: %w", err)
		}
		return rec, false, nil
	}
	return idempotency.Record{}, false, fmt.Errorf("reserve %s: key changed concurrently", key)
}

// Complete implements idempotency.Store. A ttl of zero keeps the record until evicted.
func (s *Store) Complete(ctx context.Context, key string, rec idempotency.Record, ttl time.Duration) error {
	rec.Pending = false
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, namespace+":"+key, raw, ttl).Err()
}

// Release implements idempotency.Store.
func (s *Store) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, namespace+":"+key).Err()
}
