package redis

import "github.com/tinoosan/finapi/internal/idempotency"

var _ idempotency.Store = (*Store)(nil)
