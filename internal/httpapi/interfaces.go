package httpapi

import "context"

// ReadyChecker is optionally implemented by backing stores to indicate readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}
