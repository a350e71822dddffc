package memory

import (
	"github.com/tinoosan/finapi/internal/idempotency"
	accountsvc "github.com/tinoosan/finapi/internal/service/account"
	"github.com/tinoosan/finapi/internal/service/statement"
)

// Compile-time interface assertions documenting which interfaces the stores satisfy.
var (
	// Service layer repos and writers
	_ accountsvc.Repo   = (*Store)(nil)
	_ accountsvc.Writer = (*Store)(nil)
	_ statement.Repo    = (*Store)(nil)
	_ statement.Writer  = (*Store)(nil)

	_ idempotency.Store = (*IdempotencyStore)(nil)
)
