package traceability

import (
	"context"

	"github.com/herbtrace/backend/internal/domain/batch"
)

// TransactionScope provides transactional access to the batch repositories.
// Everything done through the repositories handed to fn commits or rolls back together.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories bound to one transaction.
//
// The audit log is deliberately absent: audit records are written after the
// local commit, outside any batch transaction.
type TransactionalRepositories interface {
	Batches() batch.HerbBatchRepository
	TraceBindings() batch.TraceBindingRepository
}

// NoOpTransactionScope runs fn directly against the given repositories.
// Used by tests and by callers whose repositories are already transactional.
type NoOpTransactionScope struct {
	batches  batch.HerbBatchRepository
	bindings batch.TraceBindingRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(batches batch.HerbBatchRepository, bindings batch.TraceBindingRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{batches: batches, bindings: bindings}
}

// Execute runs fn without a transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) Batches() batch.HerbBatchRepository {
	return s.batches
}

func (s *NoOpTransactionScope) TraceBindings() batch.TraceBindingRepository {
	return s.bindings
}

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
