package persistence

import (
	"context"

	"github.com/herbtrace/backend/internal/application/traceability"
	"github.com/herbtrace/backend/internal/domain/batch"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction. A returned error rolls back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos traceability.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) Batches() batch.HerbBatchRepository {
	return NewGormHerbBatchRepository(r.tx)
}

func (r *gormTransactionalRepositories) TraceBindings() batch.TraceBindingRepository {
	return NewGormTraceBindingRepository(r.tx)
}

var (
	_ traceability.TransactionScope          = (*GormTransactionScope)(nil)
	_ traceability.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
