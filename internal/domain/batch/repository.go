package batch

import (
	"context"

	"github.com/herbtrace/backend/internal/domain/shared"
)

// HerbBatchRepository persists herb batches
type HerbBatchRepository interface {
	// FindByID returns shared.ErrNotFound for unknown ids
	FindByID(ctx context.Context, id string) (*HerbBatch, error)
	// FindByIDForUpdate loads the row under a row lock inside a transaction
	FindByIDForUpdate(ctx context.Context, id string) (*HerbBatch, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]HerbBatch, int64, error)
	Create(ctx context.Context, b *HerbBatch) error
	// SaveWithLock persists b if the stored version is b.Version-1,
	// returning shared.ErrConcurrencyConflict otherwise
	SaveWithLock(ctx context.Context, b *HerbBatch) error
	Exists(ctx context.Context, id string) (bool, error)
}

// TraceBindingRepository persists trace bindings
type TraceBindingRepository interface {
	Create(ctx context.Context, t *TraceBinding) error
	FindByCode(ctx context.Context, code string) (*TraceBinding, error)
	FindByItemID(ctx context.Context, itemID string) ([]TraceBinding, error)
	Deactivate(ctx context.Context, t *TraceBinding) error
}
