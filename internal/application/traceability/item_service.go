package traceability

import (
	"context"
	"time"

	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ItemService serves item reads and metadata edits. Metadata edits are local only
// and are not anchored on the ledger.
type ItemService struct {
	scope    TransactionScope
	batches  batch.HerbBatchRepository
	bindings batch.TraceBindingRepository
	locker   ItemLocker
	now      func() time.Time
}

// NewItemService creates a new ItemService
func NewItemService(
	scope TransactionScope,
	batches batch.HerbBatchRepository,
	bindings batch.TraceBindingRepository,
	locker ItemLocker,
) *ItemService {
	return &ItemService{
		scope:    scope,
		batches:  batches,
		bindings: bindings,
		locker:   locker,
		now:      time.Now,
	}
}

// Get returns an item and its trace codes
func (s *ItemService) Get(ctx context.Context, itemID string) (*ItemView, error) {
	item, err := s.batches.FindByID(ctx, itemID)
	if err != nil {
		return nil, notFoundOr(err, "herb batch %s not found", itemID)
	}
	codes, err := s.bindings.FindByItemID(ctx, itemID)
	if err != nil {
		return nil, shared.NewPersistenceError("failed to load trace codes", err)
	}
	return &ItemView{Item: item, TraceCodes: codes}, nil
}

// List returns a page of items
func (s *ItemService) List(ctx context.Context, filter shared.Filter) (shared.Paginated[batch.HerbBatch], error) {
	items, total, err := s.batches.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[batch.HerbBatch]{}, shared.NewPersistenceError("failed to list items", err)
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// UpdateMetadata merges patch into the item's metadata. Only the collector or an
// administrator may do so.
func (s *ItemService) UpdateMetadata(ctx context.Context, actor shared.Actor, itemID string, patch map[string]any) (*batch.HerbBatch, error) {
	ctx = logger.WithItemID(ctx, itemID)

	unlock, err := s.locker.Lock(ctx, itemID)
	if err != nil {
		return nil, lockError(err)
	}
	defer unlock()

	var updated *batch.HerbBatch
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := loadForUpdate(ctx, repos, itemID)
		if err != nil {
			return err
		}
		if err := item.UpdateMetadata(actor, patch, s.now().UTC()); err != nil {
			return err
		}
		if err := repos.Batches().SaveWithLock(ctx, item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, commitError(err)
	}

	logger.L(ctx).Info("Item metadata updated",
		zap.String("actor_id", actor.ID),
		zap.Int("version", updated.Version),
	)
	return updated, nil
}
