package persistence

import (
	"context"
	"errors"

	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormHerbBatchRepository implements HerbBatchRepository using GORM
type GormHerbBatchRepository struct {
	db *gorm.DB
}

// NewGormHerbBatchRepository creates a new GormHerbBatchRepository
func NewGormHerbBatchRepository(db *gorm.DB) *GormHerbBatchRepository {
	return &GormHerbBatchRepository{db: db}
}

// FindByID finds a herb batch by its ID
func (r *GormHerbBatchRepository) FindByID(ctx context.Context, id string) (*batch.HerbBatch, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate loads the batch with SELECT ... FOR UPDATE.
// Only meaningful inside a transaction; SQLite ignores the locking clause.
func (r *GormHerbBatchRepository) FindByIDForUpdate(ctx context.Context, id string) (*batch.HerbBatch, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormHerbBatchRepository) find(query *gorm.DB, id string) (*batch.HerbBatch, error) {
	var model models.HerbBatchModel
	if err := query.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists batches matching filter, newest first by default
func (r *GormHerbBatchRepository) FindAll(ctx context.Context, filter shared.Filter) ([]batch.HerbBatch, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.HerbBatchModel{}), filter)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	dir := ValidateSortOrder(filter.OrderDir)
	column := ValidateSortField(filter.OrderBy, HerbBatchSortColumns, "created_at")
	query = query.Order(column + " " + dir).Order("id " + dir)
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.HerbBatchModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	items := make([]batch.HerbBatch, len(rows))
	for i := range rows {
		items[i] = *rows[i].ToDomain()
	}
	return items, total, nil
}

// Create inserts a new batch; a duplicate id yields shared.ErrAlreadyExists
func (r *GormHerbBatchRepository) Create(ctx context.Context, b *batch.HerbBatch) error {
	if err := r.db.WithContext(ctx).Create(models.HerbBatchModelFromDomain(b)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormHerbBatchRepository) SaveWithLock(ctx context.Context, b *batch.HerbBatch) error {
	model := models.HerbBatchModelFromDomain(b)
	result := r.db.WithContext(ctx).
		Model(&models.HerbBatchModel{}).
		Where("id = ? AND version = ?", b.ID, b.Version-1).
		Updates(map[string]any{
			"status":     model.Status,
			"metadata":   model.Metadata,
			"version":    model.Version,
			"updated_at": model.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Exists reports whether a batch with id is stored
func (r *GormHerbBatchRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.HerbBatchModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormHerbBatchRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "species":
			query = query.Where("species = ?", value)
		case "collector_id":
			query = query.Where("collector_id = ?", value)
		}
	}
	return query
}

// Ensure GormHerbBatchRepository implements HerbBatchRepository
var _ batch.HerbBatchRepository = (*GormHerbBatchRepository)(nil)
