package persistence

import (
	"context"
	"errors"

	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTraceBindingRepository implements TraceBindingRepository using GORM
type GormTraceBindingRepository struct {
	db *gorm.DB
}

// NewGormTraceBindingRepository creates a new GormTraceBindingRepository
func NewGormTraceBindingRepository(db *gorm.DB) *GormTraceBindingRepository {
	return &GormTraceBindingRepository{db: db}
}

// Create stores a new binding; a code collision yields shared.ErrAlreadyExists
func (r *GormTraceBindingRepository) Create(ctx context.Context, t *batch.TraceBinding) error {
	if err := r.db.WithContext(ctx).Create(models.TraceBindingModelFromDomain(t)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// FindByCode finds a binding by its public code, active or not
func (r *GormTraceBindingRepository) FindByCode(ctx context.Context, code string) (*batch.TraceBinding, error) {
	var model models.TraceBindingModel
	if err := r.db.WithContext(ctx).First(&model, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByItemID lists the bindings of a batch, oldest first
func (r *GormTraceBindingRepository) FindByItemID(ctx context.Context, itemID string) ([]batch.TraceBinding, error) {
	var rows []models.TraceBindingModel
	if err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at ASC").Order("code ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]batch.TraceBinding, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Deactivate persists a deactivated binding. Already inactive rows are left untouched.
func (r *GormTraceBindingRepository) Deactivate(ctx context.Context, t *batch.TraceBinding) error {
	result := r.db.WithContext(ctx).
		Model(&models.TraceBindingModel{}).
		Where("code = ? AND active = ?", t.Code, true).
		Updates(map[string]any{
			"active":         false,
			"deactivated_at": t.DeactivatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByCode(ctx, t.Code); err != nil {
			return err
		}
	}
	return nil
}

// Ensure GormTraceBindingRepository implements TraceBindingRepository
var _ batch.TraceBindingRepository = (*GormTraceBindingRepository)(nil)
