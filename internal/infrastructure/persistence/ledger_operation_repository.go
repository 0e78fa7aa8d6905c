package persistence

import (
	"context"
	"errors"

	"github.com/herbtrace/backend/internal/domain/ledger"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAuditRepository implements the append-only ledger.AuditRepository using GORM.
// It never issues UPDATE or DELETE against ledger_operations.
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Create appends one audit record
func (r *GormAuditRepository) Create(ctx context.Context, rec *ledger.OperationRecord) error {
	model, err := models.LedgerOperationModelFromDomain(rec)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// FindByID finds an audit record by id
func (r *GormAuditRepository) FindByID(ctx context.Context, id string) (*ledger.OperationRecord, error) {
	var model models.LedgerOperationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// ListByItem returns every attempt for an item in chronological order
func (r *GormAuditRepository) ListByItem(ctx context.Context, itemID string) ([]ledger.OperationRecord, error) {
	var rows []models.LedgerOperationModel
	if err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toOperationRecords(rows)
}

// ListUnresolvedFailures returns original FAILED attempts that no SUCCESS
// resubmission points at, oldest first
func (r *GormAuditRepository) ListUnresolvedFailures(ctx context.Context, filter shared.Filter) ([]ledger.OperationRecord, int64, error) {
	resolved := r.db.
		Table("ledger_operations AS s").
		Select("1").
		Where("s.resubmission_of = ledger_operations.id AND s.outcome = ?", ledger.OutcomeSuccess)

	query := r.db.WithContext(ctx).
		Model(&models.LedgerOperationModel{}).
		Where("outcome = ? AND resubmission_of IS NULL", ledger.OutcomeFailed).
		Where("NOT EXISTS (?)", resolved)

	for key, value := range filter.Filters {
		switch key {
		case "item_id":
			query = query.Where("item_id = ?", value)
		case "operation":
			query = query.Where("operation = ?", value)
		}
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at ASC").Order("id ASC")
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.LedgerOperationModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	records, err := toOperationRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// CountResubmissions counts attempts that retried the record with id
func (r *GormAuditRepository) CountResubmissions(ctx context.Context, id string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerOperationModel{}).
		Where("resubmission_of = ?", id).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func toOperationRecords(rows []models.LedgerOperationModel) ([]ledger.OperationRecord, error) {
	out := make([]ledger.OperationRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// Ensure GormAuditRepository implements AuditRepository
var _ ledger.AuditRepository = (*GormAuditRepository)(nil)
