package traceability

import (
	"context"
	"errors"
	"time"

	"github.com/herbtrace/backend/internal/domain/ledger"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// AuditService records and reads ledger submission attempts.
// Records are append-only; nothing here updates or deletes one.
type AuditService struct {
	repo ledger.AuditRepository
	now  func() time.Time
}

// NewAuditService creates a new AuditService
func NewAuditService(repo ledger.AuditRepository) *AuditService {
	return &AuditService{repo: repo, now: time.Now}
}

// Record appends the outcome of one submission attempt
func (s *AuditService) Record(ctx context.Context, in ledger.RecordInput) (*ledger.OperationRecord, error) {
	rec, err := ledger.NewOperationRecord(in, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		logger.L(ctx).Error("Failed to write ledger audit record",
			zap.String("operation", string(in.Operation)),
			zap.String("outcome", string(in.Outcome)),
			zap.String("tx_id", in.TxID),
			zap.Error(err),
		)
		return nil, shared.NewPersistenceError("failed to write audit record", err)
	}
	return rec, nil
}

// Get returns a single audit record
func (s *AuditService) Get(ctx context.Context, id string) (*ledger.OperationRecord, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFoundError("audit record %s not found", id)
		}
		return nil, shared.NewPersistenceError("failed to load audit record", err)
	}
	return rec, nil
}

// ListFor returns every attempt for an item, oldest first
func (s *AuditService) ListFor(ctx context.Context, itemID string) ([]ledger.OperationRecord, error) {
	records, err := s.repo.ListByItem(ctx, itemID)
	if err != nil {
		return nil, shared.NewPersistenceError("failed to list audit records", err)
	}
	return records, nil
}

// ListFailed returns FAILED attempts that no successful resubmission supersedes
func (s *AuditService) ListFailed(ctx context.Context, filter shared.Filter) (shared.Paginated[ledger.OperationRecord], error) {
	records, total, err := s.repo.ListUnresolvedFailures(ctx, filter)
	if err != nil {
		return shared.Paginated[ledger.OperationRecord]{}, shared.NewPersistenceError("failed to list failed audit records", err)
	}
	return shared.NewPaginated(records, total, filter.Page, filter.PageSize), nil
}

// CountResubmissions counts how often the record with id was retried
func (s *AuditService) CountResubmissions(ctx context.Context, id string) (int64, error) {
	n, err := s.repo.CountResubmissions(ctx, id)
	if err != nil {
		return 0, shared.NewPersistenceError("failed to count resubmissions", err)
	}
	return n, nil
}
