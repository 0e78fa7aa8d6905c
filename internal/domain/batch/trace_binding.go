package batch

import (
	"time"

	"github.com/herbtrace/backend/internal/domain/shared"
)

// TraceBinding maps an opaque public code to a batch.
// The item never changes; deactivation is the only mutation.
type TraceBinding struct {
	Code          string
	ItemID        string
	Active        bool
	CreatedAt     time.Time
	DeactivatedAt *time.Time
}

// NewTraceBinding creates an active binding
func NewTraceBinding(code, itemID string, now time.Time) (*TraceBinding, error) {
	if code == "" {
		return nil, shared.NewValidationError("trace code is required")
	}
	if itemID == "" {
		return nil, shared.NewValidationError("item id is required")
	}
	return &TraceBinding{
		Code:      code,
		ItemID:    itemID,
		Active:    true,
		CreatedAt: now,
	}, nil
}

// Deactivate retires the code. Deactivating twice is a no-op.
func (t *TraceBinding) Deactivate(now time.Time) bool {
	if !t.Active {
		return false
	}
	t.Active = false
	t.DeactivatedAt = &now
	return true
}
