package traceability

import (
	"context"
	"errors"

	"github.com/herbtrace/backend/internal/domain/shared"
)

// ItemLocker serialises writers of one item. The returned unlock must be called exactly
// once the critical section ends.
type ItemLocker interface {
	Lock(ctx context.Context, itemID string) (unlock func(), err error)
}

func lockError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return shared.WrapDomainError(shared.CodeConcurrencyConflict, "item is busy, try again", err)
	}
	return shared.NewPersistenceError("failed to acquire item lock", err)
}
