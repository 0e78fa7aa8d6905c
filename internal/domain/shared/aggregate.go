package shared

import "time"

// BaseAggregateRoot provides the bookkeeping fields shared by aggregate roots.
// Version backs optimistic locking: every accepted mutation bumps it by one.
type BaseAggregateRoot struct {
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Touch records a mutation at now and bumps the version
func (a *BaseAggregateRoot) Touch(now time.Time) {
	a.Version++
	a.UpdatedAt = now
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot(now time.Time) BaseAggregateRoot {
	return BaseAggregateRoot{
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
