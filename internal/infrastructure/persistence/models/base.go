package models

import (
	"time"

	"github.com/herbtrace/backend/internal/domain/shared"
)

// AggregateModel provides the optimistic-locking and timestamp columns shared
// by aggregate tables.
type AggregateModel struct {
	Version   int       `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// FromDomainAggregateRoot populates AggregateModel from a domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.Version = a.Version
	m.CreatedAt = a.CreatedAt
	m.UpdatedAt = a.UpdatedAt
}

// ToDomainAggregateRoot converts AggregateModel to a domain BaseAggregateRoot
func (m *AggregateModel) ToDomainAggregateRoot() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// All returns every persistence model, in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&HerbBatchModel{},
		&TraceBindingModel{},
		&LedgerOperationModel{},
	}
}
