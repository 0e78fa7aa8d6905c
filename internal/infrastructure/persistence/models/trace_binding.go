package models

import (
	"time"

	"github.com/herbtrace/backend/internal/domain/batch"
)

// TraceBindingModel maps a public trace code to a herb batch.
type TraceBindingModel struct {
	Code          string     `gorm:"type:varchar(64);primaryKey"`
	ItemID        string     `gorm:"type:varchar(64);not null;index"`
	Active        bool       `gorm:"not null;default:true"`
	CreatedAt     time.Time  `gorm:"not null"`
	DeactivatedAt *time.Time
}

// TableName returns the table name for GORM
func (TraceBindingModel) TableName() string {
	return "trace_bindings"
}

// ToDomain converts the persistence model to a domain TraceBinding
func (m *TraceBindingModel) ToDomain() *batch.TraceBinding {
	return &batch.TraceBinding{
		Code:          m.Code,
		ItemID:        m.ItemID,
		Active:        m.Active,
		CreatedAt:     m.CreatedAt,
		DeactivatedAt: m.DeactivatedAt,
	}
}

// TraceBindingModelFromDomain creates a persistence model from a domain TraceBinding
func TraceBindingModelFromDomain(t *batch.TraceBinding) *TraceBindingModel {
	return &TraceBindingModel{
		Code:          t.Code,
		ItemID:        t.ItemID,
		Active:        t.Active,
		CreatedAt:     t.CreatedAt,
		DeactivatedAt: t.DeactivatedAt,
	}
}
