package models

import (
	"github.com/herbtrace/backend/internal/domain/batch"
	"gorm.io/datatypes"
)

// HerbBatchModel is the persistence model for the HerbBatch aggregate root.
type HerbBatchModel struct {
	ID          string            `gorm:"type:varchar(64);primaryKey"`
	Species     string            `gorm:"type:varchar(128);not null;index"`
	CollectorID string            `gorm:"type:varchar(128);not null;index"`
	Status      string            `gorm:"type:varchar(20);not null;index"`
	Metadata    datatypes.JSONMap `gorm:"not null"`
	AggregateModel
}

// TableName returns the table name for GORM
func (HerbBatchModel) TableName() string {
	return "herb_batches"
}

// ToDomain converts the persistence model to a domain HerbBatch
func (m *HerbBatchModel) ToDomain() *batch.HerbBatch {
	meta := batch.Metadata{}
	for k, v := range m.Metadata {
		meta[k] = v
	}
	return &batch.HerbBatch{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ID:                m.ID,
		Species:           m.Species,
		CollectorID:       m.CollectorID,
		Status:            batch.BatchStatus(m.Status),
		Metadata:          meta,
	}
}

// FromDomain populates the persistence model from a domain HerbBatch
func (m *HerbBatchModel) FromDomain(b *batch.HerbBatch) {
	m.FromDomainAggregateRoot(b.BaseAggregateRoot)
	m.ID = b.ID
	m.Species = b.Species
	m.CollectorID = b.CollectorID
	m.Status = string(b.Status)
	m.Metadata = datatypes.JSONMap(b.Metadata.Clone())
	if m.Metadata == nil {
		m.Metadata = datatypes.JSONMap{}
	}
}

// HerbBatchModelFromDomain creates a new persistence model from a domain HerbBatch
func HerbBatchModelFromDomain(b *batch.HerbBatch) *HerbBatchModel {
	m := &HerbBatchModel{}
	m.FromDomain(b)
	return m
}
