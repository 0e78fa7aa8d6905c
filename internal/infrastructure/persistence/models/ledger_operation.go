package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/herbtrace/backend/internal/domain/ledger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrAppendOnly is returned by the hooks that keep ledger_operations immutable
var ErrAppendOnly = errors.New("ledger_operations is append-only")

// LedgerOperationModel is one row of the submission audit log.
// Absent tx ids, errors and resubmission links are stored as NULL.
type LedgerOperationModel struct {
	ID             string         `gorm:"type:varchar(64);primaryKey"`
	ItemID         string         `gorm:"type:varchar(64);not null;index:idx_ledger_operations_item,priority:1"`
	Operation      string         `gorm:"type:varchar(20);not null"`
	Outcome        string         `gorm:"type:varchar(10);not null;index"`
	TxID           *string        `gorm:"type:varchar(128)"`
	Payload        datatypes.JSON `gorm:"not null"`
	PayloadHash    string         `gorm:"type:varchar(80);not null"`
	Error          *string        `gorm:"type:text"`
	ResubmissionOf *string        `gorm:"type:varchar(64);index"`
	CreatedAt      time.Time      `gorm:"not null;index:idx_ledger_operations_item,priority:2"`
}

// TableName returns the table name for GORM
func (LedgerOperationModel) TableName() string {
	return "ledger_operations"
}

// BeforeUpdate rejects updates through GORM
func (LedgerOperationModel) BeforeUpdate(*gorm.DB) error {
	return ErrAppendOnly
}

// BeforeDelete rejects deletes through GORM
func (LedgerOperationModel) BeforeDelete(*gorm.DB) error {
	return ErrAppendOnly
}

// ToDomain converts the persistence model to a domain OperationRecord
func (m *LedgerOperationModel) ToDomain() (*ledger.OperationRecord, error) {
	var call ledger.Call
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &call); err != nil {
			return nil, fmt.Errorf("decode payload of audit record %s: %w", m.ID, err)
		}
	}
	return &ledger.OperationRecord{
		ID:             m.ID,
		ItemID:         m.ItemID,
		Operation:      ledger.OperationKind(m.Operation),
		Outcome:        ledger.OutcomeStatus(m.Outcome),
		TxID:           valueOf(m.TxID),
		Payload:        call,
		PayloadHash:    m.PayloadHash,
		Error:          valueOf(m.Error),
		ResubmissionOf: valueOf(m.ResubmissionOf),
		CreatedAt:      m.CreatedAt,
	}, nil
}

// LedgerOperationModelFromDomain creates a persistence model from a domain OperationRecord
func LedgerOperationModelFromDomain(r *ledger.OperationRecord) (*LedgerOperationModel, error) {
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload of audit record %s: %w", r.ID, err)
	}
	return &LedgerOperationModel{
		ID:             r.ID,
		ItemID:         r.ItemID,
		Operation:      string(r.Operation),
		Outcome:        string(r.Outcome),
		TxID:           nullable(r.TxID),
		Payload:        datatypes.JSON(payload),
		PayloadHash:    r.PayloadHash,
		Error:          nullable(r.Error),
		ResubmissionOf: nullable(r.ResubmissionOf),
		CreatedAt:      r.CreatedAt,
	}, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func valueOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
