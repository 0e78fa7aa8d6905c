package traceability

import (
	"time"

	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/ledger"
)

// CollectionInput records the harvest that creates a batch.
// CollectorID is only honoured for administrators; collectors always record as themselves.
type CollectionInput struct {
	Species     string     `json:"species" validate:"required,max=100"`
	CollectorID string     `json:"collectorId" validate:"omitempty,max=64"`
	Latitude    float64    `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64    `json:"longitude" validate:"gte=-180,lte=180"`
	Region      string     `json:"region" validate:"max=120"`
	CollectedAt *time.Time `json:"collectedAt"`
	Quality     int        `json:"quality" validate:"required,min=1,max=5"`
	Notes       string     `json:"notes" validate:"max=2000"`
}

// QualityTestInput records a laboratory result
type QualityTestInput struct {
	ItemID   string         `json:"itemId" validate:"required,max=64"`
	LabID    string         `json:"labId" validate:"omitempty,max=64"`
	TestType string         `json:"testType" validate:"required,max=100"`
	Results  map[string]any `json:"results"`
	Passed   *bool          `json:"passed" validate:"required"`
	TestedAt *time.Time     `json:"testedAt"`
}

// ProcessingInput records one processing operation
type ProcessingInput struct {
	ItemID      string         `json:"itemId" validate:"required,max=64"`
	ProcessorID string         `json:"processorId" validate:"omitempty,max=64"`
	StepType    string         `json:"stepType" validate:"required,max=100"`
	Conditions  map[string]any `json:"conditions"`
	ProcessedAt *time.Time     `json:"processedAt"`
}

// LedgerFailure describes why a ledger write did not land
type LedgerFailure struct {
	Code    string
	Message string
}

// EventResult is the outcome of a recorded event. The local write always succeeded;
// LedgerConfirmed=false with LedgerError set is a partial success.
type EventResult struct {
	Item            *batch.HerbBatch
	Operation       ledger.OperationKind
	TraceCode       string
	LedgerConfirmed bool
	TxID            string
	LedgerError     *LedgerFailure
	AuditRecordID   string
	Reaffirmed      bool
}

// JourneyOptions selects how much audit detail a journey carries
type JourneyOptions struct {
	// Detailed merges FAILED local attempts into a ledger-sourced journey
	Detailed bool
}

// ItemView is an item with its trace codes
type ItemView struct {
	Item       *batch.HerbBatch
	TraceCodes []batch.TraceBinding
}

// ResubmitResult is the outcome of one resubmission
type ResubmitResult struct {
	Record          *ledger.OperationRecord
	LedgerConfirmed bool
	LedgerError     *LedgerFailure
}

// ResubmitSummary aggregates one pass over unresolved failures
type ResubmitSummary struct {
	Attempted   int
	Succeeded   int
	Failed      int
	Skipped     int
	Unavailable int
}
