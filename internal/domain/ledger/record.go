package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/herbtrace/backend/internal/domain/shared"
)

// OutcomeStatus is the known result of a submission attempt
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "SUCCESS"
	OutcomeFailed  OutcomeStatus = "FAILED"
)

// MissingTxIDNote is stored as the error of a SUCCESS record whose
// submission was confirmed without a transaction id
const MissingTxIDNote = "ledger confirmed the submission without a transaction id"

// IsValid checks if the outcome is one of the two final values
func (s OutcomeStatus) IsValid() bool {
	return s == OutcomeSuccess || s == OutcomeFailed
}

// OperationRecord is one immutable audit entry for one ledger submission attempt
type OperationRecord struct {
	ID             string
	ItemID         string
	Operation      OperationKind
	Outcome        OutcomeStatus
	TxID           string
	Payload        Call
	PayloadHash    string
	Error          string
	ResubmissionOf string
	CreatedAt      time.Time
}

// RecordInput carries the outcome of an attempt to be audited
type RecordInput struct {
	ItemID         string
	Operation      OperationKind
	Outcome        OutcomeStatus
	TxID           string
	Payload        Call
	Error          string
	ResubmissionOf string
}

// NewOperationRecord builds an audit entry. The id is the ledger transaction id when one
// was allocated, otherwise a local UUID. A SUCCESS without a transaction id is
// still recorded, carrying MissingTxIDNote.
func NewOperationRecord(in RecordInput, now time.Time) (*OperationRecord, error) {
	if in.ItemID == "" {
		return nil, shared.NewValidationError("audit record requires an item id")
	}
	if !in.Operation.IsValid() {
		return nil, shared.NewValidationError("unknown operation kind %q", in.Operation)
	}
	if !in.Outcome.IsValid() {
		return nil, shared.NewValidationError("unknown outcome %q", in.Outcome)
	}
	id := in.TxID
	if id == "" {
		id = uuid.NewString()
	}
	hash, err := PayloadHash(in.Payload)
	if err != nil {
		return nil, err
	}
	errText := in.Error
	if in.Outcome == OutcomeSuccess {
		errText = ""
		if in.TxID == "" {
			errText = MissingTxIDNote
		}
	}

	return &OperationRecord{
		ID:             id,
		ItemID:         in.ItemID,
		Operation:      in.Operation,
		Outcome:        in.Outcome,
		TxID:           in.TxID,
		Payload:        in.Payload,
		PayloadHash:    hash,
		Error:          errText,
		ResubmissionOf: in.ResubmissionOf,
		CreatedAt:      now,
	}, nil
}

// Failed reports whether the attempt did not land on the ledger
func (r *OperationRecord) Failed() bool {
	return r.Outcome == OutcomeFailed
}

// PayloadHash returns "sha256:<hex>" over the JSON encoding of call
func PayloadHash(call Call) (string, error) {
	raw, err := json.Marshal(call)
	if err != nil {
		return "", shared.NewValidationError("payload is not serialisable: %v", err)
	}
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// AuditRepository is the append-only store for operation records.
// It offers no update or delete.
type AuditRepository interface {
	Create(ctx context.Context, r *OperationRecord) error
	FindByID(ctx context.Context, id string) (*OperationRecord, error)
	// ListByItem returns records ordered by created_at, then id
	ListByItem(ctx context.Context, itemID string) ([]OperationRecord, error)
	// ListUnresolvedFailures returns FAILED records without a SUCCESS resubmission, oldest first
	ListUnresolvedFailures(ctx context.Context, filter shared.Filter) ([]OperationRecord, int64, error)
	// CountResubmissions counts attempts that retried the record with id
	CountResubmissions(ctx context.Context, id string) (int64, error)
}
