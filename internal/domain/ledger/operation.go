package ledger

import (
	"context"
)

// OperationKind classifies a state-changing ledger write
type OperationKind string

const (
	OperationCollection  OperationKind = "COLLECTION"
	OperationQualityTest OperationKind = "QUALITY_TEST"
	OperationProcessing  OperationKind = "PROCESSING"
)

// IsValid checks if the kind is known
func (k OperationKind) IsValid() bool {
	switch k {
	case OperationCollection, OperationQualityTest, OperationProcessing:
		return true
	}
	return false
}

// String returns the string representation of OperationKind
func (k OperationKind) String() string {
	return string(k)
}

// Chaincode function names
const (
	FnRecordCollection  = "RecordCollection"
	FnAddQualityTest    = "AddQualityTest"
	FnAddProcessingStep = "AddProcessingStep"
	FnGetJourney        = "GetJourney"
)

// Function returns the chaincode function that implements the kind
func (k OperationKind) Function() string {
	switch k {
	case OperationCollection:
		return FnRecordCollection
	case OperationQualityTest:
		return FnAddQualityTest
	case OperationProcessing:
		return FnAddProcessingStep
	}
	return ""
}

// KindForFunction maps a chaincode function name back to its kind
func KindForFunction(fn string) (OperationKind, bool) {
	switch fn {
	case FnRecordCollection:
		return OperationCollection, true
	case FnAddQualityTest:
		return OperationQualityTest, true
	case FnAddProcessingStep:
		return OperationProcessing, true
	}
	return "", false
}

// Call is a named ledger invocation with positional string arguments
type Call struct {
	Function string   `json:"function"`
	Args     []string `json:"args"`
}

// SubmitResult is what the ledger returns for a submitted transaction.
// TxID is populated whenever a transaction id was allocated, even if the submit failed.
type SubmitResult struct {
	TxID    string
	Payload []byte
}

// Gateway is the port to the ledger network.
// Submit errors are LEDGER_UNAVAILABLE or LEDGER_REJECTED domain errors and are never retried
// by the gateway. Evaluate is side-effect free.
type Gateway interface {
	Submit(ctx context.Context, function string, args ...string) (SubmitResult, error)
	Evaluate(ctx context.Context, function string, args ...string) ([]byte, error)
}
