package batch

import (
	"github.com/herbtrace/backend/internal/domain/shared"
)

// BatchStatus represents the custody stage of an herb batch
type BatchStatus string

const (
	BatchStatusCollected   BatchStatus = "COLLECTED"
	BatchStatusTested      BatchStatus = "TESTED"
	BatchStatusFailedTest  BatchStatus = "FAILED_TEST"
	BatchStatusProcessed   BatchStatus = "PROCESSED"
	BatchStatusDistributed BatchStatus = "DISTRIBUTED"
)

// AllStatuses returns every status in lifecycle order
func AllStatuses() []BatchStatus {
	return []BatchStatus{
		BatchStatusCollected,
		BatchStatusTested,
		BatchStatusFailedTest,
		BatchStatusProcessed,
		BatchStatusDistributed,
	}
}

// IsValid checks if the status is a valid BatchStatus
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusCollected, BatchStatusTested, BatchStatusFailedTest, BatchStatusProcessed, BatchStatusDistributed:
		return true
	}
	return false
}

// String returns the string representation of BatchStatus
func (s BatchStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition leaves s.
// FAILED_TEST records a quality failure and ends the lifecycle just like DISTRIBUTED.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusFailedTest || s == BatchStatusDistributed
}

// CanTransitionTo checks if the status can move to target.
// PROCESSED -> PROCESSED is accepted as a re-affirmation by repeated processing steps.
func (s BatchStatus) CanTransitionTo(target BatchStatus) bool {
	switch s {
	case BatchStatusCollected:
		return target == BatchStatusTested || target == BatchStatusFailedTest
	case BatchStatusTested:
		return target == BatchStatusProcessed
	case BatchStatusProcessed:
		return target == BatchStatusProcessed || target == BatchStatusDistributed
	case BatchStatusFailedTest, BatchStatusDistributed:
		return false // Terminal states
	}
	return false
}

// ApplyCollection returns the initial status of a newly collected batch
func ApplyCollection() BatchStatus {
	return BatchStatusCollected
}

// ApplyQualityTest returns the status after a quality test on a batch in current
func ApplyQualityTest(current BatchStatus, passed bool) (BatchStatus, error) {
	if current != BatchStatusCollected {
		return current, shared.NewInvalidTransitionError(
			"Cannot record quality test for batch in %s status", current)
	}
	if passed {
		return BatchStatusTested, nil
	}
	return BatchStatusFailedTest, nil
}

// ApplyProcessingStep returns the status after a processing step.
// A batch already PROCESSED stays PROCESSED; reaffirmed reports that case.
func ApplyProcessingStep(current BatchStatus) (next BatchStatus, reaffirmed bool, err error) {
	switch current {
	case BatchStatusTested:
		return BatchStatusProcessed, false, nil
	case BatchStatusProcessed:
		return BatchStatusProcessed, true, nil
	}
	return current, false, shared.NewInvalidTransitionError(
		"Cannot record processing step for batch in %s status", current)
}

// ApplyDistribution returns the status after the batch leaves processing for distribution
func ApplyDistribution(current BatchStatus) (BatchStatus, error) {
	if current != BatchStatusProcessed {
		return current, shared.NewInvalidTransitionError(
			"Cannot distribute batch in %s status", current)
	}
	return BatchStatusDistributed, nil
}
