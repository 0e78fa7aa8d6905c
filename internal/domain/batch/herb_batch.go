package batch

import (
	"strings"
	"time"

	"github.com/herbtrace/backend/internal/domain/shared"
)

// Quality score bounds accepted at collection
const (
	MinQuality = 1
	MaxQuality = 5
)

// Location is where a batch was collected
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Region    string  `json:"region,omitempty"`
}

// Validate checks coordinate ranges
func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return shared.NewValidationError("latitude %v out of range", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return shared.NewValidationError("longitude %v out of range", l.Longitude)
	}
	return nil
}

// ToMap renders the location as a metadata object
func (l Location) ToMap() map[string]any {
	m := map[string]any{
		"latitude":  l.Latitude,
		"longitude": l.Longitude,
	}
	if l.Region != "" {
		m["region"] = l.Region
	}
	return m
}

// CollectionDetails describes the collection event that creates a batch
type CollectionDetails struct {
	Location    Location
	CollectedAt time.Time
	Quality     int
	Notes       string
}

// QualityTestResult describes a laboratory test on a batch
type QualityTestResult struct {
	LabID    string
	TestType string
	Results  map[string]any
	Passed   bool
	TestedAt time.Time
}

// ProcessingStep describes one processing operation on a batch
type ProcessingStep struct {
	ProcessorID string
	StepType    string
	Conditions  map[string]any
	ProcessedAt time.Time
}

// HerbBatch is the tracked item: one physical batch of a harvested herb
type HerbBatch struct {
	shared.BaseAggregateRoot
	ID          string
	Species     string
	CollectorID string
	Status      BatchStatus
	Metadata    Metadata
}

// NewHerbBatch creates a batch in COLLECTED status
func NewHerbBatch(id, species, collectorID string, details CollectionDetails, now time.Time) (*HerbBatch, error) {
	if strings.TrimSpace(id) == "" {
		return nil, shared.NewValidationError("batch id is required")
	}
	if strings.TrimSpace(species) == "" {
		return nil, shared.NewValidationError("species is required")
	}
	if strings.TrimSpace(collectorID) == "" {
		return nil, shared.NewValidationError("collector id is required")
	}
	if details.Quality < MinQuality || details.Quality > MaxQuality {
		return nil, shared.NewValidationError("quality must be between %d and %d", MinQuality, MaxQuality)
	}
	if err := details.Location.Validate(); err != nil {
		return nil, err
	}
	if details.CollectedAt.IsZero() {
		details.CollectedAt = now
	}

	meta := Metadata{
		"quality":     details.Quality,
		"location":    details.Location.ToMap(),
		"collectedAt": details.CollectedAt.UTC().Format(time.RFC3339),
	}
	if details.Notes != "" {
		meta["notes"] = details.Notes
	}

	return &HerbBatch{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		ID:                id,
		Species:           strings.TrimSpace(species),
		CollectorID:       collectorID,
		Status:            ApplyCollection(),
		Metadata:          meta,
	}, nil
}

// RecordQualityTest applies a quality test outcome
func (b *HerbBatch) RecordQualityTest(result QualityTestResult, now time.Time) error {
	if strings.TrimSpace(result.LabID) == "" {
		return shared.NewValidationError("lab id is required")
	}
	if strings.TrimSpace(result.TestType) == "" {
		return shared.NewValidationError("test type is required")
	}
	next, err := ApplyQualityTest(b.Status, result.Passed)
	if err != nil {
		return err
	}
	if result.TestedAt.IsZero() {
		result.TestedAt = now
	}

	b.Status = next
	b.Metadata = b.Metadata.Merge(map[string]any{
		"qualityTest": map[string]any{
			"labId":    result.LabID,
			"testType": result.TestType,
			"passed":   result.Passed,
			"results":  result.Results,
			"testedAt": result.TestedAt.UTC().Format(time.RFC3339),
		},
	})
	b.Touch(now)
	return nil
}

// RecordProcessingStep applies a processing step.
// It returns true when the batch was already PROCESSED and the step only re-affirms it.
func (b *HerbBatch) RecordProcessingStep(step ProcessingStep, now time.Time) (bool, error) {
	if strings.TrimSpace(step.ProcessorID) == "" {
		return false, shared.NewValidationError("processor id is required")
	}
	if strings.TrimSpace(step.StepType) == "" {
		return false, shared.NewValidationError("step type is required")
	}
	next, reaffirmed, err := ApplyProcessingStep(b.Status)
	if err != nil {
		return false, err
	}
	if step.ProcessedAt.IsZero() {
		step.ProcessedAt = now
	}

	summary := map[string]any{
		"processorId": step.ProcessorID,
		"stepType":    step.StepType,
		"conditions":  step.Conditions,
		"processedAt": step.ProcessedAt.UTC().Format(time.RFC3339),
	}
	b.Status = next
	b.Metadata = b.Metadata.Append("processingSteps", summary).Merge(map[string]any{
		"lastProcessing": summary,
	})
	b.Touch(now)
	return reaffirmed, nil
}

// Distribute moves a processed batch into distribution
func (b *HerbBatch) Distribute(now time.Time) error {
	next, err := ApplyDistribution(b.Status)
	if err != nil {
		return err
	}
	b.Status = next
	b.Touch(now)
	return nil
}

// CanEditMetadata reports whether actor may patch this batch's metadata
func (b *HerbBatch) CanEditMetadata(actor shared.Actor) bool {
	return actor.IsAdmin() || (actor.ID != "" && actor.ID == b.CollectorID)
}

// UpdateMetadata merges patch into the batch metadata
func (b *HerbBatch) UpdateMetadata(actor shared.Actor, patch map[string]any, now time.Time) error {
	if !b.CanEditMetadata(actor) {
		return shared.ErrForbidden
	}
	if len(patch) == 0 {
		return shared.NewValidationError("metadata patch is empty")
	}
	b.Metadata = b.Metadata.Merge(patch)
	b.Touch(now)
	return nil
}
