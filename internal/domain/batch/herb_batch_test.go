package batch

import (
	"errors"
	"testing"
	"time"

	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestBatch(t *testing.T) *HerbBatch {
	t.Helper()
	b, err := NewHerbBatch("ASH1741944600000AB12", "Ashwagandha", "collector-1", CollectionDetails{
		Location: Location{Latitude: 26.9124, Longitude: 75.7873, Region: "Rajasthan"},
		Quality:  4,
		Notes:    "roots, hand dug",
	}, testNow)
	require.NoError(t, err)
	return b
}

func TestNewHerbBatch(t *testing.T) {
	b := newTestBatch(t)

	assert.Equal(t, BatchStatusCollected, b.Status)
	assert.Equal(t, 1, b.Version)
	assert.Equal(t, "Ashwagandha", b.Species)
	assert.Equal(t, 4, b.Metadata["quality"])
	assert.Equal(t, "roots, hand dug", b.Metadata["notes"])
	assert.Equal(t, testNow.Format(time.RFC3339), b.Metadata["collectedAt"])
	loc, ok := b.Metadata["location"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Rajasthan", loc["region"])
}

func TestNewHerbBatch_Validation(t *testing.T) {
	valid := CollectionDetails{Location: Location{Latitude: 1, Longitude: 1}, Quality: 3}
	tests := []struct {
		name        string
		id          string
		species     string
		collectorID string
		details     CollectionDetails
	}{
		{"missing id", "", "Tulsi", "c1", valid},
		{"missing species", "TUL1", "  ", "c1", valid},
		{"missing collector", "TUL1", "Tulsi", "", valid},
		{"quality too low", "TUL1", "Tulsi", "c1", CollectionDetails{Quality: 0}},
		{"quality too high", "TUL1", "Tulsi", "c1", CollectionDetails{Quality: 6}},
		{"latitude out of range", "TUL1", "Tulsi", "c1", CollectionDetails{Quality: 3, Location: Location{Latitude: 91}}},
		{"longitude out of range", "TUL1", "Tulsi", "c1", CollectionDetails{Quality: 3, Location: Location{Longitude: -181}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHerbBatch(tt.id, tt.species, tt.collectorID, tt.details, testNow)
			require.Error(t, err)
			assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		})
	}
}

func TestHerbBatch_RecordQualityTest(t *testing.T) {
	t.Run("failed test blocks processing", func(t *testing.T) {
		b := newTestBatch(t)
		err := b.RecordQualityTest(QualityTestResult{
			LabID: "lab-7", TestType: "heavy-metals", Passed: false,
			Results: map[string]any{"lead_ppm": 12.5},
		}, testNow.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, BatchStatusFailedTest, b.Status)
		assert.Equal(t, 2, b.Version)

		qt := b.Metadata["qualityTest"].(map[string]any)
		assert.Equal(t, false, qt["passed"])
		assert.Equal(t, "lab-7", qt["labId"])

		_, err = b.RecordProcessingStep(ProcessingStep{ProcessorID: "p-1", StepType: "drying"}, testNow.Add(2*time.Hour))
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidTransition))
		assert.Equal(t, BatchStatusFailedTest, b.Status)
		assert.Equal(t, 2, b.Version, "rejected transition must not bump version")
	})

	t.Run("second test is rejected", func(t *testing.T) {
		b := newTestBatch(t)
		require.NoError(t, b.RecordQualityTest(QualityTestResult{LabID: "l", TestType: "dna", Passed: true}, testNow))
		err := b.RecordQualityTest(QualityTestResult{LabID: "l", TestType: "dna", Passed: false}, testNow)
		assert.True(t, errors.Is(err, shared.ErrInvalidTransition))
		assert.Equal(t, BatchStatusTested, b.Status)
	})

	t.Run("requires lab and test type", func(t *testing.T) {
		b := newTestBatch(t)
		assert.Error(t, b.RecordQualityTest(QualityTestResult{TestType: "dna"}, testNow))
		assert.Error(t, b.RecordQualityTest(QualityTestResult{LabID: "l"}, testNow))
		assert.Equal(t, BatchStatusCollected, b.Status)
	})
}

func TestHerbBatch_RecordProcessingStep(t *testing.T) {
	b := newTestBatch(t)
	require.NoError(t, b.RecordQualityTest(QualityTestResult{LabID: "l", TestType: "dna", Passed: true}, testNow))

	reaffirmed, err := b.RecordProcessingStep(ProcessingStep{
		ProcessorID: "p-1", StepType: "drying",
		Conditions: map[string]any{"temperatureC": 45},
	}, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, reaffirmed)
	assert.Equal(t, BatchStatusProcessed, b.Status)

	reaffirmed, err = b.RecordProcessingStep(ProcessingStep{ProcessorID: "p-1", StepType: "grinding"}, testNow.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, reaffirmed)
	assert.Equal(t, BatchStatusProcessed, b.Status)

	steps := b.Metadata["processingSteps"].([]any)
	require.Len(t, steps, 2)
	last := b.Metadata["lastProcessing"].(map[string]any)
	assert.Equal(t, "grinding", last["stepType"])
}

func TestHerbBatch_Distribute(t *testing.T) {
	b := newTestBatch(t)
	assert.True(t, errors.Is(b.Distribute(testNow), shared.ErrInvalidTransition))

	require.NoError(t, b.RecordQualityTest(QualityTestResult{LabID: "l", TestType: "dna", Passed: true}, testNow))
	_, err := b.RecordProcessingStep(ProcessingStep{ProcessorID: "p", StepType: "drying"}, testNow)
	require.NoError(t, err)
	require.NoError(t, b.Distribute(testNow))
	assert.Equal(t, BatchStatusDistributed, b.Status)
}

func TestHerbBatch_UpdateMetadata(t *testing.T) {
	t.Run("collector merges", func(t *testing.T) {
		b := newTestBatch(t)
		err := b.UpdateMetadata(shared.Actor{ID: "collector-1", Role: shared.RoleCollector},
			map[string]any{"notes": "washed", "location": map[string]any{"region": "Jaipur"}}, testNow)
		require.NoError(t, err)

		assert.Equal(t, "washed", b.Metadata["notes"])
		assert.Equal(t, 4, b.Metadata["quality"], "untouched keys survive")
		loc := b.Metadata["location"].(map[string]any)
		assert.Equal(t, "Jaipur", loc["region"])
		assert.Equal(t, 26.9124, loc["latitude"], "nested keys survive")
	})

	t.Run("admin may edit", func(t *testing.T) {
		b := newTestBatch(t)
		require.NoError(t, b.UpdateMetadata(shared.Actor{ID: "root", Role: shared.RoleAdmin}, map[string]any{"x": 1}, testNow))
	})

	t.Run("other collector is forbidden", func(t *testing.T) {
		b := newTestBatch(t)
		err := b.UpdateMetadata(shared.Actor{ID: "collector-2", Role: shared.RoleCollector}, map[string]any{"x": 1}, testNow)
		assert.True(t, errors.Is(err, shared.ErrForbidden))
		assert.NotContains(t, b.Metadata, "x")
	})

	t.Run("empty patch", func(t *testing.T) {
		b := newTestBatch(t)
		err := b.UpdateMetadata(shared.Actor{ID: "collector-1"}, nil, testNow)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})
}
