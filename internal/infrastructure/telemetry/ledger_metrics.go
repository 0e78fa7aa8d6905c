package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Ledger outcome labels
const (
	OutcomeSuccess     = "success"
	OutcomeUnavailable = "unavailable"
	OutcomeRejected    = "rejected"
)

// LedgerMetrics records ledger traffic and reconciliation health.
// A nil *LedgerMetrics is valid and records nothing.
type LedgerMetrics struct {
	submissions      *Counter
	submitDuration   *Histogram
	evaluations      *Counter
	degradedJourneys *Counter
	resubmissions    *Counter
	unresolved       *Gauge
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// NewLedgerMetrics registers the ledger instruments on meter.
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &LedgerMetrics{}
	var err error

	m.submissions, err = NewCounter(meter,
		"herbtrace_ledger_submissions_total",
		"Ledger submissions by operation and outcome",
		"{submissions}")
	if err != nil {
		return nil, err
	}

	m.submitDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "herbtrace_ledger_submit_duration_seconds",
		Description: "Endorse, submit and commit round trip",
		Unit:        "s",
		Boundaries:  LedgerDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	m.evaluations, err = NewCounter(meter,
		"herbtrace_ledger_evaluations_total",
		"Ledger queries by function and outcome",
		"{evaluations}")
	if err != nil {
		return nil, err
	}

	m.degradedJourneys, err = NewCounter(meter,
		"herbtrace_journey_degraded_total",
		"Journeys served from the local audit log because the ledger was unreachable",
		"{journeys}")
	if err != nil {
		return nil, err
	}

	m.resubmissions, err = NewCounter(meter,
		"herbtrace_ledger_resubmissions_total",
		"Resubmissions of failed ledger writes by outcome",
		"{resubmissions}")
	if err != nil {
		return nil, err
	}

	m.unresolved, err = NewGauge(meter,
		"herbtrace_ledger_unresolved_failures",
		"Failed ledger writes not yet superseded by a successful resubmission",
		"{records}")
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordSubmission records one submit attempt for a chaincode function.
func (m *LedgerMetrics) RecordSubmission(ctx context.Context, function, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.submissions.Inc(ctx, AttrFunction.String(function), AttrOutcome.String(outcome))
	m.submitDuration.RecordDuration(ctx, d, AttrFunction.String(function))
}

// RecordEvaluation records one query attempt.
func (m *LedgerMetrics) RecordEvaluation(ctx context.Context, function, outcome string) {
	if m == nil {
		return
	}
	m.evaluations.Inc(ctx, AttrFunction.String(function), AttrOutcome.String(outcome))
}

// RecordDegradedJourney counts a journey answered from the audit log.
func (m *LedgerMetrics) RecordDegradedJourney(ctx context.Context) {
	if m == nil {
		return
	}
	m.degradedJourneys.Inc(ctx)
}

// RecordResubmission counts one resubmission of a failed write.
func (m *LedgerMetrics) RecordResubmission(ctx context.Context, operation, outcome string) {
	if m == nil {
		return
	}
	m.resubmissions.Inc(ctx, AttrOperation.String(operation), AttrOutcome.String(outcome))
}

// RecordUnresolvedFailures reports the current backlog of failed writes.
func (m *LedgerMetrics) RecordUnresolvedFailures(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.unresolved.Record(ctx, n)
}
