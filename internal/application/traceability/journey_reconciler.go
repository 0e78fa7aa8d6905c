package traceability

import (
	"context"
	"slices"
	"strconv"

	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/ledger"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/infrastructure/logger"
	"github.com/herbtrace/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// JourneyMetrics counts journeys served from the local audit log
type JourneyMetrics interface {
	RecordDegradedJourney(ctx context.Context)
}

// JourneyReconciler rebuilds an item's history from the ledger, falling back to the
// local audit log whenever the ledger cannot answer.
type JourneyReconciler struct {
	batches batch.HerbBatchRepository
	gateway ledger.Gateway
	audit   *AuditService
	metrics JourneyMetrics
	logger  *zap.Logger
	group   singleflight.Group
}

// NewJourneyReconciler creates a new JourneyReconciler. metrics may be nil.
func NewJourneyReconciler(
	batches batch.HerbBatchRepository,
	gateway ledger.Gateway,
	audit *AuditService,
	metrics JourneyMetrics,
	log *zap.Logger,
) *JourneyReconciler {
	return &JourneyReconciler{
		batches: batches,
		gateway: gateway,
		audit:   audit,
		metrics: metrics,
		logger:  log.Named("journey"),
	}
}

// Get returns the journey of itemID. Ledger failures never surface as errors here;
// they produce a degraded journey instead.
func (r *JourneyReconciler) Get(ctx context.Context, itemID string, opts JourneyOptions) (*ledger.Journey, error) {
	exists, err := r.batches.Exists(ctx, itemID)
	if err != nil {
		return nil, shared.NewPersistenceError("failed to look up item", err)
	}
	if !exists {
		return nil, shared.NewNotFoundError("herb batch %s not found", itemID)
	}

	key := itemID + "|" + strconv.FormatBool(opts.Detailed)
	v, err, _ := r.group.Do(key, func() (any, error) {
		// shared by every waiter, so one caller going away must not fail the rest
		return r.reconcile(context.WithoutCancel(ctx), itemID, opts)
	})
	if err != nil {
		return nil, err
	}
	return cloneJourney(v.(*ledger.Journey)), nil
}

func (r *JourneyReconciler) reconcile(ctx context.Context, itemID string, opts JourneyOptions) (*ledger.Journey, error) {
	ctx = logger.WithItemID(ctx, itemID)
	ctx, span := telemetry.StartSpan(ctx, "journey.reconcile", telemetry.SpanAttrItemID.String(itemID))
	defer span.End()
	log := logger.WithLogger(ctx, r.logger)

	entries, ledgerErr := r.fromLedger(ctx, itemID)
	if ledgerErr != nil {
		records, err := r.audit.ListFor(ctx, itemID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		span.SetAttributes(telemetry.SpanAttrDegraded.Bool(true))
		if r.metrics != nil {
			r.metrics.RecordDegradedJourney(ctx)
		}
		log.Warn("Serving degraded journey from local audit",
			zap.Int("records", len(records)),
			zap.Error(ledgerErr),
		)
		return ledger.DegradedJourney(itemID, records, ledgerErr), nil
	}

	if !opts.Detailed {
		return ledger.LedgerJourney(itemID, entries), nil
	}
	records, err := r.audit.ListFor(ctx, itemID)
	if err != nil {
		log.Warn("Audit log unavailable, returning ledger journey without local detail", zap.Error(err))
		return ledger.LedgerJourney(itemID, entries), nil
	}
	return ledger.MergeJourney(itemID, entries, records), nil
}

func (r *JourneyReconciler) fromLedger(ctx context.Context, itemID string) ([]ledger.JourneyEntry, error) {
	payload, err := r.gateway.Evaluate(ctx, ledger.FnGetJourney, itemID)
	if err != nil {
		return nil, err
	}
	entries, err := ledger.ParseLedgerEvents(payload)
	if err != nil {
		return nil, shared.NewLedgerRejectedError("unreadable journey payload", err)
	}
	return entries, nil
}

// cloneJourney copies the entry slice so coalesced callers never share backing arrays
func cloneJourney(j *ledger.Journey) *ledger.Journey {
	out := *j
	out.Entries = slices.Clone(j.Entries)
	return &out
}
