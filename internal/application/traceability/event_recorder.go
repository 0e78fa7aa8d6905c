package traceability

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/ledger"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/infrastructure/logger"
	"github.com/herbtrace/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultLedgerTimeout bounds the detached submit-and-audit phase of a write
const DefaultLedgerTimeout = 35 * time.Second

// EventRecorder performs the dual write for every custody event:
// local commit first, then the ledger submission, then the audit record.
type EventRecorder struct {
	scope         TransactionScope
	gateway       ledger.Gateway
	audit         *AuditService
	locker        ItemLocker
	ids           *batch.IDGenerator
	traceCode     func() string
	validate      *validator.Validate
	ledgerTimeout time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

// RecorderOption configures an EventRecorder
type RecorderOption func(*EventRecorder)

// WithClock overrides the time source
func WithClock(now func() time.Time) RecorderOption {
	return func(r *EventRecorder) {
		r.now = now
	}
}

// WithIDGenerator overrides batch id generation
func WithIDGenerator(ids *batch.IDGenerator) RecorderOption {
	return func(r *EventRecorder) {
		r.ids = ids
	}
}

// WithTraceCodeGenerator overrides trace code generation
func WithTraceCodeGenerator(gen func() string) RecorderOption {
	return func(r *EventRecorder) {
		r.traceCode = gen
	}
}

// WithLedgerTimeout bounds the submit and audit phase, which ignores request cancellation
func WithLedgerTimeout(d time.Duration) RecorderOption {
	return func(r *EventRecorder) {
		if d > 0 {
			r.ledgerTimeout = d
		}
	}
}

// NewEventRecorder creates a new EventRecorder
func NewEventRecorder(
	scope TransactionScope,
	gateway ledger.Gateway,
	audit *AuditService,
	locker ItemLocker,
	log *zap.Logger,
	opts ...RecorderOption,
) *EventRecorder {
	r := &EventRecorder{
		scope:         scope,
		gateway:       gateway,
		audit:         audit,
		locker:        locker,
		ids:           batch.NewIDGenerator(),
		traceCode:     batch.NewTraceCode,
		validate:      newValidator(),
		ledgerTimeout: DefaultLedgerTimeout,
		now:           time.Now,
		logger:        log.Named("recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// pendingWrite is what a mutation committed and what must now go to the ledger
type pendingWrite struct {
	item       *batch.HerbBatch
	traceCode  string
	call       ledger.Call
	reaffirmed bool
}

type mutation func(ctx context.Context, repos TransactionalRepositories, now time.Time) (*pendingWrite, error)

// RecordCollection creates a batch with a fresh trace code and anchors it on the ledger
func (r *EventRecorder) RecordCollection(ctx context.Context, actor shared.Actor, in CollectionInput) (*EventResult, error) {
	if !actor.HasAnyRole(shared.RoleCollector) {
		return nil, shared.ErrForbidden
	}
	if err := validateInput(r.validate, in); err != nil {
		return nil, err
	}
	collectorID, err := actingAs(actor, in.CollectorID, "collectorId")
	if err != nil {
		return nil, err
	}

	itemID := r.ids.NewID(in.Species)
	return r.record(ctx, ledger.OperationCollection, itemID, func(ctx context.Context, repos TransactionalRepositories, now time.Time) (*pendingWrite, error) {
		collectedAt := now.UTC()
		if in.CollectedAt != nil {
			collectedAt = in.CollectedAt.UTC()
		}
		location := batch.Location{Latitude: in.Latitude, Longitude: in.Longitude, Region: in.Region}

		item, err := batch.NewHerbBatch(itemID, in.Species, collectorID, batch.CollectionDetails{
			Location:    location,
			CollectedAt: collectedAt,
			Quality:     in.Quality,
			Notes:       in.Notes,
		}, now)
		if err != nil {
			return nil, err
		}
		if err := repos.Batches().Create(ctx, item); err != nil {
			return nil, err
		}

		binding, err := batch.NewTraceBinding(r.traceCode(), itemID, now)
		if err != nil {
			return nil, err
		}
		if err := repos.TraceBindings().Create(ctx, binding); err != nil {
			return nil, err
		}

		locationJSON, err := marshalArg(location.ToMap())
		if err != nil {
			return nil, err
		}
		return &pendingWrite{
			item:      item,
			traceCode: binding.Code,
			call: ledger.Call{
				Function: ledger.FnRecordCollection,
				Args: []string{
					itemID,
					collectorID,
					item.Species,
					locationJSON,
					collectedAt.Format(time.RFC3339),
					strconv.Itoa(in.Quality),
				},
			},
		}, nil
	})
}

// RecordQualityTest records a laboratory result. Only a COLLECTED batch accepts one.
func (r *EventRecorder) RecordQualityTest(ctx context.Context, actor shared.Actor, in QualityTestInput) (*EventResult, error) {
	if !actor.HasAnyRole(shared.RoleLab) {
		return nil, shared.ErrForbidden
	}
	if err := validateInput(r.validate, in); err != nil {
		return nil, err
	}
	labID, err := actingAs(actor, in.LabID, "labId")
	if err != nil {
		return nil, err
	}
	passed := *in.Passed

	return r.record(ctx, ledger.OperationQualityTest, in.ItemID, func(ctx context.Context, repos TransactionalRepositories, now time.Time) (*pendingWrite, error) {
		item, err := loadForUpdate(ctx, repos, in.ItemID)
		if err != nil {
			return nil, err
		}
		result := batch.QualityTestResult{
			LabID:    labID,
			TestType: in.TestType,
			Results:  in.Results,
			Passed:   passed,
		}
		if in.TestedAt != nil {
			result.TestedAt = in.TestedAt.UTC()
		}
		if err := item.RecordQualityTest(result, now); err != nil {
			return nil, err
		}
		if err := repos.Batches().SaveWithLock(ctx, item); err != nil {
			return nil, err
		}

		resultsJSON, err := marshalArg(in.Results)
		if err != nil {
			return nil, err
		}
		return &pendingWrite{
			item: item,
			call: ledger.Call{
				Function: ledger.FnAddQualityTest,
				Args:     []string{in.ItemID, labID, in.TestType, resultsJSON, strconv.FormatBool(passed)},
			},
		}, nil
	})
}

// RecordProcessingStep records a processing operation on a tested batch.
// Further steps on a PROCESSED batch re-affirm the status and are still anchored.
func (r *EventRecorder) RecordProcessingStep(ctx context.Context, actor shared.Actor, in ProcessingInput) (*EventResult, error) {
	if !actor.HasAnyRole(shared.RoleProcessor) {
		return nil, shared.ErrForbidden
	}
	if err := validateInput(r.validate, in); err != nil {
		return nil, err
	}
	processorID, err := actingAs(actor, in.ProcessorID, "processorId")
	if err != nil {
		return nil, err
	}

	return r.record(ctx, ledger.OperationProcessing, in.ItemID, func(ctx context.Context, repos TransactionalRepositories, now time.Time) (*pendingWrite, error) {
		item, err := loadForUpdate(ctx, repos, in.ItemID)
		if err != nil {
			return nil, err
		}
		step := batch.ProcessingStep{
			ProcessorID: processorID,
			StepType:    in.StepType,
			Conditions:  in.Conditions,
		}
		if in.ProcessedAt != nil {
			step.ProcessedAt = in.ProcessedAt.UTC()
		}
		reaffirmed, err := item.RecordProcessingStep(step, now)
		if err != nil {
			return nil, err
		}
		if err := repos.Batches().SaveWithLock(ctx, item); err != nil {
			return nil, err
		}

		conditionsJSON, err := marshalArg(in.Conditions)
		if err != nil {
			return nil, err
		}
		return &pendingWrite{
			item:       item,
			reaffirmed: reaffirmed,
			call: ledger.Call{
				Function: ledger.FnAddProcessingStep,
				Args:     []string{in.ItemID, processorID, in.StepType, conditionsJSON},
			},
		}, nil
	})
}

// record is the single write primitive. The item lock is held until the audit record
// is written so ledger submissions for one item follow local commit order.
func (r *EventRecorder) record(ctx context.Context, kind ledger.OperationKind, itemID string, mutate mutation) (*EventResult, error) {
	ctx = logger.WithItemID(ctx, itemID)
	ctx, span := telemetry.StartSpan(ctx, "recorder."+string(kind),
		telemetry.SpanAttrItemID.String(itemID),
		telemetry.SpanAttrOperation.String(string(kind)),
	)
	defer span.End()
	log := logger.WithLogger(ctx, r.logger).With(zap.String("operation", string(kind)))

	unlock, err := r.locker.Lock(ctx, itemID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, lockError(err)
	}
	defer unlock()

	var pending *pendingWrite
	err = r.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		pending, err = mutate(ctx, repos, r.now().UTC())
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, commitError(err)
	}

	// the local write is durable; the client going away must not skip the ledger or the audit
	ledgerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.ledgerTimeout)
	defer cancel()

	result := &EventResult{
		Item:       pending.item,
		Operation:  kind,
		TraceCode:  pending.traceCode,
		Reaffirmed: pending.reaffirmed,
	}
	in := ledger.RecordInput{ItemID: itemID, Operation: kind, Payload: pending.call}

	submitted, submitErr := r.gateway.Submit(ledgerCtx, pending.call.Function, pending.call.Args...)
	in.TxID = submitted.TxID
	result.TxID = submitted.TxID
	if submitErr != nil {
		in.Outcome = ledger.OutcomeFailed
		in.Error = submitErr.Error()
		result.LedgerError = ledgerFailure(submitErr)
		log.Warn("Ledger write failed, local state kept",
			zap.String("tx_id", submitted.TxID),
			zap.String("code", result.LedgerError.Code),
			zap.Error(submitErr),
		)
	} else {
		in.Outcome = ledger.OutcomeSuccess
		result.LedgerConfirmed = true
		if submitted.TxID == "" {
			log.Warn("Ledger confirmed the write without a transaction id")
		}
	}
	telemetry.RecordTxID(span, submitted.TxID)

	rec, err := r.audit.Record(ledgerCtx, in)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	result.AuditRecordID = rec.ID

	log.Info("Event recorded",
		zap.Bool("ledger_confirmed", result.LedgerConfirmed),
		zap.String("tx_id", result.TxID),
		zap.String("audit_record_id", rec.ID),
		zap.String("status", string(pending.item.Status)),
	)
	return result, nil
}

// actingAs resolves whose identity an event is recorded under
func actingAs(actor shared.Actor, requested, field string) (string, error) {
	if actor.IsAdmin() {
		if requested == "" {
			return "", shared.NewValidationError("%s is required when recording on behalf of another party", field)
		}
		return requested, nil
	}
	if requested != "" && requested != actor.ID {
		return "", shared.NewDomainError(shared.CodeForbidden, field+" must match the authenticated actor")
	}
	if actor.ID == "" {
		return "", shared.ErrUnauthorized
	}
	return actor.ID, nil
}

func loadForUpdate(ctx context.Context, repos TransactionalRepositories, itemID string) (*batch.HerbBatch, error) {
	item, err := repos.Batches().FindByIDForUpdate(ctx, itemID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFoundError("herb batch %s not found", itemID)
		}
		return nil, err
	}
	return item, nil
}

// notFoundOr maps a repository miss to a NotFoundError and anything else to a PersistenceError
func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NewNotFoundError(format, args...)
	}
	return shared.NewPersistenceError("failed to load record", err)
}

// commitError keeps domain errors and reports anything else as a storage failure
func commitError(err error) error {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return shared.NewPersistenceError("failed to commit local change", err)
}

func ledgerFailure(err error) *LedgerFailure {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return &LedgerFailure{Code: de.Code, Message: de.Message}
	}
	return &LedgerFailure{Code: shared.CodeLedgerUnavailable, Message: err.Error()}
}

// marshalArg encodes a JSON ledger argument; nil maps become {}
func marshalArg(v map[string]any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", shared.NewValidationError("argument is not serialisable: %v", err)
	}
	return string(raw), nil
}
