package traceability

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/herbtrace/backend/internal/domain/ledger"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/infrastructure/logger"
	"github.com/herbtrace/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ResubmitMetrics observes resubmission outcomes
type ResubmitMetrics interface {
	RecordResubmission(ctx context.Context, operation, outcome string)
	RecordUnresolvedFailures(ctx context.Context, n int64)
}

// ResubmissionConfig tunes ResubmitPending
type ResubmissionConfig struct {
	LedgerTimeout time.Duration
	BatchSize     int
	// MaxAttempts caps automatic retries per failed record; 0 means unlimited
	MaxAttempts int
	Workers     int
}

// ResubmissionService replays FAILED ledger writes. Every attempt appends a new audit
// record pointing at the original; the original is never touched.
type ResubmissionService struct {
	gateway ledger.Gateway
	audit   *AuditService
	locker  ItemLocker
	metrics ResubmitMetrics
	config  ResubmissionConfig
	logger  *zap.Logger
}

// NewResubmissionService creates a new ResubmissionService. metrics may be nil.
func NewResubmissionService(
	gateway ledger.Gateway,
	audit *AuditService,
	locker ItemLocker,
	metrics ResubmitMetrics,
	config ResubmissionConfig,
	log *zap.Logger,
) *ResubmissionService {
	if config.LedgerTimeout <= 0 {
		config.LedgerTimeout = DefaultLedgerTimeout
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &ResubmissionService{
		gateway: gateway,
		audit:   audit,
		locker:  locker,
		metrics: metrics,
		config:  config,
		logger:  log.Named("resubmit"),
	}
}

// Resubmit retries one failed record on behalf of an administrator.
// Given a failed resubmission, the original it retried is replayed.
func (s *ResubmissionService) Resubmit(ctx context.Context, actor shared.Actor, recordID string) (*ResubmitResult, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	rec, err := s.audit.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !rec.Failed() {
		return nil, shared.NewInvalidTransitionError("audit record %s did not fail", recordID)
	}

	original := rec
	if rec.ResubmissionOf != "" {
		original, err = s.audit.Get(ctx, rec.ResubmissionOf)
		if err != nil {
			return nil, err
		}
	}
	return s.resubmit(ctx, original)
}

// ResubmitPending makes one pass over the oldest unresolved failures. Items are handled
// concurrently; records of one item are replayed in their original order, and the first
// failure ends that item's pass.
func (s *ResubmissionService) ResubmitPending(ctx context.Context) (ResubmitSummary, error) {
	var summary ResubmitSummary

	page, err := s.audit.ListFailed(ctx, shared.Filter{Page: 1, PageSize: s.config.BatchSize, OrderDir: "asc"})
	if err != nil {
		return summary, err
	}
	if s.metrics != nil {
		s.metrics.RecordUnresolvedFailures(ctx, page.Total)
	}

	order := make([]string, 0)
	byItem := make(map[string][]ledger.OperationRecord)
	for _, rec := range page.Items {
		if _, seen := byItem[rec.ItemID]; !seen {
			order = append(order, rec.ItemID)
		}
		byItem[rec.ItemID] = append(byItem[rec.ItemID], rec)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)

	for _, itemID := range order {
		records := byItem[itemID]
		g.Go(func() error {
			for _, rec := range records {
				if gctx.Err() != nil {
					return nil
				}
				res, skipped, err := s.resubmitPending(gctx, rec)
				if err != nil {
					return err
				}

				mu.Lock()
				switch {
				case skipped:
					summary.Skipped++
				case res.LedgerConfirmed:
					summary.Attempted++
					summary.Succeeded++
				default:
					summary.Attempted++
					summary.Failed++
					if res.LedgerError != nil && res.LedgerError.Code == shared.CodeLedgerUnavailable {
						summary.Unavailable++
					}
				}
				mu.Unlock()

				if !skipped && !res.LedgerConfirmed {
					return nil
				}
			}
			return nil
		})
	}

	err = g.Wait()
	return summary, err
}

func (s *ResubmissionService) resubmitPending(ctx context.Context, rec ledger.OperationRecord) (*ResubmitResult, bool, error) {
	if s.config.MaxAttempts > 0 {
		n, err := s.audit.CountResubmissions(ctx, rec.ID)
		if err != nil {
			return nil, false, err
		}
		if n >= int64(s.config.MaxAttempts) {
			return nil, true, nil
		}
	}
	res, err := s.resubmit(ctx, &rec)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidTransition) {
			return nil, true, nil
		}
		return nil, false, err
	}
	return res, false, nil
}

func (s *ResubmissionService) resubmit(ctx context.Context, original *ledger.OperationRecord) (*ResubmitResult, error) {
	ctx = logger.WithItemID(ctx, original.ItemID)
	ctx, span := telemetry.StartSpan(ctx, "resubmit."+string(original.Operation),
		telemetry.SpanAttrItemID.String(original.ItemID),
		telemetry.SpanAttrOperation.String(string(original.Operation)),
	)
	defer span.End()
	log := logger.WithLogger(ctx, s.logger).With(zap.String("resubmission_of", original.ID))

	unlock, err := s.locker.Lock(ctx, original.ItemID)
	if err != nil {
		return nil, lockError(err)
	}
	defer unlock()

	// re-checked under the item lock; a concurrent replay may have landed meanwhile
	records, err := s.audit.ListFor(ctx, original.ItemID)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ResubmissionOf == original.ID && r.Outcome == ledger.OutcomeSuccess {
			return nil, shared.NewInvalidTransitionError("audit record %s was already resubmitted successfully", original.ID)
		}
	}

	ledgerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.LedgerTimeout)
	defer cancel()

	in := ledger.RecordInput{
		ItemID:         original.ItemID,
		Operation:      original.Operation,
		Payload:        original.Payload,
		ResubmissionOf: original.ID,
	}
	result := &ResubmitResult{}

	submitted, submitErr := s.gateway.Submit(ledgerCtx, original.Payload.Function, original.Payload.Args...)
	in.TxID = submitted.TxID
	telemetry.RecordTxID(span, submitted.TxID)
	outcome := telemetry.OutcomeSuccess
	if submitErr != nil {
		in.Outcome = ledger.OutcomeFailed
		in.Error = submitErr.Error()
		result.LedgerError = ledgerFailure(submitErr)
		outcome = telemetry.OutcomeRejected
		if result.LedgerError.Code == shared.CodeLedgerUnavailable {
			outcome = telemetry.OutcomeUnavailable
		}
	} else {
		in.Outcome = ledger.OutcomeSuccess
		result.LedgerConfirmed = true
	}

	rec, err := s.audit.Record(ledgerCtx, in)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	result.Record = rec
	if s.metrics != nil {
		s.metrics.RecordResubmission(ctx, string(original.Operation), outcome)
	}

	if submitErr != nil {
		log.Warn("Resubmission failed", zap.String("code", result.LedgerError.Code), zap.Error(submitErr))
	} else {
		log.Info("Resubmission confirmed", zap.String("tx_id", rec.TxID))
	}
	return result, nil
}
