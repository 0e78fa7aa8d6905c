package traceability

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/ledger"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// PublicTrace is what a consumer scanning a trace code may see
type PublicTrace struct {
	ItemID      string
	Species     string
	Status      batch.BatchStatus
	CollectedAt string
	Location    *PublicLocation
	Degraded    bool
	Entries     []PublicTraceEntry
}

// PublicLocation is the collection site rounded to about ten kilometres
type PublicLocation struct {
	Region    string
	Latitude  float64
	Longitude float64
}

// PublicTraceEntry is a journey entry without internal detail
type PublicTraceEntry struct {
	Kind      string
	Timestamp time.Time
	TxID      string
	Confirmed bool
	Failed    bool
}

// TraceLookup resolves public trace codes
type TraceLookup struct {
	scope    TransactionScope
	bindings batch.TraceBindingRepository
	batches  batch.HerbBatchRepository
	journeys *JourneyReconciler
	now      func() time.Time
	logger   *zap.Logger
}

// NewTraceLookup creates a new TraceLookup
func NewTraceLookup(
	scope TransactionScope,
	bindings batch.TraceBindingRepository,
	batches batch.HerbBatchRepository,
	journeys *JourneyReconciler,
	log *zap.Logger,
) *TraceLookup {
	return &TraceLookup{
		scope:    scope,
		bindings: bindings,
		batches:  batches,
		journeys: journeys,
		now:      time.Now,
		logger:   log.Named("trace"),
	}
}

// Lookup resolves an active code to the public view of its item
func (s *TraceLookup) Lookup(ctx context.Context, code string) (*PublicTrace, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, shared.NewValidationError("trace code is required")
	}

	binding, err := s.bindings.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFoundError("trace code not found")
		}
		return nil, shared.NewPersistenceError("failed to resolve trace code", err)
	}
	if !binding.Active {
		return nil, shared.NewNotFoundError("trace code not found")
	}

	item, err := s.batches.FindByID(ctx, binding.ItemID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFoundError("trace code not found")
		}
		return nil, shared.NewPersistenceError("failed to load item", err)
	}

	journey, err := s.journeys.Get(ctx, item.ID, JourneyOptions{Detailed: true})
	if err != nil {
		return nil, err
	}

	logger.WithLogger(logger.WithItemID(ctx, item.ID), s.logger).Debug("Trace code resolved",
		zap.Bool("degraded", journey.Degraded),
		zap.Int("entries", journey.Len()),
	)
	return publicTrace(item, journey), nil
}

// Deactivate retires a code. Deactivating an inactive code is a no-op.
func (s *TraceLookup) Deactivate(ctx context.Context, actor shared.Actor, code string) (*batch.TraceBinding, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	code = normalizeCode(code)

	var binding *batch.TraceBinding
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		b, err := repos.TraceBindings().FindByCode(ctx, code)
		if err != nil {
			return err
		}
		binding = b
		if !b.Deactivate(s.now().UTC()) {
			return nil
		}
		return repos.TraceBindings().Deactivate(ctx, b)
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFoundError("trace code not found")
		}
		return nil, commitError(err)
	}

	logger.L(ctx).Info("Trace code deactivated",
		zap.String("code", binding.Code),
		zap.String("item_id", binding.ItemID),
		zap.String("actor_id", actor.ID),
	)
	return binding, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func publicTrace(item *batch.HerbBatch, journey *ledger.Journey) *PublicTrace {
	out := &PublicTrace{
		ItemID:   item.ID,
		Species:  item.Species,
		Status:   item.Status,
		Degraded: journey.Degraded,
		Entries:  make([]PublicTraceEntry, 0, journey.Len()),
	}
	if v, ok := item.Metadata["collectedAt"].(string); ok {
		out.CollectedAt = v
	}
	if loc, ok := item.Metadata["location"].(map[string]any); ok {
		out.Location = coarseLocation(loc)
	}
	for e := range journey.All() {
		out.Entries = append(out.Entries, PublicTraceEntry{
			Kind:      e.Kind,
			Timestamp: e.Timestamp,
			TxID:      e.TxID,
			Confirmed: e.Confirmed(),
			Failed:    e.Status == ledger.EntryFailedAttempt,
		})
	}
	return out
}

func coarseLocation(loc map[string]any) *PublicLocation {
	lat, okLat := toFloat(loc["latitude"])
	lng, okLng := toFloat(loc["longitude"])
	if !okLat || !okLng {
		return nil
	}
	region, _ := loc["region"].(string)
	return &PublicLocation{
		Region:    region,
		Latitude:  math.Round(lat*10) / 10,
		Longitude: math.Round(lng*10) / 10,
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
