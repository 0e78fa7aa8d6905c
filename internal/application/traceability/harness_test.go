package traceability

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/infrastructure/lock"
	"go.uber.org/zap"
)

var (
	collector = shared.Actor{ID: "collector-1", Role: shared.RoleCollector}
	lab       = shared.Actor{ID: "lab-7", Role: shared.RoleLab}
	processor = shared.Actor{ID: "proc-3", Role: shared.RoleProcessor}
	admin     = shared.Actor{ID: "admin-1", Role: shared.RoleAdmin}
)

type harness struct {
	clock     *testClock
	batches   *memoryBatchRepo
	bindings  *memoryBindingRepo
	auditRepo *memoryAuditRepo
	ledger    *fakeLedger
	metrics   *countingMetrics
	locker    *lock.KeyedMutex

	audit    *AuditService
	recorder *EventRecorder
	journeys *JourneyReconciler
	lookup   *TraceLookup
	items    *ItemService
	resubmit *ResubmissionService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:     newTestClock(),
		batches:   newMemoryBatchRepo(),
		bindings:  newMemoryBindingRepo(),
		auditRepo: &memoryAuditRepo{},
		metrics:   &countingMetrics{},
		locker:    lock.NewKeyedMutex(),
	}
	h.ledger = newFakeLedger(h.clock)

	var seq atomic.Int64
	ids := batch.NewIDGeneratorWith(h.clock.Now, func(n int) string {
		return fmt.Sprintf("%0*d", n, seq.Add(1))
	})

	scope := NewNoOpTransactionScope(h.batches, h.bindings)
	h.audit = NewAuditService(h.auditRepo)
	h.audit.now = h.clock.Now
	h.recorder = NewEventRecorder(scope, h.ledger, h.audit, h.locker, zap.NewNop(),
		WithClock(h.clock.Now),
		WithIDGenerator(ids),
	)
	h.journeys = NewJourneyReconciler(h.batches, h.ledger, h.audit, h.metrics, zap.NewNop())
	h.lookup = NewTraceLookup(scope, h.bindings, h.batches, h.journeys, zap.NewNop())
	h.lookup.now = h.clock.Now
	h.items = NewItemService(scope, h.batches, h.bindings, h.locker)
	h.items.now = h.clock.Now
	h.resubmit = NewResubmissionService(h.ledger, h.audit, h.locker, h.metrics, ResubmissionConfig{
		BatchSize:   10,
		MaxAttempts: 2,
		Workers:     2,
	}, zap.NewNop())
	return h
}

func ptr[T any](v T) *T {
	return &v
}

func ashwagandha() CollectionInput {
	return CollectionInput{
		Species:   "Ashwagandha",
		Latitude:  26.9124,
		Longitude: 75.7873,
		Region:    "Rajasthan",
		Quality:   4,
		Notes:     "roots, hand harvested",
	}
}
