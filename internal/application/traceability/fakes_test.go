package traceability

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/ledger"
	"github.com/herbtrace/backend/internal/domain/shared"
)

// testClock hands out strictly increasing instants
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func copyBatch(b *batch.HerbBatch) *batch.HerbBatch {
	c := *b
	c.Metadata = b.Metadata.Clone()
	return &c
}

type memoryBatchRepo struct {
	mu    sync.Mutex
	items map[string]*batch.HerbBatch
	err   error
}

func newMemoryBatchRepo() *memoryBatchRepo {
	return &memoryBatchRepo{items: make(map[string]*batch.HerbBatch)}
}

func (r *memoryBatchRepo) FindByID(_ context.Context, id string) (*batch.HerbBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	b, ok := r.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return copyBatch(b), nil
}

func (r *memoryBatchRepo) FindByIDForUpdate(ctx context.Context, id string) (*batch.HerbBatch, error) {
	return r.FindByID(ctx, id)
}

func (r *memoryBatchRepo) FindAll(_ context.Context, filter shared.Filter) ([]batch.HerbBatch, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]batch.HerbBatch, 0, len(r.items))
	for _, b := range r.items {
		if s, ok := filter.Filters["status"]; ok && string(b.Status) != s {
			continue
		}
		out = append(out, *copyBatch(b))
	}
	slices.SortFunc(out, func(a, b batch.HerbBatch) int { return cmp.Compare(a.ID, b.ID) })
	return out, int64(len(out)), nil
}

func (r *memoryBatchRepo) Create(_ context.Context, b *batch.HerbBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.items[b.ID]; ok {
		return shared.ErrAlreadyExists
	}
	r.items[b.ID] = copyBatch(b)
	return nil
}

func (r *memoryBatchRepo) SaveWithLock(_ context.Context, b *batch.HerbBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	stored, ok := r.items[b.ID]
	if !ok || stored.Version != b.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.items[b.ID] = copyBatch(b)
	return nil
}

func (r *memoryBatchRepo) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[id]
	return ok, nil
}

type memoryBindingRepo struct {
	mu       sync.Mutex
	bindings map[string]*batch.TraceBinding
}

func newMemoryBindingRepo() *memoryBindingRepo {
	return &memoryBindingRepo{bindings: make(map[string]*batch.TraceBinding)}
}

func (r *memoryBindingRepo) Create(_ context.Context, t *batch.TraceBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bindings[t.Code]; ok {
		return shared.ErrAlreadyExists
	}
	c := *t
	r.bindings[t.Code] = &c
	return nil
}

func (r *memoryBindingRepo) FindByCode(_ context.Context, code string) (*batch.TraceBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.bindings[code]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r *memoryBindingRepo) FindByItemID(_ context.Context, itemID string) ([]batch.TraceBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []batch.TraceBinding
	for _, t := range r.bindings {
		if t.ItemID == itemID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *memoryBindingRepo) Deactivate(_ context.Context, t *batch.TraceBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.bindings[t.Code]
	if !ok {
		return shared.ErrNotFound
	}
	stored.Active = false
	stored.DeactivatedAt = t.DeactivatedAt
	return nil
}

type memoryAuditRepo struct {
	mu        sync.Mutex
	records   []ledger.OperationRecord
	createErr error
}

func (r *memoryAuditRepo) Create(_ context.Context, rec *ledger.OperationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.records = append(r.records, *rec)
	return nil
}

func (r *memoryAuditRepo) FindByID(_ context.Context, id string) (*ledger.OperationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			c := rec
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryAuditRepo) ListByItem(_ context.Context, itemID string) ([]ledger.OperationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ledger.OperationRecord
	for _, rec := range r.records {
		if rec.ItemID == itemID {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func (r *memoryAuditRepo) ListUnresolvedFailures(_ context.Context, filter shared.Filter) ([]ledger.OperationRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resolved := make(map[string]bool)
	for _, rec := range r.records {
		if rec.ResubmissionOf != "" && rec.Outcome == ledger.OutcomeSuccess {
			resolved[rec.ResubmissionOf] = true
		}
	}
	var out []ledger.OperationRecord
	for _, rec := range r.records {
		if rec.Failed() && rec.ResubmissionOf == "" && !resolved[rec.ID] {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	total := int64(len(out))
	if filter.PageSize > 0 {
		start := min(filter.Offset(), len(out))
		end := min(start+filter.PageSize, len(out))
		out = out[start:end]
	}
	return out, total, nil
}

func (r *memoryAuditRepo) CountResubmissions(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rec := range r.records {
		if rec.ResubmissionOf == id {
			n++
		}
	}
	return n, nil
}

func (r *memoryAuditRepo) all() []ledger.OperationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.records)
}

func sortRecords(records []ledger.OperationRecord) {
	slices.SortFunc(records, func(a, b ledger.OperationRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// fakeLedger is a ledger that keeps committed events per item and can be switched off
type fakeLedger struct {
	mu         sync.Mutex
	clock      *testClock
	seq        int
	events     []map[string]any
	submits    []ledger.Call
	evaluates  int
	submitErr  error
	evalErr    error
	omitTxID   bool // confirm submissions without reporting a transaction id
	onSubmit   func(ctx context.Context)
	onEvaluate func()
}

func newFakeLedger(clock *testClock) *fakeLedger {
	return &fakeLedger{clock: clock}
}

func (f *fakeLedger) Submit(ctx context.Context, function string, args ...string) (ledger.SubmitResult, error) {
	if f.onSubmit != nil {
		f.onSubmit(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	txID := fmt.Sprintf("tx-%04d", f.seq)
	f.submits = append(f.submits, ledger.Call{Function: function, Args: args})
	if f.submitErr != nil {
		return ledger.SubmitResult{TxID: txID}, f.submitErr
	}
	f.events = append(f.events, map[string]any{
		"txId":      txID,
		"type":      function,
		"timestamp": f.clock.Now().Format(time.RFC3339Nano),
		"itemId":    args[0],
	})
	if f.omitTxID {
		return ledger.SubmitResult{Payload: []byte(`{}`)}, nil
	}
	return ledger.SubmitResult{TxID: txID, Payload: []byte(`{}`)}, nil
}

func (f *fakeLedger) Evaluate(_ context.Context, function string, args ...string) ([]byte, error) {
	if f.onEvaluate != nil {
		f.onEvaluate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evaluates++
	if f.evalErr != nil {
		return nil, f.evalErr
	}
	if function != ledger.FnGetJourney {
		return nil, shared.NewLedgerRejectedError("unknown function "+function, nil)
	}
	var out []map[string]any
	for _, e := range f.events {
		if e["itemId"] == args[0] {
			out = append(out, e)
		}
	}
	return json.Marshal(out)
}

func (f *fakeLedger) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if down {
		f.submitErr = shared.NewLedgerUnavailableError("peer unreachable", context.DeadlineExceeded)
		f.evalErr = shared.NewLedgerUnavailableError("peer unreachable", context.DeadlineExceeded)
		return
	}
	f.submitErr = nil
	f.evalErr = nil
}

func (f *fakeLedger) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

type countingMetrics struct {
	mu            sync.Mutex
	degraded      int
	resubmissions map[string]int
	unresolved    int64
}

func (m *countingMetrics) RecordDegradedJourney(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degraded++
}

func (m *countingMetrics) RecordResubmission(_ context.Context, _ string, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resubmissions == nil {
		m.resubmissions = make(map[string]int)
	}
	m.resubmissions[outcome]++
}

func (m *countingMetrics) RecordUnresolvedFailures(_ context.Context, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unresolved = n
}

// failingScope fails every transaction before running it
type failingScope struct{ err error }

func (s failingScope) Execute(context.Context, func(TransactionalRepositories) error) error {
	return s.err
}
