package handler

import (
	"context"

	"github.com/herbtrace/backend/internal/application/traceability"
	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/ledger"
	"github.com/herbtrace/backend/internal/domain/shared"
	infraledger "github.com/herbtrace/backend/internal/infrastructure/ledger"
	"github.com/stretchr/testify/mock"
)

type MockEventRecorder struct {
	mock.Mock
}

func (m *MockEventRecorder) RecordCollection(ctx context.Context, actor shared.Actor, in traceability.CollectionInput) (*traceability.EventResult, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*traceability.EventResult), args.Error(1)
}

func (m *MockEventRecorder) RecordQualityTest(ctx context.Context, actor shared.Actor, in traceability.QualityTestInput) (*traceability.EventResult, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*traceability.EventResult), args.Error(1)
}

func (m *MockEventRecorder) RecordProcessingStep(ctx context.Context, actor shared.Actor, in traceability.ProcessingInput) (*traceability.EventResult, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*traceability.EventResult), args.Error(1)
}

type MockItemReader struct {
	mock.Mock
}

func (m *MockItemReader) Get(ctx context.Context, itemID string) (*traceability.ItemView, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*traceability.ItemView), args.Error(1)
}

func (m *MockItemReader) List(ctx context.Context, filter shared.Filter) (shared.Paginated[batch.HerbBatch], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[batch.HerbBatch]), args.Error(1)
}

func (m *MockItemReader) UpdateMetadata(ctx context.Context, actor shared.Actor, itemID string, patch map[string]any) (*batch.HerbBatch, error) {
	args := m.Called(ctx, actor, itemID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*batch.HerbBatch), args.Error(1)
}

type MockJourneyReader struct {
	mock.Mock
}

func (m *MockJourneyReader) Get(ctx context.Context, itemID string, opts traceability.JourneyOptions) (*ledger.Journey, error) {
	args := m.Called(ctx, itemID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Journey), args.Error(1)
}

type MockTraceResolver struct {
	mock.Mock
}

func (m *MockTraceResolver) Lookup(ctx context.Context, code string) (*traceability.PublicTrace, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*traceability.PublicTrace), args.Error(1)
}

func (m *MockTraceResolver) Deactivate(ctx context.Context, actor shared.Actor, code string) (*batch.TraceBinding, error) {
	args := m.Called(ctx, actor, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*batch.TraceBinding), args.Error(1)
}

type MockAuditReader struct {
	mock.Mock
}

func (m *MockAuditReader) ListFor(ctx context.Context, itemID string) ([]ledger.OperationRecord, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.OperationRecord), args.Error(1)
}

func (m *MockAuditReader) ListFailed(ctx context.Context, filter shared.Filter) (shared.Paginated[ledger.OperationRecord], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[ledger.OperationRecord]), args.Error(1)
}

type MockResubmitter struct {
	mock.Mock
}

func (m *MockResubmitter) Resubmit(ctx context.Context, actor shared.Actor, recordID string) (*traceability.ResubmitResult, error) {
	args := m.Called(ctx, actor, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*traceability.ResubmitResult), args.Error(1)
}

type stubPinger struct{ err error }

func (s stubPinger) PingContext(context.Context) error { return s.err }

type stubLedger struct{ state infraledger.State }

func (s stubLedger) State() infraledger.State { return s.state }
