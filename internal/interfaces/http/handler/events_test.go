package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/herbtrace/backend/internal/application/traceability"
	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/ledger"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newEventRouter(recorder EventRecorder, actor *shared.Actor) *gin.Engine {
	h := NewEventHandler(recorder)
	r := newTestRouter(actor)
	r.POST("/events/collection", h.RecordCollection)
	r.POST("/events/quality-test", h.RecordQualityTest)
	r.POST("/events/processing", h.RecordProcessingStep)
	return r
}

func collectionBody() map[string]any {
	return map[string]any{
		"species":   "Ashwagandha",
		"latitude":  26.9124,
		"longitude": 75.7873,
		"region":    "Rajasthan",
		"quality":   4,
	}
}

func TestEventHandler_RecordCollection(t *testing.T) {
	tests := []struct {
		name       string
		result     *traceability.EventResult
		wantStatus int
	}{
		{
			name: "ledger confirmed",
			result: &traceability.EventResult{
				Item: sampleBatch(), Operation: ledger.OperationCollection, TraceCode: "0F3A9C1D2B4E5F60718293A4B5C6D7E8",
				LedgerConfirmed: true, TxID: "tx-1", AuditRecordID: "tx-1",
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "partial success",
			result: &traceability.EventResult{
				Item: sampleBatch(), Operation: ledger.OperationCollection, TraceCode: "0F3A9C1D2B4E5F60718293A4B5C6D7E8",
				LedgerError:   &traceability.LedgerFailure{Code: shared.CodeLedgerUnavailable, Message: "peer unreachable"},
				AuditRecordID: "7b0c6f1e-1c2d-4e5f-8a9b-0c1d2e3f4a5b",
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := new(MockEventRecorder)
			recorder.On("RecordCollection", mock.Anything, collector, mock.MatchedBy(func(in traceability.CollectionInput) bool {
				return in.Species == "Ashwagandha" && in.Quality == 4 && in.Region == "Rajasthan"
			})).Return(tt.result, nil)

			w := doJSON(newEventRouter(recorder, &collector), http.MethodPost, "/events/collection", collectionBody())

			assert.Equal(t, tt.wantStatus, w.Code)
			resp, data := decode(t, w)
			assert.True(t, resp.Success)
			assert.Equal(t, tt.result.LedgerConfirmed, data["ledgerConfirmed"])
			assert.Equal(t, "0F3A9C1D2B4E5F60718293A4B5C6D7E8", data["traceCode"])
			assert.Equal(t, "COLLECTION", data["operation"])
			item := data["item"].(map[string]any)
			assert.Equal(t, "ASH1773478800000K3P9", item["id"])
			assert.Equal(t, "COLLECTED", item["status"])
			if tt.result.LedgerError != nil {
				ledgerErr := data["ledgerError"].(map[string]any)
				assert.Equal(t, "LEDGER_UNAVAILABLE", ledgerErr["code"])
			} else {
				assert.NotContains(t, data, "ledgerError")
			}
			recorder.AssertExpectations(t)
		})
	}
}

func TestEventHandler_RecordQualityTest(t *testing.T) {
	lab := shared.Actor{ID: "lab-7", Role: shared.RoleLab}
	tested := sampleBatch()
	tested.Status = batch.BatchStatusTested

	recorder := new(MockEventRecorder)
	recorder.On("RecordQualityTest", mock.Anything, lab, mock.MatchedBy(func(in traceability.QualityTestInput) bool {
		return in.ItemID == tested.ID && in.Passed != nil && *in.Passed && in.Results["moisture"] == 8.5
	})).Return(&traceability.EventResult{
		Item: tested, Operation: ledger.OperationQualityTest,
		LedgerError:   &traceability.LedgerFailure{Code: shared.CodeLedgerRejected, Message: "endorsement failed"},
		AuditRecordID: "rec-1",
	}, nil)

	w := doJSON(newEventRouter(recorder, &lab), http.MethodPost, "/events/quality-test", map[string]any{
		"itemId": tested.ID, "testType": "moisture", "passed": true, "results": map[string]any{"moisture": 8.5},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.Equal(t, false, data["ledgerConfirmed"])
	assert.Equal(t, "TESTED", data["item"].(map[string]any)["status"])
	recorder.AssertExpectations(t)
}

func TestEventHandler_RecordProcessingStep(t *testing.T) {
	proc := shared.Actor{ID: "proc-3", Role: shared.RoleProcessor}
	processed := sampleBatch()
	processed.Status = batch.BatchStatusProcessed

	recorder := new(MockEventRecorder)
	recorder.On("RecordProcessingStep", mock.Anything, proc, mock.Anything).Return(&traceability.EventResult{
		Item: processed, Operation: ledger.OperationProcessing, LedgerConfirmed: true, TxID: "tx-9", AuditRecordID: "tx-9", Reaffirmed: true,
	}, nil)

	w := doJSON(newEventRouter(recorder, &proc), http.MethodPost, "/events/processing", map[string]any{
		"itemId": processed.ID, "stepType": "drying",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.Equal(t, true, data["ledgerConfirmed"])
	assert.Equal(t, true, data["reaffirmed"])
	assert.Equal(t, "tx-9", data["txId"])
}

func TestEventHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		actor      *shared.Actor
		body       any
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "no actor", body: collectionBody(), wantStatus: http.StatusUnauthorized, wantCode: dto.ErrCodeUnauthorized},
		{name: "malformed json", actor: &collector, body: `{"species":`, wantStatus: http.StatusBadRequest, wantCode: dto.ErrCodeInvalidJSON},
		{name: "validation", actor: &collector, body: collectionBody(), err: shared.NewValidationError("quality is required"), wantStatus: http.StatusBadRequest, wantCode: dto.ErrCodeValidation},
		{name: "forbidden", actor: &collector, body: collectionBody(), err: shared.ErrForbidden, wantStatus: http.StatusForbidden, wantCode: dto.ErrCodeForbidden},
		{name: "commit failure", actor: &collector, body: collectionBody(), err: shared.NewPersistenceError("commit failed", errors.New("x")), wantStatus: http.StatusInternalServerError, wantCode: dto.ErrCodePersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := new(MockEventRecorder)
			if tt.err != nil {
				recorder.On("RecordCollection", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			w := doJSON(newEventRouter(recorder, tt.actor), http.MethodPost, "/events/collection", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp, _ := decode(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
			if tt.err == nil {
				recorder.AssertNotCalled(t, "RecordCollection", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestEventHandler_QualityTestInvalidTransition(t *testing.T) {
	lab := shared.Actor{ID: "lab-7", Role: shared.RoleLab}
	recorder := new(MockEventRecorder)
	recorder.On("RecordQualityTest", mock.Anything, lab, mock.Anything).
		Return(nil, shared.NewInvalidTransitionError("cannot apply quality test in status TESTED"))

	w := doJSON(newEventRouter(recorder, &lab), http.MethodPost, "/events/quality-test", map[string]any{
		"itemId": "ASH1", "testType": "moisture", "passed": true,
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	resp, _ := decode(t, w)
	assert.Equal(t, dto.ErrCodeInvalidTransition, resp.Error.Code)
}
