package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/herbtrace/backend/internal/application/traceability"
	"github.com/herbtrace/backend/internal/domain/ledger"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newAuditRouter(audit AuditReader, resubmitter Resubmitter, actor *shared.Actor) *gin.Engine {
	h := NewAuditHandler(audit, resubmitter)
	r := newTestRouter(actor)
	r.GET("/items/:itemId/audit", h.ListForItem)
	r.GET("/audit/failed", h.ListFailed)
	r.POST("/audit/:recordId/resubmit", h.Resubmit)
	return r
}

func failedRecord() ledger.OperationRecord {
	return ledger.OperationRecord{
		ID:          "7b0c6f1e-1c2d-4e5f-8a9b-0c1d2e3f4a5b",
		ItemID:      "ASH1",
		Operation:   ledger.OperationQualityTest,
		Outcome:     ledger.OutcomeFailed,
		Payload:     ledger.Call{Function: "AddQualityTest", Args: []string{"ASH1", "lab-7", "moisture", "{}", "true"}},
		PayloadHash: "sha256:abc",
		Error:       "ledger unavailable: deadline exceeded",
		CreatedAt:   testNow,
	}
}

func TestAuditHandler_ListForItem(t *testing.T) {
	audit := new(MockAuditReader)
	audit.On("ListFor", mock.Anything, "ASH1").Return([]ledger.OperationRecord{failedRecord()}, nil)

	w := doJSON(newAuditRouter(audit, nil, &admin), http.MethodGet, "/items/ASH1/audit", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp, _ := decode(t, w)
	records := resp.Data.([]any)
	require.Len(t, records, 1)
	rec := records[0].(map[string]any)
	assert.Equal(t, "FAILED", rec["outcome"])
	assert.Equal(t, "AddQualityTest", rec["payload"].(map[string]any)["function"])
	assert.NotContains(t, rec, "txId")
}

func TestAuditHandler_ListFailed(t *testing.T) {
	audit := new(MockAuditReader)
	audit.On("ListFailed", mock.Anything, mock.MatchedBy(func(f shared.Filter) bool {
		return f.Page == 1 && f.PageSize == 50
	})).Return(shared.NewPaginated([]ledger.OperationRecord{failedRecord()}, 1, 1, 50), nil)

	w := doJSON(newAuditRouter(audit, nil, &admin), http.MethodGet, "/audit/failed?pageSize=50", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp, _ := decode(t, w)
	assert.Equal(t, int64(1), resp.Meta.Total)
	audit.AssertExpectations(t)

	w = doJSON(newAuditRouter(audit, nil, &admin), http.MethodGet, "/audit/failed?pageSize=1000", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuditHandler_Resubmit(t *testing.T) {
	original := failedRecord()
	retry := failedRecord()
	retry.ID = "tx-2"
	retry.TxID = "tx-2"
	retry.Outcome = ledger.OutcomeSuccess
	retry.Error = ""
	retry.ResubmissionOf = original.ID

	resubmitter := new(MockResubmitter)
	resubmitter.On("Resubmit", mock.Anything, admin, original.ID).
		Return(&traceability.ResubmitResult{Record: &retry, LedgerConfirmed: true}, nil)
	resubmitter.On("Resubmit", mock.Anything, admin, "tx-2").
		Return(nil, shared.NewInvalidTransitionError("audit record tx-2 did not fail"))

	r := newAuditRouter(nil, resubmitter, &admin)

	w := doJSON(r, http.MethodPost, "/audit/"+original.ID+"/resubmit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.Equal(t, true, data["ledgerConfirmed"])
	assert.Equal(t, original.ID, data["record"].(map[string]any)["resubmissionOf"])

	w = doJSON(r, http.MethodPost, "/audit/tx-2/resubmit", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	resp, _ := decode(t, w)
	assert.Equal(t, dto.ErrCodeInvalidTransition, resp.Error.Code)
}
