package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/herbtrace/backend/internal/application/traceability"
	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTraceRouter(traces TraceResolver, actor *shared.Actor) *gin.Engine {
	h := NewTraceHandler(traces)
	r := newTestRouter(actor)
	r.POST("/trace", h.Lookup)
	r.POST("/trace-codes/:code/deactivate", h.Deactivate)
	return r
}

func TestTraceHandler_Lookup(t *testing.T) {
	traces := new(MockTraceResolver)
	traces.On("Lookup", mock.Anything, "0F3A9C1D2B4E5F60718293A4B5C6D7E8").Return(&traceability.PublicTrace{
		ItemID:      "ASH1773478800000K3P9",
		Species:     "Ashwagandha",
		Status:      batch.BatchStatusTested,
		CollectedAt: "2026-03-14T09:00:00Z",
		Location:    &traceability.PublicLocation{Region: "Rajasthan", Latitude: 26.9, Longitude: 75.8},
		Degraded:    true,
		Entries: []traceability.PublicTraceEntry{
			{Kind: "COLLECTION", Timestamp: testNow, TxID: "tx-1"},
			{Kind: "QUALITY_TEST", Timestamp: testNow, Failed: true},
		},
	}, nil)
	traces.On("Lookup", mock.Anything, "DEAD").Return(nil, shared.NewNotFoundError("trace code not found"))

	r := newTraceRouter(traces, nil)

	w := doJSON(r, http.MethodPost, "/trace", map[string]string{"code": "0F3A9C1D2B4E5F60718293A4B5C6D7E8"})
	require.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.Equal(t, "TESTED", data["status"])
	assert.Equal(t, true, data["degraded"])
	assert.NotContains(t, data, "collectorId")
	assert.NotContains(t, data, "metadata")
	entries := data["entries"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, true, entries[1].(map[string]any)["failed"])
	assert.NotContains(t, entries[1].(map[string]any), "auditRecordId")

	w = doJSON(r, http.MethodPost, "/trace", map[string]string{"code": "DEAD"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodPost, "/trace", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp, _ := decode(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
}

func TestTraceHandler_Deactivate(t *testing.T) {
	deactivated := testNow
	traces := new(MockTraceResolver)
	traces.On("Deactivate", mock.Anything, admin, "ABC").Return(&batch.TraceBinding{
		Code: "ABC", ItemID: "ASH1", Active: false, CreatedAt: testNow, DeactivatedAt: &deactivated,
	}, nil)
	traces.On("Deactivate", mock.Anything, collector, "ABC").Return(nil, shared.ErrForbidden)

	w := doJSON(newTraceRouter(traces, &admin), http.MethodPost, "/trace-codes/ABC/deactivate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.Equal(t, false, data["active"])
	assert.NotEmpty(t, data["deactivatedAt"])

	w = doJSON(newTraceRouter(traces, &collector), http.MethodPost, "/trace-codes/ABC/deactivate", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
