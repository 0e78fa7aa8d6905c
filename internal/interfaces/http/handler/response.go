package handler

import (
	"time"

	"github.com/herbtrace/backend/internal/application/traceability"
	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/ledger"
)

// ItemResponse is an herb batch as returned by the API
type ItemResponse struct {
	ID          string              `json:"id"`
	Species     string              `json:"species"`
	CollectorID string              `json:"collectorId"`
	Status      string              `json:"status"`
	Metadata    map[string]any      `json:"metadata"`
	Version     int                 `json:"version"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	TraceCodes  []TraceCodeResponse `json:"traceCodes,omitempty"`
}

// TraceCodeResponse is a trace binding
type TraceCodeResponse struct {
	Code          string     `json:"code"`
	ItemID        string     `json:"itemId"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"createdAt"`
	DeactivatedAt *time.Time `json:"deactivatedAt,omitempty"`
}

// LedgerErrorResponse explains why the ledger write did not land
type LedgerErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventResponse is the outcome of a recorded field event. ledgerConfirmed=false
// means the local write succeeded and the ledger write is pending resubmission.
type EventResponse struct {
	Item            ItemResponse         `json:"item"`
	Operation       string               `json:"operation"`
	TraceCode       string               `json:"traceCode,omitempty"`
	LedgerConfirmed bool                 `json:"ledgerConfirmed"`
	TxID            string               `json:"txId,omitempty"`
	LedgerError     *LedgerErrorResponse `json:"ledgerError,omitempty"`
	AuditRecordID   string               `json:"auditRecordId"`
	Reaffirmed      bool                 `json:"reaffirmed,omitempty"`
}

// AuditRecordResponse is one ledger submission attempt
type AuditRecordResponse struct {
	ID             string      `json:"id"`
	ItemID         string      `json:"itemId"`
	Operation      string      `json:"operation"`
	Outcome        string      `json:"outcome"`
	TxID           string      `json:"txId,omitempty"`
	Payload        ledger.Call `json:"payload"`
	PayloadHash    string      `json:"payloadHash"`
	Error          string      `json:"error,omitempty"`
	ResubmissionOf string      `json:"resubmissionOf,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// ResubmitResponse is the outcome of a manual resubmission
type ResubmitResponse struct {
	Record          AuditRecordResponse  `json:"record"`
	LedgerConfirmed bool                 `json:"ledgerConfirmed"`
	LedgerError     *LedgerErrorResponse `json:"ledgerError,omitempty"`
}

// PublicTraceResponse is what a consumer scanning a trace code sees
type PublicTraceResponse struct {
	ItemID      string             `json:"itemId"`
	Species     string             `json:"species"`
	Status      string             `json:"status"`
	CollectedAt string             `json:"collectedAt,omitempty"`
	Location    *PublicLocation    `json:"location,omitempty"`
	Degraded    bool               `json:"degraded"`
	Entries     []PublicTraceEntry `json:"entries"`
}

// PublicLocation is the coarse collection site
type PublicLocation struct {
	Region    string  `json:"region,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PublicTraceEntry is one custody event in a public trace
type PublicTraceEntry struct {
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	TxID      string    `json:"txId,omitempty"`
	Confirmed bool      `json:"confirmed"`
	Failed    bool      `json:"failed"`
}

func toItemResponse(b *batch.HerbBatch) ItemResponse {
	meta := map[string]any(b.Metadata.Clone())
	return ItemResponse{
		ID:          b.ID,
		Species:     b.Species,
		CollectorID: b.CollectorID,
		Status:      string(b.Status),
		Metadata:    meta,
		Version:     b.Version,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func toTraceCodeResponse(t batch.TraceBinding) TraceCodeResponse {
	return TraceCodeResponse{
		Code:          t.Code,
		ItemID:        t.ItemID,
		Active:        t.Active,
		CreatedAt:     t.CreatedAt,
		DeactivatedAt: t.DeactivatedAt,
	}
}

func toItemViewResponse(v *traceability.ItemView) ItemResponse {
	resp := toItemResponse(v.Item)
	resp.TraceCodes = make([]TraceCodeResponse, 0, len(v.TraceCodes))
	for _, t := range v.TraceCodes {
		resp.TraceCodes = append(resp.TraceCodes, toTraceCodeResponse(t))
	}
	return resp
}

func toLedgerErrorResponse(f *traceability.LedgerFailure) *LedgerErrorResponse {
	if f == nil {
		return nil
	}
	return &LedgerErrorResponse{Code: f.Code, Message: f.Message}
}

func toEventResponse(r *traceability.EventResult) EventResponse {
	return EventResponse{
		Item:            toItemResponse(r.Item),
		Operation:       string(r.Operation),
		TraceCode:       r.TraceCode,
		LedgerConfirmed: r.LedgerConfirmed,
		TxID:            r.TxID,
		LedgerError:     toLedgerErrorResponse(r.LedgerError),
		AuditRecordID:   r.AuditRecordID,
		Reaffirmed:      r.Reaffirmed,
	}
}

func toAuditRecordResponse(r *ledger.OperationRecord) AuditRecordResponse {
	return AuditRecordResponse{
		ID:             r.ID,
		ItemID:         r.ItemID,
		Operation:      string(r.Operation),
		Outcome:        string(r.Outcome),
		TxID:           r.TxID,
		Payload:        r.Payload,
		PayloadHash:    r.PayloadHash,
		Error:          r.Error,
		ResubmissionOf: r.ResubmissionOf,
		CreatedAt:      r.CreatedAt,
	}
}

func toAuditRecordResponses(records []ledger.OperationRecord) []AuditRecordResponse {
	out := make([]AuditRecordResponse, 0, len(records))
	for i := range records {
		out = append(out, toAuditRecordResponse(&records[i]))
	}
	return out
}

func toResubmitResponse(r *traceability.ResubmitResult) ResubmitResponse {
	return ResubmitResponse{
		Record:          toAuditRecordResponse(r.Record),
		LedgerConfirmed: r.LedgerConfirmed,
		LedgerError:     toLedgerErrorResponse(r.LedgerError),
	}
}

func toPublicTraceResponse(p *traceability.PublicTrace) PublicTraceResponse {
	resp := PublicTraceResponse{
		ItemID:      p.ItemID,
		Species:     p.Species,
		Status:      string(p.Status),
		CollectedAt: p.CollectedAt,
		Degraded:    p.Degraded,
		Entries:     make([]PublicTraceEntry, 0, len(p.Entries)),
	}
	if p.Location != nil {
		resp.Location = &PublicLocation{
			Region:    p.Location.Region,
			Latitude:  p.Location.Latitude,
			Longitude: p.Location.Longitude,
		}
	}
	for _, e := range p.Entries {
		resp.Entries = append(resp.Entries, PublicTraceEntry{
			Kind:      e.Kind,
			Timestamp: e.Timestamp,
			TxID:      e.TxID,
			Confirmed: e.Confirmed,
			Failed:    e.Failed,
		})
	}
	return resp
}
