package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func TestParseLedgerEvents(t *testing.T) {
	payload := []byte(`[
		{"txId":"tx-2","type":"AddQualityTest","timestamp":"2025-03-14T10:00:00Z","labId":"lab-7","passed":true},
		{"txID":"tx-1","eventType":"collection","timestamp":1741942800,"species":"Ashwagandha"},
		{"transactionId":"tx-3","operation":"processing-step","date":"2025-03-15"}
	]`)

	entries, err := ParseLedgerEvents(payload)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "tx-2", entries[0].TxID)
	assert.Equal(t, string(OperationQualityTest), entries[0].Kind)
	assert.Equal(t, time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC), entries[0].Timestamp)
	assert.Equal(t, "lab-7", entries[0].Details["labId"])
	assert.Equal(t, SourceLedger, entries[0].Source)
	assert.True(t, entries[0].Confirmed())

	assert.Equal(t, "tx-1", entries[1].TxID)
	assert.Equal(t, "COLLECTION", entries[1].Kind)
	assert.Equal(t, time.Unix(1741942800, 0).UTC(), entries[1].Timestamp)

	assert.Equal(t, "PROCESSING_STEP", entries[2].Kind)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), entries[2].Timestamp)
	assert.Nil(t, entries[2].Details)
}

func TestParseLedgerEvents_EmptyAndInvalid(t *testing.T) {
	for _, p := range []string{"", "null", "  []  "} {
		entries, err := ParseLedgerEvents([]byte(p))
		require.NoError(t, err)
		assert.Empty(t, entries)
	}

	_, err := ParseLedgerEvents([]byte(`{"not":"an array"}`))
	assert.Error(t, err)
}

func TestParseLedgerEvents_MillisAndProtoTimestamps(t *testing.T) {
	entries, err := ParseLedgerEvents([]byte(`[
		{"txId":"a","timestamp":1741942800123},
		{"txId":"b","timestamp":{"seconds":1741942800,"nanos":5}}
	]`))
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1741942800123).UTC(), entries[0].Timestamp)
	assert.Equal(t, time.Unix(1741942800, 5).UTC(), entries[1].Timestamp)
	assert.Equal(t, "UNKNOWN", entries[0].Kind)
}

func auditRecord(id, tx string, op OperationKind, outcome OutcomeStatus, at time.Time) OperationRecord {
	r := OperationRecord{
		ID: id, ItemID: "ASH1", Operation: op, Outcome: outcome, TxID: tx,
		Payload:   Call{Function: op.Function()},
		CreatedAt: at,
	}
	if outcome == OutcomeFailed {
		r.Error = "peer unreachable"
	}
	return r
}

func TestMergeJourney(t *testing.T) {
	ledgerEntries := []JourneyEntry{
		{TxID: "tx-2", Kind: "QUALITY_TEST", Timestamp: t0.Add(2 * time.Hour), Source: SourceLedger, Status: EntryConfirmed},
		{TxID: "tx-1", Kind: "COLLECTION", Timestamp: t0, Source: SourceLedger, Status: EntryConfirmed},
	}
	records := []OperationRecord{
		auditRecord("tx-1", "tx-1", OperationCollection, OutcomeSuccess, t0),
		auditRecord("local-1", "", OperationProcessing, OutcomeFailed, t0.Add(3*time.Hour)),
		auditRecord("tx-9", "tx-9", OperationProcessing, OutcomeFailed, t0.Add(time.Hour)),
		auditRecord("tx-2", "tx-2", OperationQualityTest, OutcomeSuccess, t0.Add(2*time.Hour)),
	}

	j := MergeJourney("ASH1", ledgerEntries, records)

	require.Len(t, j.Entries, 4)
	assert.False(t, j.Degraded)
	assert.Equal(t, SourceLedger, j.Source)

	assert.Equal(t, "tx-1", j.Entries[0].TxID)
	assert.Equal(t, "tx-1", j.Entries[0].AuditRecordID)
	assert.Equal(t, EntryConfirmed, j.Entries[0].Status)

	assert.Equal(t, "tx-9", j.Entries[1].TxID)
	assert.Equal(t, EntryFailedAttempt, j.Entries[1].Status)
	assert.Equal(t, SourceLocalAudit, j.Entries[1].Source)

	assert.Equal(t, "tx-2", j.Entries[2].TxID)
	assert.Equal(t, EntryConfirmed, j.Entries[2].Status)

	assert.Equal(t, "local-1", j.Entries[3].AuditRecordID)
	assert.Equal(t, EntryFailedAttempt, j.Entries[3].Status)
	assert.Equal(t, "peer unreachable", j.Entries[3].Error)
}

func TestMergeJourney_DoesNotMutateInput(t *testing.T) {
	ledgerEntries := []JourneyEntry{{TxID: "tx-1", Timestamp: t0, Source: SourceLedger, Status: EntryConfirmed}}
	MergeJourney("ASH1", ledgerEntries, []OperationRecord{auditRecord("tx-1", "tx-1", OperationCollection, OutcomeSuccess, t0)})
	assert.Empty(t, ledgerEntries[0].AuditRecordID)
}

func TestDegradedJourney(t *testing.T) {
	records := []OperationRecord{
		auditRecord("tx-2", "tx-2", OperationQualityTest, OutcomeSuccess, t0.Add(time.Hour)),
		auditRecord("local-1", "", OperationCollection, OutcomeFailed, t0),
	}

	j := DegradedJourney("ASH1", records, errors.New("ledger down"))

	assert.True(t, j.Degraded)
	assert.Equal(t, SourceLocalAudit, j.Source)
	assert.Equal(t, "ledger down", j.LedgerError)
	require.Len(t, j.Entries, 2)
	assert.Equal(t, EntryFailedAttempt, j.Entries[0].Status)
	assert.Equal(t, EntryUnconfirmed, j.Entries[1].Status)
	for _, e := range j.Entries {
		assert.False(t, e.Confirmed())
		assert.Equal(t, SourceLocalAudit, e.Source)
	}
}

func TestSortEntries_Deterministic(t *testing.T) {
	a := []JourneyEntry{
		{TxID: "b", Timestamp: t0},
		{TxID: "a", Timestamp: t0},
		{TxID: "", Timestamp: t0, AuditRecordID: "z"},
		{TxID: "", Timestamp: t0, AuditRecordID: "y"},
		{TxID: "c", Timestamp: t0.Add(-time.Minute)},
	}
	b := []JourneyEntry{a[3], a[1], a[4], a[0], a[2]}

	SortEntries(a)
	SortEntries(b)
	assert.Equal(t, a, b)
	assert.Equal(t, "c", a[0].TxID)
	assert.Equal(t, "y", a[1].AuditRecordID)
}

func TestJourney_AllIsRestartable(t *testing.T) {
	j := &Journey{Entries: []JourneyEntry{{TxID: "1"}, {TxID: "2"}, {TxID: "3"}}}
	seq := j.All()

	var first, second []string
	for e := range seq {
		first = append(first, e.TxID)
	}
	for e := range seq {
		second = append(second, e.TxID)
		if len(second) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"1", "2", "3"}, first)
	assert.Equal(t, []string{"1", "2"}, second)
	assert.Equal(t, 3, j.Len())
}
