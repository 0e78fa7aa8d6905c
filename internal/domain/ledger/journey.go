package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
	"time"
)

// EntrySource says where a journey entry came from
type EntrySource string

const (
	SourceLedger     EntrySource = "LEDGER"
	SourceLocalAudit EntrySource = "LOCAL_AUDIT"
)

// EntryStatus is the verification state of a journey entry
type EntryStatus string

const (
	// EntryConfirmed is anchored on the ledger
	EntryConfirmed EntryStatus = "CONFIRMED"
	// EntryUnconfirmed is a locally recorded success not verified against the ledger
	EntryUnconfirmed EntryStatus = "UNCONFIRMED"
	// EntryFailedAttempt is a local submission that never reached the ledger
	EntryFailedAttempt EntryStatus = "FAILED_ATTEMPT"
)

// JourneyEntry is one custody event in an item's history
type JourneyEntry struct {
	TxID          string         `json:"txId,omitempty"`
	Kind          string         `json:"kind"`
	Timestamp     time.Time      `json:"timestamp"`
	Source        EntrySource    `json:"source"`
	Status        EntryStatus    `json:"status"`
	Details       map[string]any `json:"details,omitempty"`
	AuditRecordID string         `json:"auditRecordId,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// Confirmed reports whether the entry is ledger-verified
func (e JourneyEntry) Confirmed() bool {
	return e.Status == EntryConfirmed
}

// Journey is the ordered history of one item
type Journey struct {
	ItemID      string         `json:"itemId"`
	Source      EntrySource    `json:"source"`
	Degraded    bool           `json:"degraded"`
	LedgerError string         `json:"ledgerError,omitempty"`
	Entries     []JourneyEntry `json:"entries"`
}

// All yields the entries in order. The sequence reads a snapshot taken at call time,
// so it can be ranged over any number of times without touching either store.
func (j *Journey) All() iter.Seq[JourneyEntry] {
	snapshot := slices.Clone(j.Entries)
	return func(yield func(JourneyEntry) bool) {
		for _, e := range snapshot {
			if !yield(e) {
				return
			}
		}
	}
}

// Len returns the number of entries
func (j *Journey) Len() int {
	return len(j.Entries)
}

var (
	txIDKeys      = []string{"txId", "txID", "transactionId", "tx_id"}
	timestampKeys = []string{"timestamp", "time", "date"}
	kindKeys      = []string{"type", "eventType", "operation", "event"}
)

// ParseLedgerEvents decodes the GetJourney payload: a JSON array of ledger-native event objects.
// Known keys become typed fields; everything else lands in Details.
func ParseLedgerEvents(payload []byte) ([]JourneyEntry, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return []JourneyEntry{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode ledger journey: %w", err)
	}

	entries := make([]JourneyEntry, 0, len(raw))
	for _, obj := range raw {
		entry := JourneyEntry{
			Source:  SourceLedger,
			Status:  EntryConfirmed,
			Details: map[string]any{},
		}
		for k, v := range obj {
			switch {
			case slices.Contains(txIDKeys, k):
				entry.TxID = fmt.Sprint(v)
			case slices.Contains(timestampKeys, k) && entry.Timestamp.IsZero():
				entry.Timestamp = parseTimestamp(v)
			case slices.Contains(kindKeys, k) && entry.Kind == "":
				entry.Kind = normalizeKind(fmt.Sprint(v))
			default:
				entry.Details[k] = v
			}
		}
		if entry.Kind == "" {
			entry.Kind = "UNKNOWN"
		}
		if len(entry.Details) == 0 {
			entry.Details = nil
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC()
			}
		}
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return unixAuto(n)
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return unixAuto(n)
		}
		if f, err := t.Float64(); err == nil {
			return time.UnixMilli(int64(f * 1000)).UTC()
		}
	case map[string]any:
		// protobuf Timestamp rendered as {"seconds": .., "nanos": ..}
		secs, _ := t["seconds"].(json.Number)
		nanos, _ := t["nanos"].(json.Number)
		s, err := secs.Int64()
		if err != nil {
			return time.Time{}
		}
		ns, _ := nanos.Int64()
		return time.Unix(s, ns).UTC()
	}
	return time.Time{}
}

// unixAuto treats values beyond year 33658 in seconds as milliseconds
func unixAuto(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

func normalizeKind(v string) string {
	if kind, ok := KindForFunction(v); ok {
		return string(kind)
	}
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(v), "-", "_"))
}

// AuditEntry renders an audit record as an unconfirmed journey entry
func AuditEntry(r OperationRecord) JourneyEntry {
	status := EntryUnconfirmed
	if r.Failed() {
		status = EntryFailedAttempt
	}
	return JourneyEntry{
		TxID:          r.TxID,
		Kind:          string(r.Operation),
		Timestamp:     r.CreatedAt.UTC(),
		Source:        SourceLocalAudit,
		Status:        status,
		AuditRecordID: r.ID,
		Error:         r.Error,
		Details: map[string]any{
			"function": r.Payload.Function,
		},
	}
}

// DegradedJourney builds a journey from audit records only
func DegradedJourney(itemID string, records []OperationRecord, ledgerErr error) *Journey {
	entries := make([]JourneyEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, AuditEntry(r))
	}
	SortEntries(entries)
	j := &Journey{
		ItemID:   itemID,
		Source:   SourceLocalAudit,
		Degraded: true,
		Entries:  entries,
	}
	if ledgerErr != nil {
		j.LedgerError = ledgerErr.Error()
	}
	return j
}

// MergeJourney combines ledger entries with audit records keyed by transaction id.
// Ledger entries are authoritative. FAILED records whose transaction id the ledger does not
// know are kept as failed attempts; successful records add nothing the ledger lacks.
func MergeJourney(itemID string, ledgerEntries []JourneyEntry, records []OperationRecord) *Journey {
	entries := slices.Clone(ledgerEntries)
	known := make(map[string]int, len(entries))
	for i, e := range entries {
		if e.TxID != "" {
			known[e.TxID] = i
		}
	}
	for _, r := range records {
		if idx, ok := known[r.TxID]; ok && r.TxID != "" {
			if entries[idx].AuditRecordID == "" {
				entries[idx].AuditRecordID = r.ID
			}
			continue
		}
		if r.Failed() {
			entries = append(entries, AuditEntry(r))
		}
	}
	SortEntries(entries)
	return &Journey{
		ItemID:  itemID,
		Source:  SourceLedger,
		Entries: entries,
	}
}

// LedgerJourney wraps ledger entries without audit detail
func LedgerJourney(itemID string, ledgerEntries []JourneyEntry) *Journey {
	entries := slices.Clone(ledgerEntries)
	SortEntries(entries)
	return &Journey{
		ItemID:  itemID,
		Source:  SourceLedger,
		Entries: entries,
	}
}

// SortEntries orders by timestamp, then transaction id, then source, then audit id
func SortEntries(entries []JourneyEntry) {
	slices.SortStableFunc(entries, func(a, b JourneyEntry) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		if c := strings.Compare(a.TxID, b.TxID); c != 0 {
			return c
		}
		if c := strings.Compare(string(a.Source), string(b.Source)); c != 0 {
			return c
		}
		return strings.Compare(a.AuditRecordID, b.AuditRecordID)
	})
}
