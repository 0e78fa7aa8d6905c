package traceability

import (
	"context"
	"testing"

	"github.com/herbtrace/backend/internal/domain/batch"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemService_UpdateMetadata(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.recorder.RecordCollection(ctx, collector, ashwagandha())
	require.NoError(t, err)
	itemID := res.Item.ID

	tests := []struct {
		name    string
		actor   shared.Actor
		itemID  string
		patch   map[string]any
		wantErr error
	}{
		{name: "collector edits own item", actor: collector, itemID: itemID, patch: map[string]any{"grade": "A"}},
		{name: "admin edits any item", actor: admin, itemID: itemID, patch: map[string]any{"location": map[string]any{"region": "Jaipur"}}},
		{name: "other collector forbidden", actor: shared.Actor{ID: "collector-2", Role: shared.RoleCollector}, itemID: itemID, patch: map[string]any{"grade": "C"}, wantErr: shared.ErrForbidden},
		{name: "lab forbidden", actor: lab, itemID: itemID, patch: map[string]any{"grade": "C"}, wantErr: shared.ErrForbidden},
		{name: "empty patch", actor: collector, itemID: itemID, patch: map[string]any{}, wantErr: shared.ErrInvalidInput},
		{name: "unknown item", actor: admin, itemID: "ASH404", patch: map[string]any{"grade": "A"}, wantErr: shared.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.items.UpdateMetadata(ctx, tt.actor, tt.itemID, tt.patch)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	view, err := h.items.Get(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, "A", view.Item.Metadata["grade"])
	location := view.Item.Metadata["location"].(map[string]any)
	assert.Equal(t, "Jaipur", location["region"])
	assert.Equal(t, 26.9124, location["latitude"])
	assert.Equal(t, 3, view.Item.Version)
	assert.Equal(t, 1, h.ledger.submitCount(), "metadata edits are not anchored")
}

func TestItemService_GetAndList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.items.Get(ctx, "ASH404")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	for range 3 {
		_, err := h.recorder.RecordCollection(ctx, collector, ashwagandha())
		require.NoError(t, err)
	}

	filter := shared.DefaultFilter()
	filter.Filters["status"] = string(batch.BatchStatusCollected)
	page, err := h.items.List(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 3)
}
