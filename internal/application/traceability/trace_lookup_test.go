package traceability

import (
	"context"
	"testing"

	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceLookup_UnknownCode(t *testing.T) {
	h := newHarness(t)

	_, err := h.lookup.Lookup(context.Background(), "0123456789ABCDEF0123456789ABCDEF")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.lookup.Lookup(context.Background(), "   ")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestTraceLookup_DegradedShowsFailures(t *testing.T) {
	h := newHarness(t)
	h.ledger.setDown(true)

	res, err := h.recorder.RecordCollection(context.Background(), collector, ashwagandha())
	require.NoError(t, err)

	trace, err := h.lookup.Lookup(context.Background(), res.TraceCode)
	require.NoError(t, err)
	assert.True(t, trace.Degraded)
	require.Len(t, trace.Entries, 1)
	assert.False(t, trace.Entries[0].Confirmed)
	assert.True(t, trace.Entries[0].Failed)
	assert.Equal(t, "COLLECTION", trace.Entries[0].Kind)
}

func TestTraceLookup_Deactivate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.recorder.RecordCollection(ctx, collector, ashwagandha())
	require.NoError(t, err)

	_, err = h.lookup.Deactivate(ctx, collector, res.TraceCode)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	binding, err := h.lookup.Deactivate(ctx, admin, res.TraceCode)
	require.NoError(t, err)
	assert.False(t, binding.Active)
	require.NotNil(t, binding.DeactivatedAt)
	firstDeactivation := *binding.DeactivatedAt

	again, err := h.lookup.Deactivate(ctx, admin, res.TraceCode)
	require.NoError(t, err)
	assert.Equal(t, firstDeactivation, *again.DeactivatedAt)

	_, err = h.lookup.Lookup(ctx, res.TraceCode)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.lookup.Deactivate(ctx, admin, "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	view, err := h.items.Get(ctx, res.Item.ID)
	require.NoError(t, err)
	require.Len(t, view.TraceCodes, 1)
	assert.False(t, view.TraceCodes[0].Active)
}
