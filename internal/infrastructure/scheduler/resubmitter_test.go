package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/herbtrace/backend/internal/application/traceability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePending struct {
	mu      sync.Mutex
	calls   int
	summary traceability.ResubmitSummary
	err     error
}

func (f *fakePending) ResubmitPending(ctx context.Context) (traceability.ResubmitSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.summary, f.err
}

func (f *fakePending) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestResubmitter_Disabled(t *testing.T) {
	r := NewResubmitter(&fakePending{}, zap.NewNop(), ResubmitterConfig{Enabled: false})

	require.NoError(t, r.Start(context.Background()))
	assert.False(t, r.IsRunning())
	assert.ErrorIs(t, r.TriggerNow(context.Background()), ErrSchedulerNotRunning)
	assert.NoError(t, r.Stop(context.Background()))
}

func TestResubmitter_RunsPeriodically(t *testing.T) {
	svc := &fakePending{summary: traceability.ResubmitSummary{Attempted: 1, Succeeded: 1}}
	r := NewResubmitter(svc, zap.NewNop(), ResubmitterConfig{
		Enabled:  true,
		Interval: 5 * time.Millisecond,
	})

	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Start(context.Background()))
	assert.True(t, r.IsRunning())

	assert.Eventually(t, func() bool { return svc.count() >= 3 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
	assert.False(t, r.IsRunning())

	stoppedAt := svc.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stoppedAt, svc.count())
}

func TestResubmitter_TriggerNow(t *testing.T) {
	svc := &fakePending{}
	r := NewResubmitter(svc, zap.NewNop(), ResubmitterConfig{Enabled: true, Interval: time.Hour})
	require.NoError(t, r.Start(context.Background()))
	defer r.Stop(context.Background())

	require.NoError(t, r.TriggerNow(context.Background()))
	assert.Eventually(t, func() bool { return svc.count() == 1 }, time.Second, time.Millisecond)
}

func TestResubmitter_NextDelay(t *testing.T) {
	r := NewResubmitter(&fakePending{}, zap.NewNop(), ResubmitterConfig{
		Enabled:    true,
		Interval:   time.Second,
		MaxBackoff: 4 * time.Second,
	})
	r.backoff.RandomizationFactor = 0
	r.backoff.Multiplier = 2
	r.backoff.Reset()

	down := traceability.ResubmitSummary{Attempted: 2, Failed: 2, Unavailable: 2}
	assert.Equal(t, time.Second, r.nextDelay(down, nil))
	assert.Equal(t, 2*time.Second, r.nextDelay(down, nil))
	assert.Equal(t, 4*time.Second, r.nextDelay(traceability.ResubmitSummary{}, errors.New("db down")))
	assert.Equal(t, 4*time.Second, r.nextDelay(down, nil))

	healthy := traceability.ResubmitSummary{Attempted: 2, Succeeded: 1, Failed: 1, Unavailable: 1}
	assert.Equal(t, time.Second, r.nextDelay(healthy, nil))
	assert.Equal(t, time.Second, r.nextDelay(traceability.ResubmitSummary{}, nil))
	assert.Equal(t, time.Second, r.nextDelay(down, nil))
}
