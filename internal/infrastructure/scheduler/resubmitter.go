// Package scheduler runs background jobs outside the request path.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/herbtrace/backend/internal/application/traceability"
	"go.uber.org/zap"
)

// PendingResubmitter replays unresolved failed ledger writes
type PendingResubmitter interface {
	ResubmitPending(ctx context.Context) (traceability.ResubmitSummary, error)
}

// ResubmitterConfig holds configuration for the periodic resubmitter
type ResubmitterConfig struct {
	// Enabled determines if the resubmitter is active
	Enabled bool

	// Interval between passes while the ledger is healthy
	Interval time.Duration

	// MaxBackoff caps the delay after passes that found the ledger unavailable
	MaxBackoff time.Duration

	// RunTimeout is the maximum time for one pass
	RunTimeout time.Duration
}

// DefaultResubmitterConfig returns default configuration
func DefaultResubmitterConfig() ResubmitterConfig {
	return ResubmitterConfig{
		Enabled:    false,
		Interval:   time.Minute,
		MaxBackoff: 15 * time.Minute,
		RunTimeout: 5 * time.Minute,
	}
}

// Resubmitter periodically resubmits FAILED ledger writes. It backs off
// exponentially while every attempt in a pass finds the ledger unavailable.
type Resubmitter struct {
	service   PendingResubmitter
	logger    *zap.Logger
	config    ResubmitterConfig
	backoff   *backoff.ExponentialBackOff
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewResubmitter creates a new resubmitter
func NewResubmitter(service PendingResubmitter, logger *zap.Logger, config ResubmitterConfig) *Resubmitter {
	defaults := DefaultResubmitterConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.MaxBackoff < config.Interval {
		config.MaxBackoff = max(defaults.MaxBackoff, config.Interval)
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = defaults.RunTimeout
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.Interval
	b.MaxInterval = config.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	return &Resubmitter{
		service: service,
		logger:  logger.Named("resubmitter"),
		config:  config,
		backoff: b,
	}
}

// Start starts the resubmission loop
func (s *Resubmitter) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Ledger resubmitter is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Ledger resubmitter started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("max_backoff", s.config.MaxBackoff),
	)
	return nil
}

// Stop gracefully stops the resubmitter
func (s *Resubmitter) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Ledger resubmitter stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Ledger resubmitter stop timed out")
		return ctx.Err()
	}
}

func (s *Resubmitter) run(ctx context.Context) {
	defer s.wg.Done()

	delay := s.config.Interval
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Resubmission loop stopping")
			return
		case <-time.After(delay):
			summary, err := s.execute(ctx)
			delay = s.nextDelay(summary, err)
		}
	}
}

// execute runs one pass
func (s *Resubmitter) execute(ctx context.Context) (traceability.ResubmitSummary, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	startTime := time.Now()
	summary, err := s.service.ResubmitPending(runCtx)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Ledger resubmission pass failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return summary, err
	}

	if summary.Attempted > 0 || summary.Skipped > 0 {
		s.logger.Info("Ledger resubmission pass completed",
			zap.Duration("duration", duration),
			zap.Int("attempted", summary.Attempted),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed),
			zap.Int("unavailable", summary.Unavailable),
			zap.Int("skipped", summary.Skipped),
		)
	}
	return summary, nil
}

// nextDelay backs off while the ledger looks down and resets once it answers
func (s *Resubmitter) nextDelay(summary traceability.ResubmitSummary, err error) time.Duration {
	ledgerDown := summary.Attempted > 0 && summary.Unavailable == summary.Attempted
	if err == nil && !ledgerDown {
		s.backoff.Reset()
		return s.config.Interval
	}
	d := s.backoff.NextBackOff()
	if d == backoff.Stop {
		return s.config.MaxBackoff
	}
	return d
}

// TriggerNow runs one pass immediately in the background
func (s *Resubmitter) TriggerNow(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Triggering immediate ledger resubmission pass")

	go func() {
		defer s.wg.Done()
		_, _ = s.execute(ctx)
	}()
	return nil
}

// IsRunning returns whether the resubmitter is running
func (s *Resubmitter) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
