// Package ledger connects the traceability core to the Hyperledger Fabric network.
package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	domain "github.com/herbtrace/backend/internal/domain/ledger"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/infrastructure/config"
	"github.com/herbtrace/backend/internal/infrastructure/logger"
	"github.com/herbtrace/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// State describes the gateway session for health reporting
type State string

const (
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateDisabled     State = "disabled"
	StateClosed       State = "closed"
)

var (
	errGatewayClosed   = errors.New("ledger gateway is closed")
	errLedgerDisabled  = errors.New("ledger integration is disabled")
	defaultConnectWait = 10 * time.Second
)

// Settings bounds every ledger round trip
type Settings struct {
	ConnectTimeout  time.Duration
	SubmitTimeout   time.Duration
	EvaluateTimeout time.Duration
	EvaluateRetries int
}

// SettingsFromConfig derives gateway settings from the ledger configuration.
// SubmitTimeout bounds endorse, submit and commit status together; the
// per-phase gateway timeouts only apply inside it.
func SettingsFromConfig(cfg config.LedgerConfig) Settings {
	return Settings{
		ConnectTimeout:  cfg.EndorseTimeout,
		SubmitTimeout:   cfg.SubmitTimeout,
		EvaluateTimeout: cfg.EvaluateTimeout,
		EvaluateRetries: cfg.EvaluateRetries,
	}
}

// Option configures a Gateway
type Option func(*Gateway)

// WithMetrics records submissions and evaluations
func WithMetrics(m *telemetry.LedgerMetrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithBackOff replaces the exponential backoff used between evaluate attempts
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(g *Gateway) {
		g.newBackOff = newBackOff
	}
}

// Gateway is the shared ledger session. It connects lazily on first use,
// and concurrent first callers wait on the same attempt until their own
// context ends. A failed attempt is not cached. The session mutex is never
// held across a connect, so State stays responsive.
type Gateway struct {
	connector  Connector
	settings   Settings
	log        *zap.Logger
	metrics    *telemetry.LedgerMetrics
	newBackOff func() backoff.BackOff
	disabled   bool

	dials   singleflight.Group
	mu      sync.RWMutex
	session Session
	closed  bool
}

// NewGateway creates a gateway over connector
func NewGateway(connector Connector, settings Settings, log *zap.Logger, opts ...Option) *Gateway {
	if settings.ConnectTimeout <= 0 {
		settings.ConnectTimeout = defaultConnectWait
	}
	g := &Gateway{
		connector: connector,
		settings:  settings,
		log:       log.Named("ledger"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewDisabledGateway returns a gateway whose every call reports the ledger unavailable
func NewDisabledGateway(log *zap.Logger) *Gateway {
	g := NewGateway(nil, Settings{}, log)
	g.disabled = true
	return g
}

// Connect opens the session if it is not open yet
func (g *Gateway) Connect(ctx context.Context) error {
	_, err := g.acquire(ctx)
	return err
}

func (g *Gateway) acquire(ctx context.Context) (Session, error) {
	if g.disabled {
		return nil, shared.NewLedgerUnavailableError("ledger unavailable", errLedgerDisabled)
	}

	if session, err := g.current(); session != nil || err != nil {
		return session, err
	}

	// the attempt outlives any single caller; it is bounded by ConnectTimeout
	dialCtx := context.WithoutCancel(ctx)
	ch := g.dials.DoChan("connect", func() (any, error) {
		return g.dial(dialCtx)
	})
	select {
	case <-ctx.Done():
		return nil, shared.NewLedgerUnavailableError("ledger connection wait cancelled", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Session), nil
	}
}

// current returns the open session, nil while none is open, or an error once closed
func (g *Gateway) current() (Session, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return nil, shared.NewLedgerUnavailableError("ledger unavailable", errGatewayClosed)
	}
	return g.session, nil
}

func (g *Gateway) dial(ctx context.Context) (Session, error) {
	if session, err := g.current(); session != nil || err != nil {
		return session, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, g.settings.ConnectTimeout)
	defer cancel()

	session, err := g.connector.Connect(connectCtx)
	if err != nil {
		g.log.Warn("Ledger connection failed", zap.Error(err))
		return nil, shared.NewLedgerUnavailableError("ledger connection failed", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		_ = session.Close()
		return nil, shared.NewLedgerUnavailableError("ledger unavailable", errGatewayClosed)
	}
	g.session = session
	g.log.Info("Ledger session established")
	return session, nil
}

// Submit sends a state-changing transaction. It is never retried here.
func (g *Gateway) Submit(ctx context.Context, function string, args ...string) (domain.SubmitResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.settings.SubmitTimeout)
	defer cancel()

	ctx, span := telemetry.StartClientSpan(ctx, "ledger.submit",
		telemetry.SpanAttrFunction.String(function))
	defer span.End()

	start := time.Now()
	var result domain.SubmitResult
	var err error
	telemetry.WithLedgerProfile(ctx, function, func(ctx context.Context) {
		result, err = g.submit(ctx, function, args)
	})
	outcome := telemetry.OutcomeSuccess
	if err != nil {
		outcome = outcomeOf(err)
		telemetry.RecordError(span, err)
		logger.WithLogger(ctx, g.log).Warn("Ledger submit failed",
			zap.String("function", function),
			zap.String("tx_id", result.TxID),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}
	telemetry.RecordTxID(span, result.TxID)
	g.metrics.RecordSubmission(ctx, function, outcome, time.Since(start))
	return result, err
}

func (g *Gateway) submit(ctx context.Context, function string, args []string) (domain.SubmitResult, error) {
	session, err := g.acquire(ctx)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	result, err := session.Submit(ctx, function, args...)
	if err != nil {
		return result, classify(err)
	}
	return result, nil
}

// Evaluate runs a read-only query, retrying while the ledger is unavailable
func (g *Gateway) Evaluate(ctx context.Context, function string, args ...string) ([]byte, error) {
	ctx, span := telemetry.StartClientSpan(ctx, "ledger.evaluate",
		telemetry.SpanAttrFunction.String(function))
	defer span.End()

	var payload []byte
	attempt := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, g.settings.EvaluateTimeout)
		defer cancel()

		session, err := g.acquire(attemptCtx)
		if err != nil {
			if g.disabled {
				return backoff.Permanent(err)
			}
			return err
		}
		payload, err = session.Evaluate(attemptCtx, function, args...)
		if err == nil {
			return nil
		}
		classified := classify(err)
		if classified.Code == shared.CodeLedgerRejected {
			return backoff.Permanent(classified)
		}
		return classified
	}

	retries := max(g.settings.EvaluateRetries, 0)
	policy := backoff.WithContext(backoff.WithMaxRetries(g.newBackOff(), uint64(retries)), ctx)
	err := backoff.Retry(attempt, policy)
	if err != nil {
		classified := classify(err)
		telemetry.RecordError(span, classified)
		g.metrics.RecordEvaluation(ctx, function, outcomeOf(classified))
		return nil, classified
	}
	g.metrics.RecordEvaluation(ctx, function, telemetry.OutcomeSuccess)
	return payload, nil
}

// Disconnect closes the session. Calling it again is a no-op.
func (g *Gateway) Disconnect() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	if g.session == nil {
		return nil
	}
	err := g.session.Close()
	g.session = nil
	g.log.Info("Ledger session closed")
	return err
}

// State reports the session state without connecting
func (g *Gateway) State() State {
	if g.disabled {
		return StateDisabled
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	switch {
	case g.closed:
		return StateClosed
	case g.session != nil:
		return StateConnected
	}
	return StateDisconnected
}

func outcomeOf(err error) string {
	if errors.Is(err, shared.ErrLedgerRejected) {
		return telemetry.OutcomeRejected
	}
	return telemetry.OutcomeUnavailable
}

var _ domain.Gateway = (*Gateway)(nil)
