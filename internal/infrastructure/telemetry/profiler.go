package telemetry

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfilingLabelLedgerFunction tags CPU samples taken inside a ledger call
const ProfilingLabelLedgerFunction = "ledger_function"

// runtime sampling rates applied when mutex or block profiles are requested
const (
	mutexProfileFraction = 5
	blockProfileRate     = 5
)

// DefaultProfileTypes are collected when no types are configured
var DefaultProfileTypes = []string{"cpu", "alloc_space", "inuse_space", "goroutines"}

var profileTypesByName = map[string][]pyroscope.ProfileType{
	"cpu":         {pyroscope.ProfileCPU},
	"alloc_space": {pyroscope.ProfileAllocObjects, pyroscope.ProfileAllocSpace},
	"inuse_space": {pyroscope.ProfileInuseObjects, pyroscope.ProfileInuseSpace},
	"goroutines":  {pyroscope.ProfileGoroutines},
	"mutex":       {pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration},
	"block":       {pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration},
}

// ProfilerConfig holds Pyroscope continuous profiling configuration.
type ProfilerConfig struct {
	Enabled           bool
	ServerAddress     string
	ApplicationName   string
	BasicAuthUser     string
	BasicAuthPassword string
	ProfileTypes      []string // names from DefaultProfileTypes plus "mutex" and "block"
}

// Profiler pushes continuous profiles to Pyroscope. A disabled profiler is a no-op.
type Profiler struct {
	profiler *pyroscope.Profiler
	logger   *zap.Logger
	config   ProfilerConfig
	mu       sync.Mutex
	stopped  bool
}

// ParseProfileTypes resolves profile type names. Unknown names are an error.
func ParseProfileTypes(names []string) ([]pyroscope.ProfileType, error) {
	if len(names) == 0 {
		names = DefaultProfileTypes
	}
	var out []pyroscope.ProfileType
	seen := make(map[pyroscope.ProfileType]bool)
	for _, name := range names {
		types, ok := profileTypesByName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown profile type %q", name)
		}
		for _, t := range types {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// NewProfiler starts the Pyroscope profiler when cfg.Enabled is set.
func NewProfiler(cfg ProfilerConfig, logger *zap.Logger) (*Profiler, error) {
	p := &Profiler{logger: logger, config: cfg}
	if !cfg.Enabled {
		logger.Info("Continuous profiling disabled")
		return p, nil
	}
	if cfg.ServerAddress == "" {
		return nil, fmt.Errorf("profiler server address is required when profiling is enabled")
	}
	if cfg.ApplicationName == "" {
		return nil, fmt.Errorf("profiler application name is required when profiling is enabled")
	}

	types, err := ParseProfileTypes(cfg.ProfileTypes)
	if err != nil {
		return nil, err
	}
	for _, t := range types {
		switch t {
		case pyroscope.ProfileMutexCount:
			runtime.SetMutexProfileFraction(mutexProfileFraction)
		case pyroscope.ProfileBlockCount:
			runtime.SetBlockProfileRate(blockProfileRate)
		}
	}

	tags := map[string]string{}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		tags["hostname"] = hostname
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   cfg.ApplicationName,
		ServerAddress:     cfg.ServerAddress,
		BasicAuthUser:     cfg.BasicAuthUser,
		BasicAuthPassword: cfg.BasicAuthPassword,
		Logger:            pyroscopeLogger{logger.Named("pyroscope").Sugar()},
		Tags:              tags,
		ProfileTypes:      types,
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope profiler: %w", err)
	}
	p.profiler = profiler

	logger.Info("Continuous profiling enabled",
		zap.String("server_address", cfg.ServerAddress),
		zap.String("application_name", cfg.ApplicationName),
		zap.Int("profile_types", len(types)),
	)
	return p, nil
}

// Stop flushes pending profiles. Calling it again is a no-op.
// The Pyroscope SDK takes no context here; it bounds the flush internally.
func (p *Profiler) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || p.profiler == nil {
		p.stopped = true
		return nil
	}
	p.stopped = true
	if err := p.profiler.Stop(); err != nil {
		p.logger.Error("Profiler stop failed", zap.Error(err))
		return fmt.Errorf("stop profiler: %w", err)
	}
	p.logger.Info("Continuous profiling stopped")
	return nil
}

func (p *Profiler) IsEnabled() bool {
	return p.profiler != nil
}

// WithLedgerProfile runs fn with the ledger function attached as a pprof label,
// so profiles can be sliced by chaincode function.
func WithLedgerProfile(ctx context.Context, function string, fn func(context.Context)) {
	if function == "" {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(ProfilingLabelLedgerFunction, function), fn)
}

// pyroscopeLogger routes SDK messages through zap
type pyroscopeLogger struct {
	*zap.SugaredLogger
}
