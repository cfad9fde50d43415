package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/justapithecus/tether/log"
	"github.com/justapithecus/tether/metrics"
	"github.com/justapithecus/tether/types"
)

// Acquisition defaults. Overridable via ManagerConfig.
const (
	// DefaultPollInterval is the pause between runtime status queries.
	DefaultPollInterval = 3 * time.Second
	// DefaultAcquireTimeout bounds the whole acquisition, queue wait included.
	DefaultAcquireTimeout = 10 * time.Minute
)

// AssignOptions configures one acquisition.
type AssignOptions struct {
	// ForceNew skips reuse and always requests a fresh runtime.
	ForceNew bool
	// Variant is the requested hardware class.
	Variant types.Variant
	// Quiet suppresses human-readable progress on the progress writer.
	Quiet bool
}

// ManagerConfig holds Manager construction inputs.
type ManagerConfig struct {
	// Client is the provider API surface (required).
	Client StatusClient
	// Logger is the session logger (required).
	Logger *log.Logger
	// Collector records acquisition counters. Nil disables metrics.
	Collector *metrics.Collector
	// Progress receives human-readable acquisition progress.
	// Defaults to os.Stderr.
	Progress io.Writer
	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration
	// AcquireTimeout overrides DefaultAcquireTimeout when positive.
	AcquireTimeout time.Duration
	// HintPath overrides the preferred-runtime hint file location.
	// Empty resolves to the default runtime dir; "-" disables the hint.
	HintPath string
}

// Manager acquires usable runtimes: reuse-or-create decision, readiness
// polling, and resolution to a connectable proxy endpoint. It writes no
// local state beyond the optional preferred-runtime hint file.
type Manager struct {
	client    StatusClient
	logger    *log.Logger
	collector *metrics.Collector
	progress  io.Writer
	interval  time.Duration
	timeout   time.Duration
	hintPath  string
}

// NewManager creates a runtime Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Client == nil {
		return nil, errors.New("runtime manager requires a provider client")
	}
	if cfg.Logger == nil {
		return nil, errors.New("runtime manager requires a logger")
	}

	m := &Manager{
		client:    cfg.Client,
		logger:    cfg.Logger,
		collector: cfg.Collector,
		progress:  cfg.Progress,
		interval:  cfg.PollInterval,
		timeout:   cfg.AcquireTimeout,
		hintPath:  cfg.HintPath,
	}
	if m.progress == nil {
		m.progress = os.Stderr
	}
	if m.interval <= 0 {
		m.interval = DefaultPollInterval
	}
	if m.timeout <= 0 {
		m.timeout = DefaultAcquireTimeout
	}
	if m.hintPath == "" {
		dir, err := hintDir()
		if err != nil {
			// Hint is an optimization; fall back to no hint.
			m.logger.Warn("runtime hint disabled", map[string]any{"error": err.Error()})
			m.hintPath = "-"
		} else {
			m.hintPath = filepath.Join(dir, "runtime.json")
		}
	}
	return m, nil
}

// Assign returns a connectable runtime for the requested variant.
//
// Flow:
//  1. Unless ForceNew, look for an existing ready runtime of the same
//     variant (hinted runtime first) and reuse it with zero polls.
//  2. Otherwise request creation and poll status at a bounded interval
//     until ready-with-proxy, a terminal failure phase, or the deadline.
func (m *Manager) Assign(ctx context.Context, opts AssignOptions) (*types.AssignedRuntime, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if !opts.ForceNew {
		assigned, err := m.tryReuse(ctx, opts)
		if err != nil {
			return nil, err
		}
		if assigned != nil {
			return assigned, nil
		}
	}

	info, err := m.client.CreateRuntime(ctx, opts.Variant)
	if err != nil {
		return nil, m.classifyAcquisition(ctx, err, "runtime creation failed")
	}
	m.collector.IncRuntimesCreated()
	m.logger.Info("runtime creation requested", map[string]any{
		"runtime_id": info.ID,
		"variant":    string(opts.Variant),
	})

	assigned, err := m.pollUntilReady(ctx, info, opts)
	if err != nil {
		return nil, err
	}
	m.saveHint(assigned)
	return assigned, nil
}

// tryReuse returns an existing connectable runtime of the requested
// variant, or nil when none qualifies. No status polling happens here.
func (m *Manager) tryReuse(ctx context.Context, opts AssignOptions) (*types.AssignedRuntime, error) {
	runtimes, err := m.client.ListRuntimes(ctx)
	if err != nil {
		return nil, m.classifyAcquisition(ctx, err, "runtime listing failed")
	}

	candidates := make([]types.RuntimeInfo, 0, len(runtimes))
	for _, rt := range runtimes {
		if rt.Variant == opts.Variant && rt.Connectable() {
			candidates = append(candidates, rt)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	pick := candidates[0]
	if hinted := m.loadHint(opts.Variant); hinted != "" {
		for _, rt := range candidates {
			if rt.ID == hinted {
				pick = rt
				break
			}
		}
	}

	assigned, err := pick.Assigned()
	if err != nil {
		return nil, &AcquisitionError{
			Kind: AcquisitionUnavailable,
			Msg:  "ready runtime rejected",
			Err:  err,
		}
	}

	m.collector.IncRuntimesReused()
	m.report(opts.Quiet, "Reusing runtime %s (%s)", assigned.ID, assigned.Variant)
	m.logger.Info("runtime reused", map[string]any{"runtime_id": assigned.ID})
	m.saveHint(assigned)
	return assigned, nil
}

// pollUntilReady queries runtime status at the configured interval until
// it becomes connectable, reports a terminal failure, or the deadline
// passes. Progress is surfaced on phase changes only.
func (m *Manager) pollUntilReady(ctx context.Context, info *types.RuntimeInfo, opts AssignOptions) (*types.AssignedRuntime, error) {
	lastPhase := types.RuntimePhase("")

	current := info
	for {
		if current.Phase != lastPhase {
			m.reportPhase(opts.Quiet, current.Phase)
			lastPhase = current.Phase
		}

		if current.Connectable() {
			assigned, err := current.Assigned()
			if err != nil {
				return nil, &AcquisitionError{
					Kind: AcquisitionUnavailable,
					Msg:  "runtime became ready without usable proxy",
					Err:  err,
				}
			}
			m.report(opts.Quiet, "Runtime %s ready", assigned.ID)
			m.logger.Info("runtime ready", map[string]any{"runtime_id": assigned.ID})
			return assigned, nil
		}

		if current.Phase.IsTerminalFailure() {
			kind := AcquisitionUnavailable
			if current.Phase == types.PhaseQuotaExceeded {
				kind = AcquisitionQuota
			}
			return nil, &AcquisitionError{
				Kind: kind,
				Msg:  fmt.Sprintf("runtime %s entered phase %s", current.ID, current.Phase),
			}
		}

		select {
		case <-ctx.Done():
			return nil, m.deadlineError(ctx, current)
		case <-time.After(m.interval):
		}

		next, err := m.client.GetRuntime(ctx, current.ID)
		if err != nil {
			return nil, m.classifyAcquisition(ctx, err, "runtime status query failed")
		}
		m.collector.IncStatusPolls()
		current = next
	}
}

// classifyAcquisition passes through typed acquisition errors and wraps
// everything else, folding context expiry into the timeout kind.
func (m *Manager) classifyAcquisition(ctx context.Context, err error, msg string) error {
	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		return err
	}
	if ctx.Err() != nil {
		return &AcquisitionError{
			Kind: AcquisitionTimeout,
			Msg:  "runtime acquisition deadline exceeded",
			Err:  err,
		}
	}
	return &AcquisitionError{
		Kind: AcquisitionUnavailable,
		Msg:  msg,
		Err:  err,
	}
}

func (m *Manager) deadlineError(ctx context.Context, current *types.RuntimeInfo) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return &AcquisitionError{
			Kind: AcquisitionUnavailable,
			Msg:  "runtime acquisition canceled",
			Err:  ctx.Err(),
		}
	}
	return &AcquisitionError{
		Kind: AcquisitionTimeout,
		Msg:  fmt.Sprintf("runtime %s not ready within %s (last phase %s)", current.ID, m.timeout, current.Phase),
		Err:  ctx.Err(),
	}
}

// reportPhase emits a human-readable line for a new provisioning phase.
func (m *Manager) reportPhase(quiet bool, phase types.RuntimePhase) {
	switch phase {
	case types.PhaseProvisioning:
		m.report(quiet, "Provisioning runtime...")
	case types.PhaseQueued:
		m.report(quiet, "Waiting in queue...")
	case types.PhaseReady:
		// Ready is reported with the runtime ID by the caller.
	default:
		m.report(quiet, "Runtime phase: %s", phase)
	}
}

func (m *Manager) report(quiet bool, format string, args ...any) {
	if quiet {
		return
	}
	fmt.Fprintf(m.progress, format+"\n", args...)
}

// loadHint returns the hinted runtime ID when it matches the requested
// variant. Hint read failures are silent: the file is best-effort.
func (m *Manager) loadHint(variant types.Variant) string {
	if m.hintPath == "-" {
		return ""
	}
	hint, err := readHint(m.hintPath)
	if err != nil {
		return ""
	}
	if hint.Variant != variant {
		return ""
	}
	return hint.RuntimeID
}

func (m *Manager) saveHint(assigned *types.AssignedRuntime) {
	if m.hintPath == "-" {
		return
	}
	if err := recordHint(m.hintPath, assigned); err != nil {
		m.logger.Debug("hint write failed", map[string]any{"error": err.Error()})
	}
}
