package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/testangel/testangel-sdk/domain/entities"
	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
	"github.com/testangel/testangel-sdk/domain/ports"
)

type dispatcherConfig struct {
	confirmer ports.Confirmer
	approvals ports.ApprovalStore
	policy    ports.TrustPolicy
	trust     *entities.TrustRules
	logger    *slog.Logger
	memoize   bool
}

func defaultDispatcherConfig() dispatcherConfig {
	return dispatcherConfig{
		logger:  slog.Default(),
		memoize: true,
	}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*dispatcherConfig)

// WithConfirmer sets who is asked before instructions that are not
// AUTOMATIC run. Without a confirmer such instructions are refused.
func WithConfirmer(c ports.Confirmer) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		cfg.confirmer = c
	}
}

// WithApprovalStore persists "always" answers across runs.
func WithApprovalStore(s ports.ApprovalStore) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		cfg.approvals = s
	}
}

// WithTrustPolicy checks live executions against rules before the
// instruction flags are consulted.
func WithTrustPolicy(p ports.TrustPolicy, rules *entities.TrustRules) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		cfg.policy = p
		cfg.trust = rules
	}
}

// WithMemoization enables or disables caching of PURE instruction outputs.
// Default is enabled.
func WithMemoization(enabled bool) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		cfg.memoize = enabled
	}
}

// WithDispatcherLogger sets the logger for dispatch diagnostics.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// Dispatcher applies the instruction flags to executions on an Instance.
// PURE outputs are memoized. Instructions that are not AUTOMATIC need
// operator confirmation unless the trust rules allow them, and failures of
// INFALLIBLE instructions are logged as contract violations. Instructions
// the trust rules deny only run as dry runs.
type Dispatcher struct {
	instance     *Instance
	approved     *entities.ApprovalSet
	memo         map[string]*Output
	config       dispatcherConfig
	loadApproved sync.Once
	mu           sync.Mutex
	hits         int
}

// NewDispatcher creates a Dispatcher for inst.
func NewDispatcher(inst *Instance, opts ...DispatcherOption) *Dispatcher {
	cfg := defaultDispatcherConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Dispatcher{
		instance: inst,
		config:   cfg,
		memo:     make(map[string]*Output),
	}
}

// Instance returns the instance behind the dispatcher.
func (d *Dispatcher) Instance() *Instance {
	return d.instance
}

// MemoHits returns how many executions were served from the memo cache.
func (d *Dispatcher) MemoHits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hits
}

// Execute runs an instruction subject to its flags.
func (d *Dispatcher) Execute(ctx context.Context, id string, params []entities.NamedValue, dryRun bool) (*Output, error) {
	meta, ok := d.instance.Instruction(id)
	if !ok {
		// Let the engine produce the INVALID_INSTRUCTION result.
		return d.instance.Execute(ctx, id, params, dryRun)
	}

	trusted := false
	if !dryRun {
		switch d.decide(id) {
		case entities.TrustDeny:
			return nil, fmt.Errorf("%s.%s: %w", d.instance.Name(), id, domainerrors.ErrInstructionDenied)
		case entities.TrustAllow:
			trusted = true
		}
	}

	pure := d.config.memoize && meta.Flags.Has(entities.FlagPure)
	key := memoKey(id, params)
	if pure {
		d.mu.Lock()
		out, hit := d.memo[key]
		if hit {
			d.hits++
		}
		d.mu.Unlock()
		if hit {
			return out.Clone(), nil
		}
	}

	if !trusted && !meta.Flags.Has(entities.FlagAutomatic) && !dryRun {
		if err := d.confirm(meta, params); err != nil {
			return nil, err
		}
	}

	out, err := d.instance.Execute(ctx, id, params, dryRun)
	if err != nil {
		var ee *domainerrors.EngineError
		if meta.Flags.Has(entities.FlagInfallible) && errors.As(err, &ee) && !inputError(ee.Code) {
			d.config.logger.Error("infallible instruction failed",
				"engine", d.instance.Name(),
				"instruction", id,
				"code", ee.Code.String(),
				"reason", ee.Reason)
		}
		return nil, err
	}

	if pure {
		d.mu.Lock()
		d.memo[key] = out.Clone()
		d.mu.Unlock()
	}
	return out, nil
}

func (d *Dispatcher) decide(id string) entities.TrustDecision {
	if d.config.policy == nil {
		return entities.TrustAsk
	}
	return d.config.policy.Decide(d.instance.Name(), id, d.config.trust)
}

func (d *Dispatcher) confirm(meta entities.InstructionMetadata, params []entities.NamedValue) error {
	engine := d.instance.Name()
	approvals := d.approvals()
	if approvals.IsApproved(engine, meta.ID) {
		return nil
	}

	if d.config.confirmer == nil || !d.config.confirmer.IsInteractive() {
		return fmt.Errorf("%s.%s needs confirmation and no operator is available: %w",
			engine, meta.ID, domainerrors.ErrConfirmationDenied)
	}
	approved, always, err := d.config.confirmer.ConfirmInstruction(entities.ConfirmationRequest{
		Engine:      engine,
		Instruction: meta,
		Parameters:  params,
	})
	if err != nil {
		return fmt.Errorf("confirm %s.%s: %w", engine, meta.ID, err)
	}
	if !approved {
		return fmt.Errorf("%s.%s: %w", engine, meta.ID, domainerrors.ErrConfirmationDenied)
	}
	if always {
		d.mu.Lock()
		approvals.Approve(engine, meta.ID)
		d.mu.Unlock()
		if d.config.approvals != nil {
			if err := d.config.approvals.Save(approvals); err != nil {
				d.config.logger.Warn("saving approval failed", "path", d.config.approvals.ConfigPath(), "error", err)
			}
		}
	}
	return nil
}

// approvals loads the approval set once.
func (d *Dispatcher) approvals() *entities.ApprovalSet {
	d.loadApproved.Do(func() {
		d.approved = &entities.ApprovalSet{}
		if d.config.approvals == nil {
			return
		}
		set, err := d.config.approvals.Load()
		if err != nil {
			d.config.logger.Warn("loading approvals failed", "path", d.config.approvals.ConfigPath(), "error", err)
			return
		}
		d.approved = set
	})
	return d.approved
}

// ResetState resets the engine and forgets memoized outputs.
func (d *Dispatcher) ResetState(ctx context.Context) error {
	d.mu.Lock()
	clear(d.memo)
	d.mu.Unlock()
	return d.instance.ResetState(ctx)
}

// inputError reports whether code blames the caller's parameters rather
// than the engine.
func inputError(code entities.ResultCode) bool {
	switch code {
	case entities.CodeMissingParameter, entities.CodeInvalidParameter, entities.CodeInvalidParameterType:
		return true
	default:
		return false
	}
}

// memoKey identifies an execution by instruction and parameters. Parameter
// order does not matter.
func memoKey(id string, params []entities.NamedValue) string {
	parts := make([]string, len(params))
	for i, nv := range params {
		parts[i] = nv.Name + "=" + nv.Value.Canonical()
	}
	slices.Sort(parts)
	return id + "\x00" + strings.Join(parts, "\x00")
}
