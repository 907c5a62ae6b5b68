package host_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testangel/testangel-sdk/domain/entities"
	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
	"github.com/testangel/testangel-sdk/domain/policy"
	"github.com/testangel/testangel-sdk/engine"
	"github.com/testangel/testangel-sdk/host"
	"github.com/testangel/testangel-sdk/internal/abi"
)

type fakeConfirmer struct {
	err         error
	requests    []entities.ConfirmationRequest
	interactive bool
	approve     bool
	always      bool
}

func (c *fakeConfirmer) IsInteractive() bool { return c.interactive }

func (c *fakeConfirmer) ConfirmInstruction(req entities.ConfirmationRequest) (bool, bool, error) {
	c.requests = append(c.requests, req)
	return c.approve, c.always, c.err
}

type memoryApprovals struct {
	set   *entities.ApprovalSet
	saves int
	mu    sync.Mutex
}

func (m *memoryApprovals) Load() (*entities.ApprovalSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.set == nil {
		return &entities.ApprovalSet{}, nil
	}
	return m.set, nil
}

func (m *memoryApprovals) Save(set *entities.ApprovalSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set = set
	m.saves++
	return nil
}

func (m *memoryApprovals) ConfigPath() string { return "memory" }

func TestDispatcher_MemoizesPureInstructions(t *testing.T) {
	ctx := context.Background()
	inst, mod := openDemo(t)
	d := host.NewDispatcher(inst)

	for range 3 {
		out, err := d.Execute(ctx, "demo-add", addParams(2, 3), false)
		require.NoError(t, err)
		v, _ := out.Value("result")
		assert.True(t, v.Equal(entities.IntegerValue(5)))
	}
	assert.Equal(t, 1, mod.callCount(abi.ExportExecute))
	assert.Equal(t, 2, d.MemoHits())

	// Parameter order does not change the key; dry runs share the cache.
	_, err := d.Execute(ctx, "demo-add", []entities.NamedValue{
		entities.Named("b", entities.IntegerValue(3)),
		entities.Named("a", entities.IntegerValue(2)),
	}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, mod.callCount(abi.ExportExecute))

	// Different parameters miss.
	_, err = d.Execute(ctx, "demo-add", addParams(3, 2), false)
	require.NoError(t, err)
	assert.Equal(t, 2, mod.callCount(abi.ExportExecute))

	// Reset forgets everything.
	require.NoError(t, d.ResetState(ctx))
	_, err = d.Execute(ctx, "demo-add", addParams(2, 3), false)
	require.NoError(t, err)
	assert.Equal(t, 3, mod.callCount(abi.ExportExecute))
}

func TestDispatcher_MemoizedOutputsAreCopies(t *testing.T) {
	ctx := context.Background()
	inst, _ := openDemo(t)
	d := host.NewDispatcher(inst)

	first, err := d.Execute(ctx, "demo-add", addParams(2, 3), false)
	require.NoError(t, err)
	first.Values[0].Value = entities.IntegerValue(99)
	first.Evidence[0].Value = "tampered"

	second, err := d.Execute(ctx, "demo-add", addParams(2, 3), false)
	require.NoError(t, err)
	assert.Equal(t, 1, d.MemoHits())
	v, _ := second.Value("result")
	assert.True(t, v.Equal(entities.IntegerValue(5)))
	assert.Equal(t, "2 + 3 = 5", second.Evidence[0].Value)

	second.Values[0].Value = entities.IntegerValue(42)
	third, err := d.Execute(ctx, "demo-add", addParams(2, 3), false)
	require.NoError(t, err)
	v, _ = third.Value("result")
	assert.True(t, v.Equal(entities.IntegerValue(5)))
}

func TestDispatcher_DoesNotMemoizeErrors(t *testing.T) {
	ctx := context.Background()
	inst, mod := openDemo(t)
	d := host.NewDispatcher(inst)

	for range 2 {
		_, err := d.Execute(ctx, "demo-add", addParams(2, 3)[:1], false)
		assert.True(t, domainerrors.IsCode(err, entities.CodeMissingParameter))
	}
	assert.Equal(t, 2, mod.callCount(abi.ExportExecute))
}

func TestDispatcher_MemoizationDisabled(t *testing.T) {
	ctx := context.Background()
	inst, mod := openDemo(t)
	d := host.NewDispatcher(inst, host.WithMemoization(false))

	for range 2 {
		_, err := d.Execute(ctx, "demo-add", addParams(2, 3), false)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, mod.callCount(abi.ExportExecute))
}

func TestDispatcher_UnknownInstructionReachesEngine(t *testing.T) {
	inst, _ := openDemo(t)
	d := host.NewDispatcher(inst)

	_, err := d.Execute(context.Background(), "demo-sub", nil, false)
	assert.True(t, domainerrors.IsCode(err, entities.CodeInvalidInstruction))
}

func okHandler(_ context.Context, c *engine.Call) error {
	c.SetOutput("n", entities.IntegerValue(1))
	return nil
}

func openFlagged(t *testing.T, flags entities.InstructionFlags, handler engine.HandlerFunc) (*host.Instance, *hookedModule) {
	t.Helper()
	mod := newHookedModule(flaggedEngine(t, "Manual", flags, handler))
	inst, err := host.Open(context.Background(), mod)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Close(context.Background()) })
	return inst, mod
}

func TestDispatcher_Confirmation(t *testing.T) {
	tests := []struct {
		name        string
		confirmer   *fakeConfirmer
		approvals   *entities.ApprovalSet
		dryRun      bool
		wantErr     error
		wantPrompts int
		wantSaves   int
		wantExec    int
	}{
		{
			name:        "approved once",
			confirmer:   &fakeConfirmer{interactive: true, approve: true},
			wantPrompts: 1,
			wantExec:    1,
		},
		{
			name:        "approved always is persisted",
			confirmer:   &fakeConfirmer{interactive: true, approve: true, always: true},
			wantPrompts: 1,
			wantSaves:   1,
			wantExec:    1,
		},
		{
			name:        "denied",
			confirmer:   &fakeConfirmer{interactive: true},
			wantErr:     domainerrors.ErrConfirmationDenied,
			wantPrompts: 1,
		},
		{
			name:      "not interactive",
			confirmer: &fakeConfirmer{},
			wantErr:   domainerrors.ErrConfirmationDenied,
		},
		{
			name:      "no confirmer",
			wantErr:   domainerrors.ErrConfirmationDenied,
			confirmer: nil,
		},
		{
			name:      "previously approved",
			confirmer: &fakeConfirmer{},
			approvals: &entities.ApprovalSet{Engines: map[string][]string{"Manual": {"Manual-op"}}},
			wantExec:  1,
		},
		{
			name:      "dry run needs no confirmation",
			confirmer: &fakeConfirmer{},
			dryRun:    true,
			wantExec:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, mod := openFlagged(t, entities.FlagNone, okHandler)
			store := &memoryApprovals{set: tt.approvals}

			opts := []host.DispatcherOption{host.WithApprovalStore(store)}
			if tt.confirmer != nil {
				opts = append(opts, host.WithConfirmer(tt.confirmer))
			}
			d := host.NewDispatcher(inst, opts...)

			_, err := d.Execute(context.Background(), "Manual-op", nil, tt.dryRun)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			if tt.confirmer != nil {
				assert.Len(t, tt.confirmer.requests, tt.wantPrompts)
			}
			assert.Equal(t, tt.wantSaves, store.saves)
			assert.Equal(t, tt.wantExec, mod.callCount(abi.ExportExecute))
		})
	}
}

func TestDispatcher_AlwaysSkipsLaterPrompts(t *testing.T) {
	inst, _ := openFlagged(t, entities.FlagNone, okHandler)
	confirmer := &fakeConfirmer{interactive: true, approve: true, always: true}
	store := &memoryApprovals{}
	d := host.NewDispatcher(inst, host.WithConfirmer(confirmer), host.WithApprovalStore(store))

	for range 3 {
		_, err := d.Execute(context.Background(), "Manual-op", nil, false)
		require.NoError(t, err)
	}
	assert.Len(t, confirmer.requests, 1)
	assert.True(t, store.set.IsApproved("Manual", "Manual-op"))
}

func TestDispatcher_ConfirmerError(t *testing.T) {
	inst, _ := openFlagged(t, entities.FlagNone, okHandler)
	boom := errors.New("tty closed")
	d := host.NewDispatcher(inst, host.WithConfirmer(&fakeConfirmer{interactive: true, err: boom}))

	_, err := d.Execute(context.Background(), "Manual-op", nil, false)
	assert.ErrorIs(t, err, boom)
}

func TestDispatcher_InfallibleViolationIsLogged(t *testing.T) {
	logger, logs := newTestLogger()
	inst, _ := openFlagged(t, entities.FlagAutomatic|entities.FlagInfallible, func(context.Context, *engine.Call) error {
		return errors.New("could not reach the thing")
	})
	d := host.NewDispatcher(inst, host.WithDispatcherLogger(logger))

	_, err := d.Execute(context.Background(), "Manual-op", nil, false)
	assert.True(t, domainerrors.IsCode(err, entities.CodeEngineProcessing))
	assert.Contains(t, logs.String(), "infallible instruction failed")
	assert.Contains(t, logs.String(), "instruction=Manual-op")
}

func TestDispatcher_InfallibleInputErrorsAreNotViolations(t *testing.T) {
	logger, logs := newTestLogger()
	inst, _ := openDemo(t)
	d := host.NewDispatcher(inst, host.WithDispatcherLogger(logger))

	_, err := d.Execute(context.Background(), "demo-add", nil, false)
	assert.True(t, domainerrors.IsCode(err, entities.CodeMissingParameter))
	assert.NotContains(t, logs.String(), "infallible instruction failed")
}

func TestDispatcher_TrustRules(t *testing.T) {
	p := policy.NewPolicy(policy.WithDenialHandler(&policy.NopDenialHandler{}))

	tests := []struct {
		name        string
		flags       entities.InstructionFlags
		rules       *entities.TrustRules
		dryRun      bool
		wantErr     error
		wantPrompts int
		wantExec    int
	}{
		{
			name:     "allowed without prompt",
			rules:    &entities.TrustRules{Allow: []string{"Manual/*"}},
			wantExec: 1,
		},
		{
			name:    "denied without prompt",
			rules:   &entities.TrustRules{Allow: []string{"**"}, Deny: []string{"*/Manual-op"}},
			wantErr: domainerrors.ErrInstructionDenied,
		},
		{
			name:    "deny overrides automatic",
			flags:   entities.FlagAutomatic,
			rules:   &entities.TrustRules{Deny: []string{"Manual/*"}},
			wantErr: domainerrors.ErrInstructionDenied,
		},
		{
			name:     "denied instructions may dry run",
			rules:    &entities.TrustRules{Deny: []string{"Manual/*"}},
			dryRun:   true,
			wantExec: 1,
		},
		{
			name:        "unmatched falls back to confirmation",
			rules:       &entities.TrustRules{Allow: []string{"Other/*"}},
			wantPrompts: 1,
			wantExec:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, mod := openFlagged(t, tt.flags, okHandler)
			confirmer := &fakeConfirmer{interactive: true, approve: true}
			d := host.NewDispatcher(inst,
				host.WithConfirmer(confirmer),
				host.WithTrustPolicy(p, tt.rules),
			)

			_, err := d.Execute(context.Background(), "Manual-op", nil, tt.dryRun)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, confirmer.requests, tt.wantPrompts)
			assert.Equal(t, tt.wantExec, mod.callCount(abi.ExportExecute))
		})
	}
}
