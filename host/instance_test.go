package host_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/testangel/testangel-sdk/domain/entities"
	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
	"github.com/testangel/testangel-sdk/engine"
	"github.com/testangel/testangel-sdk/engines/demo"
	"github.com/testangel/testangel-sdk/host"
	"github.com/testangel/testangel-sdk/internal/abi"
	"github.com/testangel/testangel-sdk/internal/testutil"
)

// InstanceSuite drives the demo engine through the host client.
type InstanceSuite struct {
	suite.Suite
	ctx     context.Context
	mod     *hookedModule
	inst    *host.Instance
	loggers *host.LoggerTable
	logs    *syncBuffer
}

func (s *InstanceSuite) SetupTest() {
	s.ctx = context.Background()
	logger, buf := newTestLogger()
	s.logs = buf
	s.loggers = host.NewLoggerTable(logger)
	s.mod = newHookedModule(demo.New(), engine.WithLogSink(s.loggers))

	inst, err := host.Open(s.ctx, s.mod, host.WithLoggerTable(s.loggers), host.WithLogger(logger))
	s.Require().NoError(err)
	s.inst = inst
}

func (s *InstanceSuite) TearDownTest() {
	s.Require().NoError(s.inst.Close(s.ctx))
}

func (s *InstanceSuite) TestHandshake() {
	s.Equal(host.StateReady, s.inst.State())
	s.Equal(entities.EngineMetadata{
		IPCVersion:   3,
		FriendlyName: "Demo C Engine",
		LuaName:      "DemoC",
		Version:      "0.0.0",
		Description:  "An example of an engine implemented in C",
	}, s.inst.Metadata())
	s.Equal("DemoC", s.inst.Name())
	s.Equal([]entities.InstructionMetadata{demo.AddInstruction}, s.inst.Instructions())

	md, ok := s.inst.Instruction("demo-add")
	s.True(ok)
	s.True(md.Flags.Has(entities.FlagPure | entities.FlagInfallible | entities.FlagAutomatic))

	// Every handshake structure was handed back.
	testutil.RequireNoLeaks(s.T(), s.mod.Module)
	s.Equal(1, s.loggers.Len())
}

func (s *InstanceSuite) TestExecuteAdd() {
	out, err := s.inst.Execute(s.ctx, "demo-add", addParams(2, 3), false)
	s.Require().NoError(err)

	v, ok := out.Value("result")
	s.Require().True(ok)
	s.True(v.Equal(entities.IntegerValue(5)))
	s.Equal([]entities.Evidence{entities.TextEvidence("Sum", "2 + 3 = 5")}, out.Evidence)

	testutil.RequireNoLeaks(s.T(), s.mod.Module)
}

func (s *InstanceSuite) TestExecuteErrors() {
	tests := []struct {
		name     string
		id       string
		params   []entities.NamedValue
		wantCode entities.ResultCode
		reason   string
	}{
		{name: "unknown instruction", id: "demo-sub", params: addParams(2, 3), wantCode: entities.CodeInvalidInstruction, reason: "demo-add"},
		{name: "missing parameter", id: "demo-add", params: addParams(2, 3)[:1], wantCode: entities.CodeMissingParameter, reason: "b"},
		{
			name:     "unexpected parameter",
			id:       "demo-add",
			params:   append(addParams(2, 3), entities.Named("c", entities.IntegerValue(4))),
			wantCode: entities.CodeInvalidParameter,
			reason:   "c",
		},
		{
			name:     "wrong type",
			id:       "demo-add",
			params:   []entities.NamedValue{entities.Named("a", entities.BooleanValue(true)), entities.Named("b", entities.IntegerValue(3))},
			wantCode: entities.CodeInvalidParameterType,
			reason:   "A",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			out, err := s.inst.Execute(s.ctx, tt.id, tt.params, false)
			s.Nil(out)

			var ee *domainerrors.EngineError
			s.Require().ErrorAs(err, &ee)
			s.Equal(tt.wantCode, ee.Code)
			s.Equal(abi.ExportExecute, ee.Entry)
			s.Contains(ee.Reason, tt.reason)
			s.True(domainerrors.IsCode(err, tt.wantCode))

			testutil.RequireNoLeaks(s.T(), s.mod.Module)
		})
	}
}

func (s *InstanceSuite) TestResetState() {
	s.Require().NoError(s.inst.ResetState(s.ctx))
	s.Require().NoError(s.inst.ResetState(s.ctx))
	testutil.RequireNoLeaks(s.T(), s.mod.Module)
}

func (s *InstanceSuite) TestEngineLogsReachHost() {
	_, err := s.inst.Execute(s.ctx, "demo-add", addParams(2, 3), false)
	s.Require().NoError(err)

	logs := s.logs.String()
	s.Contains(logs, "engine=DemoC")
	s.Contains(logs, "instance="+s.inst.ID().String())
	s.Contains(logs, "adding")
}

func (s *InstanceSuite) TestHandshakeLogsReachHost() {
	s.Contains(s.logs.String(), "instructions requested count=1")
}

func (s *InstanceSuite) TestClose() {
	s.Require().NoError(s.inst.Close(s.ctx))
	s.Equal(host.StateUnloaded, s.inst.State())
	s.Zero(s.loggers.Len())

	_, err := s.inst.Execute(s.ctx, "demo-add", addParams(2, 3), false)
	s.ErrorIs(err, domainerrors.ErrEngineUnloaded)
	s.ErrorIs(s.inst.ResetState(s.ctx), domainerrors.ErrEngineUnloaded)

	// Closing again is harmless.
	s.NoError(s.inst.Close(s.ctx))
}

func TestInstanceSuite(t *testing.T) {
	suite.Run(t, new(InstanceSuite))
}

func TestOpen_RejectsIPCVersion(t *testing.T) {
	mod := newHookedModule(demo.New())

	_, err := host.Open(context.Background(), mod, host.WithAcceptedIPCVersions(2))

	var ie *domainerrors.IncompatibleEngineError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, uint32(3), ie.Declared)
	assert.Equal(t, []uint32{2}, ie.Accepted)

	// The rejected engine's metadata and instruction list were still released.
	testutil.RequireNoLeaks(t, mod.Module)
	assert.Equal(t, 0, mod.callCount(abi.ExportExecute))
}

func TestOpen_RejectsSignature(t *testing.T) {
	mod := newHookedModule(demo.New())
	mod.hooks[abi.ExportSignature] = func(...uint64) ([]uint64, error) { return []uint64{1}, nil }

	_, err := host.Open(context.Background(), mod)
	require.ErrorIs(t, err, domainerrors.ErrBadSignature)
	assert.Equal(t, 0, mod.callCount(abi.ExportRequestInstructions))
}

func TestOpen_RequestInstructionsFails(t *testing.T) {
	mod := newHookedModule(demo.New())
	mod.hooks[abi.ExportRequestInstructions] = func(...uint64) ([]uint64, error) {
		ptr, err := abi.WriteResult(mod.Surface().Arena(), entities.ResultError(entities.CodeEngineProcessing, "no"))
		return []uint64{uint64(ptr)}, err
	}

	table := host.NewLoggerTable(nil)
	_, err := host.Open(context.Background(), mod, host.WithLoggerTable(table))
	assert.True(t, domainerrors.IsCode(err, entities.CodeEngineProcessing))
	testutil.RequireNoLeaks(t, mod.Module)
	assert.Zero(t, table.Len())
	assert.Equal(t, 1, mod.callCount(abi.ExportRegisterLogger))
}

func TestExecute_MisbehavingEngine(t *testing.T) {
	tests := []struct {
		name  string
		hook  func(mod *hookedModule) func(...uint64) ([]uint64, error)
		check func(t *testing.T, err error)
	}{
		{
			name: "null result",
			hook: func(*hookedModule) func(...uint64) ([]uint64, error) {
				return func(...uint64) ([]uint64, error) { return []uint64{0}, nil }
			},
			check: func(t *testing.T, err error) {
				assert.True(t, domainerrors.IsCode(err, entities.CodeEngineProcessing))
			},
		},
		{
			name: "unknown result code",
			hook: func(mod *hookedModule) func(...uint64) ([]uint64, error) {
				return func(...uint64) ([]uint64, error) {
					ptr, err := abi.WriteResult(mod.Surface().Arena(), entities.ResultError(9, "from the future"))
					return []uint64{uint64(ptr)}, err
				}
			},
			check: func(t *testing.T, err error) {
				var ee *domainerrors.EngineError
				require.ErrorAs(t, err, &ee)
				assert.True(t, ee.Generic())
				assert.Equal(t, "from the future", ee.Reason)
			},
		},
		{
			name: "trap",
			hook: func(*hookedModule) func(...uint64) ([]uint64, error) {
				return func(...uint64) ([]uint64, error) { return nil, errors.New("unreachable") }
			},
			check: func(t *testing.T, err error) {
				assert.EqualError(t, err, "unreachable")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, mod := openDemo(t)
			mod.hooks[abi.ExportExecute] = tt.hook(mod)

			out, err := inst.Execute(context.Background(), "demo-add", addParams(2, 3), false)
			assert.Nil(t, out)
			tt.check(t, err)
			testutil.RequireNoLeaks(t, mod.Module)
		})
	}
}

func TestInstance_NoLoggerTable(t *testing.T) {
	inst, mod := openDemo(t)

	out, err := inst.Execute(context.Background(), "demo-add", addParams(40, 2), false)
	require.NoError(t, err)
	v, _ := out.Value("result")
	assert.True(t, v.Equal(entities.IntegerValue(42)))
	assert.Equal(t, 0, mod.callCount(abi.ExportRegisterLogger))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "loaded", host.StateLoaded.String())
	assert.Equal(t, "ready", host.StateReady.String())
	assert.Equal(t, "unloaded", host.StateUnloaded.String())
}
