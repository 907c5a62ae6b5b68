// Package demo is the demonstration engine. It offers a single instruction,
// demo-add, which sums two integers and records the sum as evidence.
package demo

import (
	"context"
	"fmt"

	"github.com/testangel/testangel-sdk/domain/entities"
	"github.com/testangel/testangel-sdk/engine"
)

// InstructionAdd is the id of the add instruction.
const InstructionAdd = "demo-add"

// Info identifies the demo engine.
var Info = engine.Info{
	FriendlyName: "Demo C Engine",
	LuaName:      "DemoC",
	Version:      "0.0.0",
	Description:  "An example of an engine implemented in C",
}

// AddInstruction declares demo-add.
var AddInstruction = entities.InstructionMetadata{
	ID:           InstructionAdd,
	LuaName:      "Add",
	FriendlyName: "Add",
	Description:  "Add together two numbers",
	Flags:        entities.FlagPure | entities.FlagInfallible | entities.FlagAutomatic,
	Parameters: []entities.ParameterDescriptor{
		{ID: "a", Name: "A", Kind: entities.KindInteger},
		{ID: "b", Name: "B", Kind: entities.KindInteger},
	},
	Outputs: []entities.ParameterDescriptor{
		{ID: "result", Name: "Result", Kind: entities.KindInteger},
	},
}

// New creates the demo engine.
func New() *engine.Engine {
	return engine.MustNew(Info, engine.WithInstruction(AddInstruction, Add))
}

// Add sums a and b with 32-bit wraparound.
func Add(ctx context.Context, call *engine.Call) error {
	a := call.Params.MustInt32("a")
	b := call.Params.MustInt32("b")
	sum := a + b

	call.Logger().DebugContext(ctx, "adding", "a", a, "b", b)
	call.SetOutput("result", entities.IntegerValue(sum))
	call.AddEvidence(entities.TextEvidence("Sum", fmt.Sprintf("%d + %d = %d", a, b, sum)))
	return nil
}
