// Package text is an example engine working on strings. Besides pure
// helpers it keeps a journal across executions, showing how engines hold
// state, honour dry runs and ask for confirmation.
package text

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/testangel/testangel-sdk/domain/entities"
	"github.com/testangel/testangel-sdk/engine"
)

// Instruction ids.
const (
	InstructionConcat   = "text-concat"
	InstructionContains = "text-contains"
	InstructionNumber   = "text-number"
	InstructionRecord   = "text-record"
)

// Info identifies the text engine.
var Info = engine.Info{
	FriendlyName: "Text Engine",
	LuaName:      "Text",
	Version:      "1.0.0",
	Description:  "String helpers and a journal of recorded lines",
}

var pureFlags = entities.FlagPure | entities.FlagAutomatic

var instructions = []struct {
	meta    entities.InstructionMetadata
	handler engine.HandlerFunc
}{
	{entities.InstructionMetadata{
		ID:           InstructionConcat,
		LuaName:      "Concat",
		FriendlyName: "Concatenate",
		Description:  "Join two strings",
		Flags:        pureFlags | entities.FlagInfallible,
		Parameters: []entities.ParameterDescriptor{
			{ID: "left", Name: "Left", Kind: entities.KindString},
			{ID: "right", Name: "Right", Kind: entities.KindString},
		},
		Outputs: []entities.ParameterDescriptor{
			{ID: "result", Name: "Result", Kind: entities.KindString},
		},
	}, Concat},
	{entities.InstructionMetadata{
		ID:           InstructionContains,
		LuaName:      "Contains",
		FriendlyName: "Contains",
		Description:  "Check whether a string contains another",
		Flags:        pureFlags | entities.FlagInfallible,
		Parameters: []entities.ParameterDescriptor{
			{ID: "haystack", Name: "Haystack", Kind: entities.KindString},
			{ID: "needle", Name: "Needle", Kind: entities.KindString},
			{ID: "ignore_case", Name: "Ignore Case", Kind: entities.KindBoolean},
		},
		Outputs: []entities.ParameterDescriptor{
			{ID: "found", Name: "Found", Kind: entities.KindBoolean},
		},
	}, Contains},
	{entities.InstructionMetadata{
		ID:           InstructionNumber,
		LuaName:      "Number",
		FriendlyName: "Parse Number",
		Description:  "Parse a decimal number",
		Flags:        pureFlags,
		Parameters: []entities.ParameterDescriptor{
			{ID: "text", Name: "Text", Kind: entities.KindString},
		},
		Outputs: []entities.ParameterDescriptor{
			{ID: "value", Name: "Value", Kind: entities.KindDecimal},
		},
	}, Number},
	{entities.InstructionMetadata{
		ID:           InstructionRecord,
		LuaName:      "Record",
		FriendlyName: "Record Line",
		Description:  "Append a line to the journal",
		Flags:        entities.FlagInfallible,
		Parameters: []entities.ParameterDescriptor{
			{ID: "line", Name: "Line", Kind: entities.KindString},
		},
		Outputs: []entities.ParameterDescriptor{
			{ID: "count", Name: "Count", Kind: entities.KindInteger},
		},
	}, Record},
}

// Journal is the engine state: the lines recorded since the last reset.
type Journal struct {
	Lines []string
}

// New creates the text engine.
func New() *engine.Engine {
	opts := []engine.Option{engine.WithState(func() any { return &Journal{} })}
	for _, in := range instructions {
		opts = append(opts, engine.WithInstruction(in.meta, in.handler))
	}
	return engine.MustNew(Info, opts...)
}

// Concat joins left and right.
func Concat(_ context.Context, call *engine.Call) error {
	call.SetOutput("result", entities.StringValue(call.Params.MustText("left")+call.Params.MustText("right")))
	return nil
}

// Contains reports whether needle occurs in haystack.
func Contains(_ context.Context, call *engine.Call) error {
	haystack := call.Params.MustText("haystack")
	needle := call.Params.MustText("needle")
	if call.Params.MustBool("ignore_case") {
		haystack, needle = strings.ToLower(haystack), strings.ToLower(needle)
	}
	call.SetOutput("found", entities.BooleanValue(strings.Contains(haystack, needle)))
	return nil
}

// Number parses text as a decimal number.
func Number(_ context.Context, call *engine.Call) error {
	raw := strings.TrimSpace(call.Params.MustText("text"))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", raw)
	}
	call.SetOutput("value", entities.DecimalValue(v))
	return nil
}

// Record appends line to the journal. A dry run reports the count the
// journal would reach without changing it.
func Record(ctx context.Context, call *engine.Call) error {
	j, ok := call.State.(*Journal)
	if !ok {
		return fmt.Errorf("unexpected engine state %T", call.State)
	}
	lines := append(slices.Clone(j.Lines), call.Params.MustText("line"))
	if !call.DryRun {
		j.Lines = lines
		call.Logger().InfoContext(ctx, "line recorded", "count", len(lines))
	}
	call.SetOutput("count", entities.IntegerValue(int32(len(lines)))) //nolint:gosec // G115: journals stay far below 2^31 lines
	call.AddEvidence(entities.TextEvidence("Journal", strings.Join(lines, "\n")))
	return nil
}
