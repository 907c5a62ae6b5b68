package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/testangel/testangel-sdk/domain/entities"
	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
	"github.com/testangel/testangel-sdk/domain/ports"
	"github.com/testangel/testangel-sdk/host"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The instruction or engine reported a failure
	ExitCommandError = 2 // Bad arguments, config or engine files
)

// ExitError carries the exit code a command failure should produce.
type ExitError struct {
	Err     error
	Message string
	Code    int
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func commandError(message string, err error) *ExitError {
	return &ExitError{Code: ExitCommandError, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Engine results map to
// ExitFailure, everything else that is not an ExitError too.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// formatter renders command results as text or JSON.
type formatter struct {
	w      io.Writer
	format string
}

func (f formatter) json() bool {
	return f.format == "json"
}

func (f formatter) writeJSON(v any) error {
	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f formatter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(f.w, format, args...)
}

// nativeValue converts a value to the JSON type it is written as.
func nativeValue(v entities.Value) any {
	switch v.Kind() {
	case entities.KindInteger:
		i, _ := v.Integer()
		return i
	case entities.KindDecimal:
		d, _ := v.Decimal()
		return d
	case entities.KindBoolean:
		b, _ := v.Boolean()
		return b
	case entities.KindString:
		s, _ := v.Str()
		return s
	default:
		return nil
	}
}

type engineDoc struct {
	Engine       entities.EngineMetadata        `json:"engine"`
	Instructions []entities.InstructionMetadata `json:"instructions"`
}

func (f formatter) describe(inst *host.Instance) error {
	meta := inst.Metadata()
	instructions := inst.Instructions()
	if f.json() {
		return f.writeJSON(engineDoc{Engine: meta, Instructions: instructions})
	}

	f.printf("Engine:      %s (%s)\n", meta.FriendlyName, meta.LuaName)
	f.printf("Version:     %s\n", meta.Version)
	f.printf("IPC version: %d\n", meta.IPCVersion)
	if meta.Description != "" {
		f.printf("Description: %s\n", meta.Description)
	}
	for _, in := range instructions {
		f.printf("\n%s  %s.%s  [%s]\n", in.ID, meta.LuaName, in.LuaName, in.Flags)
		f.printf("  %s\n", in.FriendlyName)
		if in.Description != "" {
			f.printf("  %s\n", in.Description)
		}
		f.descriptors("parameters", in.Parameters)
		f.descriptors("outputs", in.Outputs)
	}
	return nil
}

func (f formatter) descriptors(title string, list []entities.ParameterDescriptor) {
	if len(list) == 0 {
		return
	}
	f.printf("  %s:\n", title)
	for _, d := range list {
		f.printf("    %s (%s): %s\n", d.ID, d.Name, d.Kind)
	}
}

type outputDoc struct {
	Outputs  map[string]any      `json:"outputs"`
	Evidence []entities.Evidence `json:"evidence"`
	DryRun   bool                `json:"dry_run,omitempty"`
}

func newOutputDoc(out *host.Output, dryRun bool) outputDoc {
	doc := outputDoc{Outputs: make(map[string]any, len(out.Values)), Evidence: out.Evidence, DryRun: dryRun}
	if doc.Evidence == nil {
		doc.Evidence = []entities.Evidence{}
	}
	for _, nv := range out.Values {
		doc.Outputs[nv.Name] = nativeValue(nv.Value)
	}
	return doc
}

func (f formatter) output(out *host.Output, dryRun bool) error {
	if f.json() {
		return f.writeJSON(newOutputDoc(out, dryRun))
	}

	if dryRun {
		f.printf("(dry run)\n")
	}
	for _, nv := range out.Values {
		f.printf("%s = %s\n", nv.Name, nv.Value)
	}
	for _, ev := range out.Evidence {
		value := ev.Value
		if ev.Kind == entities.EvidencePNGBase64 {
			value = fmt.Sprintf("<png, %d base64 bytes>", len(ev.Value))
		}
		f.printf("evidence %q: %s\n", ev.Label, value)
	}
	return nil
}

// rendered prints out through a user template. The data mirrors the JSON
// output: .outputs, .evidence and .dry_run.
func (f formatter) rendered(engine ports.TemplateEngine, raw string, out *host.Output, dryRun bool) error {
	doc := newOutputDoc(out, dryRun)
	text, err := engine.Render([]byte(raw), map[string]any{
		"outputs":  doc.Outputs,
		"evidence": doc.Evidence,
		"dry_run":  doc.DryRun,
	})
	if err != nil {
		return commandError("invalid --template", err)
	}
	if !bytes.HasSuffix(text, []byte("\n")) {
		text = append(text, '\n')
	}
	_, err = f.w.Write(text)
	return err
}

// failure renders an engine failure. The code name is what scripts match on.
func (f formatter) failure(err error) error {
	var ee *domainerrors.EngineError
	if !errors.As(err, &ee) {
		return err
	}
	if f.json() {
		_ = f.writeJSON(map[string]string{"code": ee.Code.String(), "reason": ee.Reason})
	} else {
		f.printf("%s: %s\n", ee.Code, strings.TrimSpace(ee.Reason))
	}
	return &ExitError{Code: ExitFailure, Message: "instruction failed", Err: err}
}
