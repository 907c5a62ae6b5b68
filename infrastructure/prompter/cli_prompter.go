// Package prompter asks an operator on a terminal before instructions run.
package prompter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/testangel/testangel-sdk/domain/entities"
)

// CliConfirmer implements ports.Confirmer for CLI environments.
type CliConfirmer struct {
	in          *bufio.Scanner
	out         io.Writer
	interactive func() bool
}

// NewCliConfirmer creates a new CliConfirmer reading answers from in.
func NewCliConfirmer(in io.Reader, out io.Writer) *CliConfirmer {
	c := &CliConfirmer{out: out}
	if in != nil {
		c.in = bufio.NewScanner(in)
	}
	c.interactive = func() bool { return isTerminal(in) }
	return c
}

// ForceInteractive treats the input as a terminal even when it is not.
// Used for piped answers and in tests.
func (c *CliConfirmer) ForceInteractive() *CliConfirmer {
	c.interactive = func() bool { return c.in != nil }
	return c
}

// IsInteractive checks if the input is a terminal.
func (c *CliConfirmer) IsInteractive() bool {
	return c.interactive()
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// ConfirmInstruction asks the operator to approve one execution.
func (c *CliConfirmer) ConfirmInstruction(req entities.ConfirmationRequest) (approved bool, always bool, err error) {
	if c.in == nil {
		return false, false, io.EOF
	}

	meta := req.Instruction
	_, _ = fmt.Fprintf(c.out, "Instruction: %s (%s.%s)\n", meta.FriendlyName, req.Engine, meta.LuaName)
	if meta.Description != "" {
		_, _ = fmt.Fprintf(c.out, "  %s\n", meta.Description)
	}
	for _, p := range req.Parameters {
		_, _ = fmt.Fprintf(c.out, "  %s = %s\n", p.Name, p.Value)
	}
	_, _ = fmt.Fprintf(c.out, "Run? [y/n/always]: ")

	if c.in.Scan() {
		text := strings.ToLower(strings.TrimSpace(c.in.Text()))
		switch text {
		case "y", "yes":
			return true, false, nil
		case "a", "always":
			return true, true, nil
		default:
			// Default deny
			return false, false, nil
		}
	}
	if err := c.in.Err(); err != nil {
		return false, false, err
	}
	return false, false, io.EOF
}
