package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/testangel/testangel-sdk/application/template"
	"github.com/testangel/testangel-sdk/application/validation"
	"github.com/testangel/testangel-sdk/domain/entities"
	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
	"github.com/testangel/testangel-sdk/domain/policy"
	"github.com/testangel/testangel-sdk/host"
	"github.com/testangel/testangel-sdk/infrastructure/approvalstore"
	"github.com/testangel/testangel-sdk/infrastructure/prompter"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Params      string
	Template    string
	DryRun      bool
	PromptStdin bool
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <engine> <instruction>",
		Short: "Run one instruction",
		Long: `Run one instruction of an engine and print its outputs and evidence.

Parameters are given as a JSON object keyed by parameter id and are checked
against the instruction's declaration before the engine sees them.
Instructions that are not AUTOMATIC ask for confirmation unless --dry-run
is given or the configured trust rules allow them.`,
		Example: `  testangel-host exec builtin:demo demo-add --params '{"a": 2, "b": 3}'
  testangel-host exec builtin:demo demo-add --params '{"a": 2, "b": 3}' --template '{{.outputs.result}}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.Params, "params", "{}", "instruction parameters as JSON")
	cmd.Flags().StringVar(&opts.Template, "template", "", "render the result with a Go template instead of --format")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "ask the engine not to perform side effects")
	cmd.Flags().BoolVar(&opts.PromptStdin, "prompt-stdin", false, "read confirmation answers from stdin even when it is not a terminal")

	return cmd
}

func runExec(cmd *cobra.Command, opts *ExecOptions, ref, id string) error {
	ctx := cmd.Context()
	s := newSession(opts.RootOptions)
	defer s.Close(ctx)

	inst, err := s.open(ctx, ref)
	if err != nil {
		return err
	}
	defer inst.Close(ctx)

	// Unknown instructions go to the engine unvalidated so it can list
	// what it offers.
	var params []entities.NamedValue
	if meta, ok := inst.Instruction(id); ok {
		params, err = validation.NewParameterValidator().Parse(meta, []byte(opts.Params))
		if err != nil {
			return commandError("invalid --params", err)
		}
	}

	confirmer := prompter.NewCliConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
	if opts.PromptStdin {
		confirmer.ForceInteractive()
	}

	d := host.NewDispatcher(inst,
		host.WithConfirmer(confirmer),
		host.WithApprovalStore(approvalstore.NewFileStore(approvalstore.WithPath(opts.Config.ApprovalsFile))),
		host.WithTrustPolicy(
			policy.NewPolicy(policy.WithDenialHandler(&policy.LogDenialHandler{Logger: opts.Logger})),
			&opts.Config.Trust,
		),
		host.WithMemoization(!opts.Config.DisableMemoization),
		host.WithDispatcherLogger(opts.Logger),
	)

	f := opts.formatter(cmd)
	out, err := d.Execute(ctx, id, params, opts.DryRun)
	if errors.Is(err, domainerrors.ErrConfirmationDenied) || errors.Is(err, domainerrors.ErrInstructionDenied) {
		return &ExitError{Code: ExitFailure, Message: "instruction not run", Err: err}
	}
	if err != nil {
		return f.failure(err)
	}
	if opts.Template != "" {
		return f.rendered(template.NewGoTemplateEngine(), opts.Template, out, opts.DryRun)
	}
	return f.output(out, opts.DryRun)
}
