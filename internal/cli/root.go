// Package cli implements the testangel-host command: a minimal host that
// loads engines, describes them and runs their instructions.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/testangel/testangel-sdk/application/config"
	"github.com/testangel/testangel-sdk/domain/entities"
	"github.com/testangel/testangel-sdk/infrastructure/parser"
)

// DefaultConfigPath is read when --config is not given. It may be absent.
const DefaultConfigPath = "testangel.yaml"

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags and the state derived from them.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Format     string

	// Set by the root command before any subcommand runs.
	Config *entities.HostConfig
	Logger *slog.Logger
	Level  slog.Level
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "testangel-host",
		Short: "Load TestAngel engines and run their instructions",
		Long: `testangel-host loads TestAngel engine modules, checks their IPC version
and runs their instructions, honouring the PURE, INFALLIBLE and AUTOMATIC
flags each instruction advertises.

Engines are WebAssembly modules; "builtin:demo" and "builtin:text" name
the example engines compiled into this binary.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", DefaultConfigPath, "host configuration file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "minimum log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewDescribeCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewDiscoverCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))

	return cmd
}

func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !slices.Contains(ValidFormats, o.Format) {
		return commandError(fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats), nil)
	}

	optional := !cmd.Flags().Changed("config")
	cfg, err := config.Load(o.ConfigPath, parser.NewYamlConfigParser(), optional)
	if err != nil {
		return commandError("failed to load configuration", err)
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	level, err := config.SlogLevel(cfg.LogLevel)
	if err != nil {
		return commandError("invalid log level", err)
	}

	o.Config = cfg
	o.Level = level
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) formatter {
	return formatter{w: cmd.OutOrStdout(), format: o.Format}
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return GetExitCode(err)
}
