package cli

import (
	"github.com/spf13/cobra"
)

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <engine>",
		Short: "Show an engine's metadata and instructions",
		Example: `  testangel-host describe engines/demo.wasm
  testangel-host describe builtin:demo --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := newSession(opts)
			defer s.Close(ctx)

			inst, err := s.open(ctx, args[0])
			if err != nil {
				return err
			}
			defer inst.Close(ctx)
			return opts.formatter(cmd).describe(inst)
		},
	}
}
