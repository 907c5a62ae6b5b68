package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/testangel/testangel-sdk/application/schema"
	"github.com/testangel/testangel-sdk/domain/entities"
)

// NewSchemaCommand creates the schema command and its subcommands.
func NewSchemaCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print JSON schemas",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the schema of the host configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := schema.GenerateSchema(entities.HostConfig{})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "instruction <engine> <instruction>",
		Short: "Print the schema exec --params is checked against",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := newSession(opts)
			defer s.Close(ctx)

			inst, err := s.open(ctx, args[0])
			if err != nil {
				return err
			}
			defer inst.Close(ctx)

			meta, ok := inst.Instruction(args[1])
			if !ok {
				return commandError(fmt.Sprintf("%s does not offer %q", inst.Name(), args[1]), nil)
			}
			data, err := schema.Marshal(schema.InstructionSchema(meta))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	})

	return cmd
}
