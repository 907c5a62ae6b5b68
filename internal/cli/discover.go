package cli

import (
	"github.com/spf13/cobra"

	"github.com/testangel/testangel-sdk/host/registry"
)

// NewDiscoverCommand creates the discover command.
func NewDiscoverCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discover [dir]",
		Short: "Load every engine under a directory and list their instructions",
		Long: `Load every .wasm file under a directory, recursively, and list the
instructions the engines offer. The directory defaults to engine_dir from
the configuration, which TA_ENGINE_DIR overrides.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir := opts.Config.EngineDir
			if len(args) == 1 {
				dir = args[0]
			}

			s := newSession(opts)
			defer s.Close(ctx)

			reg := registry.NewRegistry(registry.WithLogger(opts.Logger))
			defer reg.Close(ctx)
			if _, err := reg.Discover(ctx, s, dir); err != nil {
				return commandError("discovery failed", err)
			}

			f := opts.formatter(cmd)
			if f.json() {
				docs := make([]engineDoc, 0, len(reg.Engines()))
				for _, inst := range reg.Engines() {
					docs = append(docs, engineDoc{Engine: inst.Metadata(), Instructions: inst.Instructions()})
				}
				return f.writeJSON(docs)
			}
			for _, id := range reg.List() {
				inst, _ := reg.EngineByInstructionID(id)
				md, _ := reg.InstructionByID(id)
				f.printf("%s\t%s.%s\t%s\n", id, inst.Name(), md.LuaName, md.FriendlyName)
			}
			return nil
		},
	}
}
