package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rfowler1994/project-archivist/internal/paths"
	"github.com/rfowler1994/project-archivist/pkg/types"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize archivist storage",
		Long:  "Create the configuration and data directories, then initialize the storage backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Attach creates the data directory and empty JSONL files.
			err := a.withArchive(func(types.Archive) error { return nil })
			if err != nil {
				return err
			}
			cfg, err := a.archiveConfig()
			if err != nil {
				return err
			}

			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"config_file": paths.ConfigFile(a.configDir),
					"data_dir":    cfg.DataDir,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Archivist initialized")
			fmt.Fprintf(out, "  config: %s\n", paths.ConfigFile(a.configDir))
			fmt.Fprintf(out, "  data:   %s\n", cfg.DataDir)
			return nil
		},
	}
}
