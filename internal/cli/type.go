package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rfowler1994/project-archivist/pkg/types"
)

func newTypeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "type",
		Short: "Manage entity types",
	}
	cmd.AddCommand(
		newTypeDefineCmd(a),
		newTypeListCmd(a),
		newTypeShowCmd(a),
		newTypeDeleteCmd(a),
		newTypeRenameCmd(a),
	)
	return cmd
}

func newTypeDefineCmd(a *app) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "define <name>",
		Short: "Define a new entity type",
		Example: `  archivist type define task --description "Work to be done"
  archivist type define meeting`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchive(func(archive types.Archive) error {
				def, err := archive.DefineEntityType(cmd.Context(), args[0], description)
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), def)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Defined entity type %s (%s)\n", def.Name, def.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "free-text description")
	return cmd
}

func newTypeListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List entity types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchive(func(archive types.Archive) error {
				defs, err := archive.ListEntityTypes(cmd.Context())
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), defs)
				}
				printEntityTypes(cmd.OutOrStdout(), defs)
				return nil
			})
		},
	}
}

// typeDetail is the JSON shape of "type show".
type typeDetail struct {
	*types.EntityTypeDefinition
	Fields []*types.FieldDefinition `json:"fields"`
}

func newTypeShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show an entity type and its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchive(func(archive types.Archive) error {
				def, err := archive.GetEntityType(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fields, err := archive.ListFields(cmd.Context(), def.Name)
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), typeDetail{def, fields})
				}
				printEntityType(cmd.OutOrStdout(), def, fields)
				return nil
			})
		},
	}
}

func newTypeDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an entity type with no fields, entities, or inbound references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchive(func(archive types.Archive) error {
				if err := archive.DeleteEntityType(cmd.Context(), args[0]); err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": types.NormalizeName(args[0])})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted entity type %s\n", types.NormalizeName(args[0]))
				return nil
			})
		},
	}
}

func newTypeRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old-name> <new-name>",
		Short: "Rename an entity type along with its fields, entities, and references",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchive(func(archive types.Archive) error {
				def, err := archive.RenameEntityType(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), def)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed entity type %s to %s\n", types.NormalizeName(args[0]), def.Name)
				return nil
			})
		},
	}
}
