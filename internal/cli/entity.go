package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rfowler1994/project-archivist/pkg/types"
)

func newEntityCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "entity",
		Aliases: []string{"entities"},
		Short:   "Create, read, update, and delete typed entities",
	}
	cmd.AddCommand(
		newEntityCreateCmd(a),
		newEntityPromoteCmd(a),
		newEntityGetCmd(a),
		newEntityListCmd(a),
		newEntityUpdateCmd(a),
		newEntityDeleteCmd(a),
		newEntitySourcesCmd(a),
	)
	return cmd
}

// contentFlags holds the flags that describe entity content.
type contentFlags struct {
	title      string
	body       string
	fields     []string
	fieldsJSON string
}

func (f *contentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "entity title")
	cmd.Flags().StringVar(&f.body, "body", "", "entity body")
	cmd.Flags().StringArrayVarP(&f.fields, "field", "f", nil, "custom field as key=value; JSON literals (12.5, true, [\"a\",\"b\"]) are decoded (repeatable)")
	cmd.Flags().StringVar(&f.fieldsJSON, "fields-json", "", "custom fields as a JSON object; --field entries override it")
}

func (a *app) printEntityResult(cmd *cobra.Command, verb string, e *types.TypedEntity) error {
	if a.jsonMode {
		return printJSON(cmd.OutOrStdout(), e)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s (version %d)\n", verb, e.EntityTypeName, e.ID, e.Version)
	return nil
}

func newEntityCreateCmd(a *app) *cobra.Command {
	var f contentFlags
	cmd := &cobra.Command{
		Use:   "create <entity-type>",
		Short: "Create an entity validated against its type's fields",
		Example: `  archivist entity create task --title "Ship it" --field priority=high --field estimate=3
  archivist entity create task --title "Ship it" --fields-json '{"priority":"high","tags":["a","b"]}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := customFields(f.fieldsJSON, f.fields)
			if err != nil {
				return err
			}
			return a.withArchive(func(archive types.Archive) error {
				e, err := archive.CreateEntity(cmd.Context(), types.NewEntity{
					EntityTypeName:   args[0],
					Title:            f.title,
					Body:             f.body,
					CustomFieldsData: data,
				})
				if err != nil {
					return err
				}
				return a.printEntityResult(cmd, "Created", e)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newEntityPromoteCmd(a *app) *cobra.Command {
	var (
		f          contentFlags
		sourceID   string
		sourceType string
	)
	cmd := &cobra.Command{
		Use:   "promote <entity-type>",
		Short: "Create an entity derived from a source record",
		Long: "Promote creates an entity like \"entity create\" and tags it with the record it\n" +
			"came from. The source is not checked; it is recorded for \"entity sources\".",
		Example: `  archivist entity promote task --source-id note-42 --source-type note --title "Follow up" --body "..."`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sourceID == "" {
				return usageErrorf("--source-id is required")
			}
			data, err := customFields(f.fieldsJSON, f.fields)
			if err != nil {
				return err
			}
			return a.withArchive(func(archive types.Archive) error {
				e, err := archive.CreateEntity(cmd.Context(), types.NewEntity{
					EntityTypeName:   args[0],
					Title:            f.title,
					Body:             f.body,
					CustomFieldsData: data,
					Provenance: &types.Provenance{
						SourceEntityID:   sourceID,
						SourceEntityType: sourceType,
					},
				})
				if err != nil {
					return err
				}
				return a.printEntityResult(cmd, "Promoted", e)
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&sourceID, "source-id", "", "ID of the source record")
	cmd.Flags().StringVar(&sourceType, "source-type", "", "kind of the source record")
	return cmd
}

func newEntityGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchive(func(archive types.Archive) error {
				e, err := archive.GetEntity(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), e)
				}
				printEntity(cmd.OutOrStdout(), e)
				return nil
			})
		},
	}
}

func newEntityListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <entity-type>",
		Short: "List the entities of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchive(func(archive types.Archive) error {
				entities, err := archive.ListEntitiesOfType(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), entities)
				}
				printEntities(cmd.OutOrStdout(), entities)
				return nil
			})
		},
	}
}

func newEntitySourcesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sources <source-id>",
		Short: "List the entities promoted from a source record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchive(func(archive types.Archive) error {
				entities, err := archive.ListEntitiesBySource(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), entities)
				}
				printEntities(cmd.OutOrStdout(), entities)
				return nil
			})
		},
	}
}

func newEntityUpdateCmd(a *app) *cobra.Command {
	var (
		f       contentFlags
		unset   []string
		version int64
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an entity's title, body, or custom fields",
		Long: "Update reads the entity, applies the given changes, and writes it back with\n" +
			"the version it read. Pass --version to fail instead if the entity changed\n" +
			"since you last saw that version. Custom fields not named are kept.",
		Example: `  archivist entity update 0192... --field priority=low
  archivist entity update 0192... --unset estimate --version 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := customFields(f.fieldsJSON, f.fields)
			if err != nil {
				return err
			}
			return a.withArchive(func(archive types.Archive) error {
				current, err := archive.GetEntity(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				u := types.EntityUpdate{
					ID:               current.ID,
					Version:          current.Version,
					Title:            current.Title,
					Body:             current.Body,
					CustomFieldsData: make(map[string]any, len(current.CustomFieldsData)+len(changes)),
				}
				if cmd.Flags().Changed("version") {
					u.Version = version
				}
				if cmd.Flags().Changed("title") {
					u.Title = f.title
				}
				if cmd.Flags().Changed("body") {
					u.Body = f.body
				}
				for k, v := range current.CustomFieldsData {
					u.CustomFieldsData[k] = v
				}
				// A changed key replaces any stored key naming the same field.
				if err := unsetFields(u.CustomFieldsData, keysOf(changes)); err != nil {
					return err
				}
				for k, v := range changes {
					u.CustomFieldsData[k] = v
				}
				if err := unsetFields(u.CustomFieldsData, unset); err != nil {
					return err
				}

				e, err := archive.UpdateEntity(cmd.Context(), u)
				if err != nil {
					return err
				}
				return a.printEntityResult(cmd, "Updated", e)
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringArrayVar(&unset, "unset", nil, "custom field to remove (repeatable)")
	cmd.Flags().Int64Var(&version, "version", 0, "expected current version")
	return cmd
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func newEntityDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchive(func(archive types.Archive) error {
				if err := archive.DeleteEntity(cmd.Context(), args[0]); err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}
