package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rfowler1994/project-archivist/pkg/types"
)

func newFieldCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "field",
		Short: "Manage the custom fields of an entity type",
	}
	cmd.AddCommand(
		newFieldDefineCmd(a),
		newFieldListCmd(a),
		newFieldUpdateCmd(a),
		newFieldDeleteCmd(a),
	)
	return cmd
}

// fieldFlags holds the flags shared by "field define" and "field update".
type fieldFlags struct {
	fieldType   string
	options     []string
	targetType  string
	includeTime bool
	required    bool
	order       int
	configFile  string
}

func (f *fieldFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.fieldType, "type", "t", "", "field type: text, long_text, number, boolean, date, single_select, multi_select, entity_reference, entity_reference_list")
	cmd.Flags().StringArrayVar(&f.options, "option", nil, "select option (repeatable, in display order)")
	cmd.Flags().StringVar(&f.targetType, "target-type", "", "entity type referenced by a reference field")
	cmd.Flags().BoolVar(&f.includeTime, "include-time", false, "store date fields as second-precision UTC timestamps")
	cmd.Flags().BoolVar(&f.required, "required", false, "require a value on every write")
	cmd.Flags().IntVar(&f.order, "order", 0, "display order")
	cmd.Flags().StringVar(&f.configFile, "config-file", "", "YAML file with the field configuration (options, targetType, includeTime)")
}

// configuration overlays the config file and then any configuration flags
// the user set onto base.
func (f *fieldFlags) configuration(cmd *cobra.Command, base map[string]any) (map[string]any, error) {
	cfg := make(map[string]any, len(base))
	for k, v := range base {
		cfg[k] = v
	}
	if f.configFile != "" {
		fromFile, err := readConfigFile(f.configFile)
		if err != nil {
			return nil, err
		}
		for k, v := range fromFile {
			cfg[k] = v
		}
	}
	if cmd.Flags().Changed("option") {
		cfg[types.ConfigKeyOptions] = f.options
	}
	if cmd.Flags().Changed("target-type") {
		cfg[types.ConfigKeyTargetType] = f.targetType
	}
	if cmd.Flags().Changed("include-time") {
		cfg[types.ConfigKeyIncludeTime] = f.includeTime
	}
	return cfg, nil
}

// configFlagsChanged reports whether any flag that feeds the configuration
// was given.
func (f *fieldFlags) configFlagsChanged(cmd *cobra.Command) bool {
	for _, name := range []string{"option", "target-type", "include-time", "config-file"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// readConfigFile decodes a YAML mapping of configuration keys.
func readConfigFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, userError{fmt.Errorf("read config file: %w", err)}
	}
	var cfg map[string]any
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrInvalidConfiguration, path, err)
	}
	return cfg, nil
}

func newFieldDefineCmd(a *app) *cobra.Command {
	var f fieldFlags
	cmd := &cobra.Command{
		Use:   "define <entity-type> <field-name>",
		Short: "Add a custom field to an entity type",
		Example: `  archivist field define task priority --type single_select --option low --option medium --option high --required
  archivist field define task due --type date
  archivist field define task blocks --type entity_reference_list --target-type task
  archivist field define task status --type single_select --config-file status.yaml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.fieldType == "" {
				return usageErrorf("--type is required")
			}
			ft, err := types.ParseFieldType(f.fieldType)
			if err != nil {
				return err
			}
			cfg, err := f.configuration(cmd, nil)
			if err != nil {
				return err
			}
			spec := types.FieldSpec{
				EntityTypeName: args[0],
				FieldName:      args[1],
				FieldType:      ft,
				Configuration:  cfg,
				DisplayOrder:   f.order,
				IsRequired:     f.required,
			}
			return a.withArchive(func(archive types.Archive) error {
				fd, err := archive.DefineField(cmd.Context(), spec)
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), fd)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Defined field %s.%s (%s)\n", fd.EntityTypeName, fd.FieldName, fd.FieldType)
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newFieldListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <entity-type>",
		Short: "List the fields of an entity type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchive(func(archive types.Archive) error {
				fields, err := archive.ListFields(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), fields)
				}
				printFields(cmd.OutOrStdout(), fields)
				return nil
			})
		},
	}
}

func newFieldUpdateCmd(a *app) *cobra.Command {
	var f fieldFlags
	cmd := &cobra.Command{
		Use:   "update <entity-type> <field-name>",
		Short: "Change a field's type, configuration, order, or required flag",
		Long: "Update changes only what the given flags name. Changing --type starts the\n" +
			"configuration from empty; otherwise configuration flags are merged over the\n" +
			"current configuration. Stored entity values are not rewritten.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchive(func(archive types.Archive) error {
				current, err := findField(cmd, archive, args[0], args[1])
				if err != nil {
					return err
				}

				spec := types.FieldSpec{
					EntityTypeName: current.EntityTypeName,
					FieldName:      current.FieldName,
					FieldType:      current.FieldType,
					DisplayOrder:   current.DisplayOrder,
					IsRequired:     current.IsRequired,
				}
				base := current.Configuration.Map()
				if cmd.Flags().Changed("type") {
					ft, err := types.ParseFieldType(f.fieldType)
					if err != nil {
						return err
					}
					if ft != current.FieldType {
						base = nil
					}
					spec.FieldType = ft
				}
				if base == nil || f.configFlagsChanged(cmd) {
					if spec.Configuration, err = f.configuration(cmd, base); err != nil {
						return err
					}
				} else {
					spec.Configuration = base
				}
				if cmd.Flags().Changed("order") {
					spec.DisplayOrder = f.order
				}
				if cmd.Flags().Changed("required") {
					spec.IsRequired = f.required
				}

				fd, err := archive.UpdateField(cmd.Context(), spec)
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), fd)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated field %s.%s (%s)\n", fd.EntityTypeName, fd.FieldName, fd.FieldType)
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

// findField looks a field up by name, ignoring case.
func findField(cmd *cobra.Command, archive types.Archive, typeName, fieldName string) (*types.FieldDefinition, error) {
	fields, err := archive.ListFields(cmd.Context(), typeName)
	if err != nil {
		return nil, err
	}
	key := types.FieldKey(fieldName)
	for _, fd := range fields {
		if types.FieldKey(fd.FieldName) == key {
			return fd, nil
		}
	}
	return nil, fmt.Errorf("%w: field %q on %q", types.ErrNotFound, types.NormalizeName(fieldName), types.NormalizeName(typeName))
}

func newFieldDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entity-type> <field-name>",
		Short: "Remove a field definition; stored values stay in place",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArchive(func(archive types.Archive) error {
				if err := archive.DeleteField(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				name := types.NormalizeName(args[0]) + "." + types.NormalizeName(args[1])
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": name})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted field %s\n", name)
				return nil
			})
		},
	}
}
