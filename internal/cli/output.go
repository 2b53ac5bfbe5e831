package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rfowler1994/project-archivist/pkg/types"
)

const displayTime = time.RFC3339

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return systemError(fmt.Errorf("encode JSON: %w", err))
	}
	return nil
}

func printEntityTypes(w io.Writer, defs []*types.EntityTypeDefinition) {
	if len(defs) == 0 {
		fmt.Fprintln(w, "No entity types defined")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION\tCREATED")
	for _, d := range defs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, d.Description, d.CreatedAt.Format(displayTime))
	}
	tw.Flush()
}

func printFields(w io.Writer, fields []*types.FieldDefinition) {
	if len(fields) == 0 {
		fmt.Fprintln(w, "No fields defined")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tNAME\tTYPE\tREQUIRED\tCONFIG")
	for _, f := range fields {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n", f.DisplayOrder, f.FieldName, f.FieldType, f.IsRequired, describeConfig(f.Configuration))
	}
	tw.Flush()
}

func describeConfig(c types.FieldConfig) string {
	switch c := c.(type) {
	case types.DateConfig:
		if c.IncludeTime {
			return "includeTime"
		}
	case types.SingleSelectConfig:
		return "options=" + strings.Join(c.Options, ",")
	case types.MultiSelectConfig:
		return "options=" + strings.Join(c.Options, ",")
	case types.EntityReferenceConfig:
		return "targetType=" + c.TargetType
	case types.EntityReferenceListConfig:
		return "targetType=" + c.TargetType
	}
	return "-"
}

func printEntityType(w io.Writer, def *types.EntityTypeDefinition, fields []*types.FieldDefinition) {
	fmt.Fprintf(w, "Name:        %s\n", def.Name)
	fmt.Fprintf(w, "ID:          %s\n", def.ID)
	fmt.Fprintf(w, "Description: %s\n", def.Description)
	fmt.Fprintf(w, "Created:     %s\n", def.CreatedAt.Format(displayTime))
	fmt.Fprintln(w)
	printFields(w, fields)
}

func printEntity(w io.Writer, e *types.TypedEntity) {
	fmt.Fprintf(w, "ID:      %s\n", e.ID)
	fmt.Fprintf(w, "Type:    %s\n", e.EntityTypeName)
	fmt.Fprintf(w, "Title:   %s\n", e.Title)
	fmt.Fprintf(w, "Version: %d\n", e.Version)
	fmt.Fprintf(w, "Created: %s\n", e.CreatedAt.Format(displayTime))
	fmt.Fprintf(w, "Updated: %s\n", e.UpdatedAt.Format(displayTime))
	if e.Provenance != nil && !e.Provenance.IsZero() {
		fmt.Fprintf(w, "Source:  %s %s\n", e.Provenance.SourceEntityType, e.Provenance.SourceEntityID)
	}
	if len(e.CustomFieldsData) > 0 {
		fmt.Fprintln(w, "Fields:")
		keys := make([]string, 0, len(e.CustomFieldsData))
		for k := range e.CustomFieldsData {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %s\n", k, formatValue(e.CustomFieldsData[k]))
		}
	}
	if e.Body != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, e.Body)
	}
}

func printEntities(w io.Writer, entities []*types.TypedEntity) {
	if len(entities) == 0 {
		fmt.Fprintln(w, "No entities found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tVERSION\tTITLE")
	for _, e := range entities {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.ID, e.EntityTypeName, e.Version, e.Title)
	}
	tw.Flush()
}

// formatValue renders a stored custom-field value on one line. Lists are
// comma separated; everything else uses its JSON form unquoted.
func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = formatValue(e)
		}
		return strings.Join(parts, ", ")
	case nil:
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
