package cli

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/rfowler1994/project-archivist/pkg/types"
)

// parseAssignments turns repeated key=value flags into custom-field data.
// A value that parses as a JSON literal (number, boolean, null, list,
// object, quoted string) is used as that literal; anything else is taken as
// a plain string. Later assignments of the same key win.
func parseAssignments(assignments []string) (map[string]any, error) {
	out := make(map[string]any, len(assignments))
	for _, a := range assignments {
		key, raw, ok := strings.Cut(a, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, usageErrorf("invalid --field %q: want key=value", a)
		}
		out[key] = parseLiteral(raw)
	}
	return out, nil
}

func parseLiteral(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	// Trailing input means raw was not a single literal ("12 monkeys").
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return raw
	}
	return v
}

// parseFieldsJSON decodes a JSON object of custom-field data. An empty
// string yields an empty map.
func parseFieldsJSON(s string) (map[string]any, error) {
	out := map[string]any{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, usageErrorf("invalid --fields-json: %v", err)
	}
	if out == nil {
		return nil, usageErrorf("invalid --fields-json: want a JSON object")
	}
	return out, nil
}

// customFields merges --fields-json with --field assignments, the latter
// taking precedence.
func customFields(fieldsJSON string, assignments []string) (map[string]any, error) {
	data, err := parseFieldsJSON(fieldsJSON)
	if err != nil {
		return nil, err
	}
	overrides, err := parseAssignments(assignments)
	if err != nil {
		return nil, err
	}
	for k, v := range overrides {
		data[k] = v
	}
	return data, nil
}

// unsetFields removes keys from data, matching them as the store matches
// field names.
func unsetFields(data map[string]any, keys []string) error {
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			return usageErrorf("invalid --unset: blank key")
		}
		for k := range data {
			if types.FieldKey(k) == types.FieldKey(key) {
				delete(data, k)
			}
		}
	}
	return nil
}
