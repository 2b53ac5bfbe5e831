package sqlite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rfowler1994/project-archivist/pkg/types"
)

// timeLayout is fixed width and always UTC, so stored timestamps sort
// lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Hand-edited files may carry plain RFC 3339.
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}

// JSON record structures that mirror the JSONL file format. Each file holds
// one record per line; column names match the SQLite tables.

// entityTypeJSON represents an entity type in entity_types.jsonl.
type entityTypeJSON struct {
	TypeID      string `json:"type_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// fieldDefinitionJSON represents a field definition in
// field_definitions.jsonl. The field key is derived, not stored.
type fieldDefinitionJSON struct {
	FieldID        string          `json:"field_id"`
	EntityTypeName string          `json:"entity_type_name"`
	FieldName      string          `json:"field_name"`
	FieldType      string          `json:"field_type"`
	Configuration  json.RawMessage `json:"configuration"`
	DisplayOrder   int             `json:"display_order"`
	IsRequired     bool            `json:"is_required"`
	CreatedAt      string          `json:"created_at"`
}

// typedEntityJSON represents an entity in typed_entities.jsonl.
type typedEntityJSON struct {
	EntityID         string          `json:"entity_id"`
	EntityTypeName   string          `json:"entity_type_name"`
	Title            string          `json:"title"`
	Body             string          `json:"body"`
	CustomFields     json.RawMessage `json:"custom_fields"`
	SourceEntityID   *string         `json:"source_entity_id"`
	SourceEntityType *string         `json:"source_entity_type"`
	Version          int64           `json:"version"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
}

// decodeObject decodes a JSON object keeping numbers as json.Number so
// decimal values survive without float rounding.
func decodeObject(data []byte) (map[string]any, error) {
	out := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// encodeObject encodes m, writing {} for a nil map.
func encodeObject(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseConfiguration turns a stored configuration column into a typed
// FieldConfig.
func parseConfiguration(ft types.FieldType, data []byte) (types.FieldConfig, error) {
	raw, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	return types.ParseFieldConfig(ft, raw)
}
