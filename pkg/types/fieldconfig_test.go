package types

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Configuration round-trip: Map then Parse yields an equal config ---

func TestFieldConfigRoundTrip(t *testing.T) {
	configs := []FieldConfig{
		TextConfig{},
		LongTextConfig{},
		NumberConfig{},
		BooleanConfig{},
		DateConfig{},
		DateConfig{IncludeTime: true},
		SingleSelectConfig{Options: []string{"low", "medium", "high"}},
		MultiSelectConfig{Options: []string{"red", "green"}},
		EntityReferenceConfig{TargetType: "Project"},
		EntityReferenceListConfig{TargetType: "Person"},
	}

	for _, c := range configs {
		t.Run(string(c.FieldType()), func(t *testing.T) {
			got, err := ParseFieldConfig(c.FieldType(), c.Map())
			require.NoError(t, err)
			if diff := cmp.Diff(c, got); diff != "" {
				t.Errorf("direct round-trip mismatch (-want +got):\n%s", diff)
			}

			// Through JSON, lists come back as []any.
			data, err := json.Marshal(c.Map())
			require.NoError(t, err)
			var raw map[string]any
			require.NoError(t, json.Unmarshal(data, &raw))
			got, err = ParseFieldConfig(c.FieldType(), raw)
			require.NoError(t, err)
			if diff := cmp.Diff(c, got); diff != "" {
				t.Errorf("JSON round-trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFieldConfig_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		ft      FieldType
		raw     map[string]any
		wantErr error
	}{
		{"unknown field type", FieldType("currency"), nil, ErrInvalidFieldType},
		{"text with options", FieldTypeText, map[string]any{"options": []string{"a"}}, ErrInvalidConfiguration},
		{"date includeTime not bool", FieldTypeDate, map[string]any{"includeTime": "yes"}, ErrInvalidConfiguration},
		{"select without options", FieldTypeSingleSelect, nil, ErrInvalidConfiguration},
		{"select with empty options", FieldTypeSingleSelect, map[string]any{"options": []any{}}, ErrInvalidConfiguration},
		{"select with duplicate options", FieldTypeMultiSelect, map[string]any{"options": []any{"a", "a"}}, ErrInvalidConfiguration},
		{"select with blank option", FieldTypeMultiSelect, map[string]any{"options": []any{"a", " "}}, ErrInvalidConfiguration},
		{"select with non-string option", FieldTypeSingleSelect, map[string]any{"options": []any{"a", 1.0}}, ErrInvalidConfiguration},
		{"reference without target", FieldTypeEntityReference, map[string]any{}, ErrInvalidConfiguration},
		{"reference with blank target", FieldTypeEntityReferenceList, map[string]any{"targetType": "  "}, ErrInvalidConfiguration},
		{"reference with numeric target", FieldTypeEntityReference, map[string]any{"targetType": 3.0}, ErrInvalidConfiguration},
		{"reference with extra key", FieldTypeEntityReference, map[string]any{"targetType": "Project", "options": []any{"a"}}, ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFieldConfig(tt.ft, tt.raw)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseFieldConfig_NormalizesTarget(t *testing.T) {
	c, err := ParseFieldConfig(FieldTypeEntityReference, map[string]any{"targetType": "  Project "})
	require.NoError(t, err)
	target, ok := ConfigTargetType(c)
	require.True(t, ok)
	assert.Equal(t, "Project", target)

	_, ok = ConfigTargetType(TextConfig{})
	assert.False(t, ok)
}

func TestFieldConfigMapIsACopy(t *testing.T) {
	c := SingleSelectConfig{Options: []string{"a", "b"}}
	m := c.Map()
	m[ConfigKeyOptions].([]string)[0] = "z"
	assert.Equal(t, []string{"a", "b"}, c.Options)
}
