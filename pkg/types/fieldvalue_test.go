package types

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func field(ft FieldType, cfg FieldConfig) *FieldDefinition {
	return &FieldDefinition{FieldName: "f", FieldType: ft, Configuration: cfg}
}

func TestDecodeValue_Accepts(t *testing.T) {
	selectCfg := MultiSelectConfig{Options: []string{"red", "green", "blue"}}

	tests := []struct {
		name    string
		field   *FieldDefinition
		raw     any
		wantRaw any
	}{
		{"text", field(FieldTypeText, TextConfig{}), "hello", "hello"},
		{"empty long text", field(FieldTypeLongText, LongTextConfig{}), "", ""},
		{"json number", field(FieldTypeNumber, NumberConfig{}), json.Number("1.50"), json.Number("1.5")},
		{"float", field(FieldTypeNumber, NumberConfig{}), 2.25, json.Number("2.25")},
		{"negative int", field(FieldTypeNumber, NumberConfig{}), -7, json.Number("-7")},
		{"exponent at bound", field(FieldTypeNumber, NumberConfig{}), json.Number("1e-1000"), json.Number("0." + strings.Repeat("0", 999) + "1")},
		{"large uint", field(FieldTypeNumber, NumberConfig{}), uint64(math.MaxUint64), json.Number("18446744073709551615")},
		{"boolean", field(FieldTypeBoolean, BooleanConfig{}), true, true},
		{"calendar date", field(FieldTypeDate, DateConfig{}), "2024-03-01", "2024-03-01"},
		{"timestamp truncated to its date", field(FieldTypeDate, DateConfig{}), "2024-03-01T23:30:00-05:00", "2024-03-01"},
		{"instant in UTC", field(FieldTypeDate, DateConfig{IncludeTime: true}), "2024-03-01T10:20:30.5+02:00", "2024-03-01T08:20:30Z"},
		{"date only with includeTime", field(FieldTypeDate, DateConfig{IncludeTime: true}), "2024-03-01", "2024-03-01T00:00:00Z"},
		{"time.Time", field(FieldTypeDate, DateConfig{}), time.Date(2023, 12, 31, 18, 0, 0, 0, time.UTC), "2023-12-31"},
		{"single select", field(FieldTypeSingleSelect, SingleSelectConfig{Options: []string{"low"}}), "low", "low"},
		{"multi select ordered by options", field(FieldTypeMultiSelect, selectCfg), []any{"blue", "red", "blue"}, []string{"red", "blue"}},
		{"multi select unknowns last", field(FieldTypeMultiSelect, selectCfg), []string{"zeta", "green", "alpha"}, []string{"green", "alpha", "zeta"}},
		{"reference", field(FieldTypeEntityReference, EntityReferenceConfig{TargetType: "P"}), "id-1", "id-1"},
		{"reference list keeps duplicates", field(FieldTypeEntityReferenceList, EntityReferenceListConfig{TargetType: "P"}), []any{"b", "a", "b"}, []string{"b", "a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := DecodeValue(tt.field, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.field.FieldType, v.FieldType())
			assert.Equal(t, tt.wantRaw, v.Raw())
		})
	}
}

func TestDecodeValue_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		field *FieldDefinition
		raw   any
	}{
		{"number as string", field(FieldTypeNumber, NumberConfig{}), "3"},
		{"NaN", field(FieldTypeNumber, NumberConfig{}), math.NaN()},
		{"infinity", field(FieldTypeNumber, NumberConfig{}), math.Inf(1)},
		{"bad json number", field(FieldTypeNumber, NumberConfig{}), json.Number("1e")},
		{"huge exponent", field(FieldTypeNumber, NumberConfig{}), json.Number("1e200000000")},
		{"tiny exponent", field(FieldTypeNumber, NumberConfig{}), json.Number("1e-200000000")},
		{"exponent past int32", field(FieldTypeNumber, NumberConfig{}), json.Number("1e99999999999")},
		{"too many digits", field(FieldTypeNumber, NumberConfig{}), json.Number(strings.Repeat("9", MaxNumberDigits+1))},
		{"huge decimal", field(FieldTypeNumber, NumberConfig{}), decimal.New(1, 5000)},
		{"text as number", field(FieldTypeText, TextConfig{}), 12.0},
		{"text as json number", field(FieldTypeText, TextConfig{}), json.Number("12")},
		{"boolean as string", field(FieldTypeBoolean, BooleanConfig{}), "true"},
		{"unparsable date", field(FieldTypeDate, DateConfig{}), "yesterday"},
		{"date as number", field(FieldTypeDate, DateConfig{}), 20240301.0},
		{"single select as list", field(FieldTypeSingleSelect, SingleSelectConfig{Options: []string{"a"}}), []any{"a"}},
		{"multi select with number", field(FieldTypeMultiSelect, MultiSelectConfig{Options: []string{"a"}}), []any{"a", 1.0}},
		{"multi select as string", field(FieldTypeMultiSelect, MultiSelectConfig{Options: []string{"a"}}), "a"},
		{"blank reference", field(FieldTypeEntityReference, EntityReferenceConfig{TargetType: "P"}), "  "},
		{"reference list with blank", field(FieldTypeEntityReferenceList, EntityReferenceListConfig{TargetType: "P"}), []any{"a", ""}},
		{"object", field(FieldTypeText, TextConfig{}), map[string]any{"a": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeValue(tt.field, tt.raw)
			assert.ErrorIs(t, err, ErrTypeMismatch)
		})
	}
}

func TestValuesRaw(t *testing.T) {
	vs := Values{
		"Priority": SingleSelectValue("high"),
		"Tags":     MultiSelectValue{"a", "b"},
	}
	raw := vs.Raw()
	assert.Equal(t, map[string]any{"Priority": "high", "Tags": []string{"a", "b"}}, raw)

	// Raw lists are copies.
	raw["Tags"].([]string)[0] = "z"
	assert.Equal(t, MultiSelectValue{"a", "b"}, vs["Tags"])
}
