package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssignments(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  map[string]any
	}{
		{"plain string", []string{"priority=high"}, map[string]any{"priority": "high"}},
		{"number literal", []string{"estimate=2.50"}, map[string]any{"estimate": json.Number("2.50")}},
		{"boolean literal", []string{"done=true"}, map[string]any{"done": true}},
		{"quoted string keeps digits as text", []string{`code="007"`}, map[string]any{"code": "007"}},
		{"list literal", []string{`tags=["a","b"]`}, map[string]any{"tags": []any{"a", "b"}}},
		{"trailing text stays a string", []string{"note=12 monkeys"}, map[string]any{"note": "12 monkeys"}},
		{"value may contain equals", []string{"expr=a=b"}, map[string]any{"expr": "a=b"}},
		{"empty value", []string{"note="}, map[string]any{"note": ""}},
		{"null", []string{"note=null"}, map[string]any{"note": nil}},
		{"last wins", []string{"p=low", "p=high"}, map[string]any{"p": "high"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAssignments(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAssignments_Invalid(t *testing.T) {
	for _, input := range []string{"priority", "=high", "  =x"} {
		_, err := parseAssignments([]string{input})
		assert.Error(t, err, input)
		assert.Equal(t, exitUserError, exitCode(err), input)
	}
}

func TestCustomFields(t *testing.T) {
	got, err := customFields(`{"priority":"low","estimate":3}`, []string{"priority=high"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"priority": "high", "estimate": json.Number("3")}, got)

	_, err = customFields(`[1,2]`, nil)
	assert.Error(t, err)
	_, err = customFields(`null`, nil)
	assert.Error(t, err)

	got, err = customFields("", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUnsetFields(t *testing.T) {
	data := map[string]any{"Priority": "high", "estimate": 3}
	require.NoError(t, unsetFields(data, []string{"PRIORITY"}))
	assert.Equal(t, map[string]any{"estimate": 3}, data)

	assert.Error(t, unsetFields(data, []string{" "}))
}
