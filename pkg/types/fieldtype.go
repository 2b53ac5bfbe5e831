package types

import (
	"fmt"
	"strings"
)

// FieldType is the declared type of a custom field.
type FieldType string

// Field types. The set is closed; adding one is a code change because each
// type carries its own configuration shape and value rules.
const (
	FieldTypeText                FieldType = "text"
	FieldTypeLongText            FieldType = "long_text"
	FieldTypeNumber              FieldType = "number"
	FieldTypeBoolean             FieldType = "boolean"
	FieldTypeDate                FieldType = "date"
	FieldTypeSingleSelect        FieldType = "single_select"
	FieldTypeMultiSelect         FieldType = "multi_select"
	FieldTypeEntityReference     FieldType = "entity_reference"
	FieldTypeEntityReferenceList FieldType = "entity_reference_list"
)

// fieldTypes lists every field type in catalog order.
var fieldTypes = []FieldType{
	FieldTypeText,
	FieldTypeLongText,
	FieldTypeNumber,
	FieldTypeBoolean,
	FieldTypeDate,
	FieldTypeSingleSelect,
	FieldTypeMultiSelect,
	FieldTypeEntityReference,
	FieldTypeEntityReferenceList,
}

// FieldTypes returns a copy of the catalog in declaration order.
func FieldTypes() []FieldType {
	out := make([]FieldType, len(fieldTypes))
	copy(out, fieldTypes)
	return out
}

// Valid reports whether ft is one of the catalog's field types.
func (ft FieldType) Valid() bool {
	for _, known := range fieldTypes {
		if ft == known {
			return true
		}
	}
	return false
}

// IsSelect reports whether values of ft are drawn from a configured option set.
func (ft FieldType) IsSelect() bool {
	return ft == FieldTypeSingleSelect || ft == FieldTypeMultiSelect
}

// IsReference reports whether values of ft point at other typed entities.
func (ft FieldType) IsReference() bool {
	return ft == FieldTypeEntityReference || ft == FieldTypeEntityReferenceList
}

// String returns the wire name.
func (ft FieldType) String() string {
	return string(ft)
}

// ParseFieldType resolves a field type from its wire name ("single_select")
// or its display name ("SingleSelect"). Matching ignores case and
// underscores. Returns ErrInvalidFieldType for anything else.
func ParseFieldType(s string) (FieldType, error) {
	want := squashTypeName(s)
	for _, ft := range fieldTypes {
		if squashTypeName(string(ft)) == want {
			return ft, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFieldType, s)
}

func squashTypeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}
