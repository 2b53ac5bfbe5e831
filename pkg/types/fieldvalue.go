package types

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Bounds on Number values. The canonical form spells out every digit, so
// both the exponent and the coefficient length are capped.
const (
	MaxNumberExponent = 1000
	MaxNumberDigits   = 1000
)

// Canonical layouts for Date values.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = time.RFC3339
)

// FieldValue is a custom-field value in its canonical in-memory shape. Each
// FieldType has exactly one value type; the unexported marker keeps the set
// closed.
type FieldValue interface {
	// FieldType returns the field type this value belongs to.
	FieldType() FieldType

	// Raw returns the value in its storage shape: string, bool, json.Number,
	// or []string.
	Raw() any

	fieldValue()
}

// TextValue is a Text field value.
type TextValue string

// LongTextValue is a LongText (markdown) field value.
type LongTextValue string

// NumberValue is a finite signed decimal.
type NumberValue struct {
	Decimal decimal.Decimal
}

// BooleanValue is a Boolean field value.
type BooleanValue bool

// DateValue is a calendar date (UTC midnight) or, when IncludeTime is set, a
// UTC instant truncated to the second.
type DateValue struct {
	Time        time.Time
	IncludeTime bool
}

// SingleSelectValue is the one option chosen for a SingleSelect field.
type SingleSelectValue string

// MultiSelectValue is a duplicate-free option set in configured option order.
type MultiSelectValue []string

// EntityReferenceValue is the ID of one referenced typed entity.
type EntityReferenceValue string

// EntityReferenceListValue is an ordered list of referenced entity IDs.
type EntityReferenceListValue []string

func (TextValue) FieldType() FieldType                { return FieldTypeText }
func (LongTextValue) FieldType() FieldType            { return FieldTypeLongText }
func (NumberValue) FieldType() FieldType              { return FieldTypeNumber }
func (BooleanValue) FieldType() FieldType             { return FieldTypeBoolean }
func (DateValue) FieldType() FieldType                { return FieldTypeDate }
func (SingleSelectValue) FieldType() FieldType        { return FieldTypeSingleSelect }
func (MultiSelectValue) FieldType() FieldType         { return FieldTypeMultiSelect }
func (EntityReferenceValue) FieldType() FieldType     { return FieldTypeEntityReference }
func (EntityReferenceListValue) FieldType() FieldType { return FieldTypeEntityReferenceList }

func (TextValue) fieldValue()                {}
func (LongTextValue) fieldValue()            {}
func (NumberValue) fieldValue()              {}
func (BooleanValue) fieldValue()             {}
func (DateValue) fieldValue()                {}
func (SingleSelectValue) fieldValue()        {}
func (MultiSelectValue) fieldValue()         {}
func (EntityReferenceValue) fieldValue()     {}
func (EntityReferenceListValue) fieldValue() {}

func (v TextValue) Raw() any         { return string(v) }
func (v LongTextValue) Raw() any     { return string(v) }
func (v NumberValue) Raw() any       { return json.Number(v.Decimal.String()) }
func (v BooleanValue) Raw() any      { return bool(v) }
func (v SingleSelectValue) Raw() any { return string(v) }

func (v DateValue) Raw() any {
	if v.IncludeTime {
		return v.Time.UTC().Format(DateTimeLayout)
	}
	return v.Time.Format(DateLayout)
}

func (v MultiSelectValue) Raw() any         { return append([]string{}, v...) }
func (v EntityReferenceValue) Raw() any     { return string(v) }
func (v EntityReferenceListValue) Raw() any { return append([]string{}, v...) }

// Values maps field names to canonical values.
type Values map[string]FieldValue

// Raw converts every value to its storage shape.
func (vs Values) Raw() map[string]any {
	out := make(map[string]any, len(vs))
	for k, v := range vs {
		out[k] = v.Raw()
	}
	return out
}

// DecodeValue converts an untyped value into the canonical value for field.
// It checks shape only; option membership and reference resolution are the
// validation engine's job. Errors wrap ErrTypeMismatch.
//
// MultiSelect values come back with duplicates collapsed and ordered by the
// field's configured options; EntityReferenceList values keep their order and
// duplicates so they can be reported.
func DecodeValue(field *FieldDefinition, raw any) (FieldValue, error) {
	switch field.FieldType {
	case FieldTypeText:
		s, err := decodeString(raw)
		return TextValue(s), err
	case FieldTypeLongText:
		s, err := decodeString(raw)
		return LongTextValue(s), err
	case FieldTypeNumber:
		d, err := decodeNumber(raw)
		if err != nil {
			return nil, err
		}
		if err := checkNumberBounds(d); err != nil {
			return nil, err
		}
		return NumberValue{Decimal: d}, nil
	case FieldTypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, mismatch("boolean", raw)
		}
		return BooleanValue(b), nil
	case FieldTypeDate:
		includeTime := false
		if dc, ok := field.Configuration.(DateConfig); ok {
			includeTime = dc.IncludeTime
		}
		t, err := decodeDate(raw, includeTime)
		if err != nil {
			return nil, err
		}
		return DateValue{Time: t, IncludeTime: includeTime}, nil
	case FieldTypeSingleSelect:
		s, err := decodeString(raw)
		return SingleSelectValue(s), err
	case FieldTypeMultiSelect:
		list, err := decodeStringList(raw, "list of options")
		if err != nil {
			return nil, err
		}
		return MultiSelectValue(orderByOptions(list, ConfigOptions(field.Configuration))), nil
	case FieldTypeEntityReference:
		s, err := decodeString(raw)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%w: entity ID must not be blank", ErrTypeMismatch)
		}
		return EntityReferenceValue(s), nil
	case FieldTypeEntityReferenceList:
		list, err := decodeStringList(raw, "list of entity IDs")
		if err != nil {
			return nil, err
		}
		for _, id := range list {
			if strings.TrimSpace(id) == "" {
				return nil, fmt.Errorf("%w: entity ID must not be blank", ErrTypeMismatch)
			}
		}
		return EntityReferenceListValue(list), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFieldType, field.FieldType)
	}
}

func mismatch(want string, got any) error {
	return fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, want, describe(got))
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float32, float64, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, decimal.Decimal:
		return "number"
	case []any, []string:
		return "list"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

func decodeString(raw any) (string, error) {
	// json.Number is a string kind but never a text value.
	if _, ok := raw.(json.Number); ok {
		return "", mismatch("string", raw)
	}
	s, ok := raw.(string)
	if !ok {
		return "", mismatch("string", raw)
	}
	return s, nil
}

func decodeNumber(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("%w: %q is not a decimal number", ErrTypeMismatch, v.String())
		}
		return d, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Decimal{}, fmt.Errorf("%w: number must be finite", ErrTypeMismatch)
		}
		return decimal.NewFromFloat(v), nil
	case float32:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Decimal{}, fmt.Errorf("%w: number must be finite", ErrTypeMismatch)
		}
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int8:
		return decimal.NewFromInt(int64(v)), nil
	case int16:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case uint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(v)), 0), nil
	case uint8:
		return decimal.NewFromInt(int64(v)), nil
	case uint16:
		return decimal.NewFromInt(int64(v)), nil
	case uint32:
		return decimal.NewFromInt(int64(v)), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0), nil
	}
	return decimal.Decimal{}, mismatch("number", raw)
}

func checkNumberBounds(d decimal.Decimal) error {
	if exp := d.Exponent(); exp > MaxNumberExponent || exp < -MaxNumberExponent {
		return fmt.Errorf("%w: number exponent %d is outside ±%d", ErrTypeMismatch, exp, MaxNumberExponent)
	}
	if n := d.NumDigits(); n > MaxNumberDigits {
		return fmt.Errorf("%w: number has %d digits, more than %d", ErrTypeMismatch, n, MaxNumberDigits)
	}
	return nil
}

func decodeDate(raw any, includeTime bool) (time.Time, error) {
	var t time.Time
	dateOnly := false
	switch v := raw.(type) {
	case time.Time:
		t = v
	case string:
		s := strings.TrimSpace(v)
		if parsed, err := time.Parse(DateLayout, s); err == nil {
			t, dateOnly = parsed, true
		} else if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
			t = parsed
		} else {
			return time.Time{}, fmt.Errorf("%w: %q is not a date (%s) or RFC 3339 timestamp", ErrTypeMismatch, v, DateLayout)
		}
	default:
		return time.Time{}, mismatch("date string", raw)
	}

	if includeTime {
		return t.UTC().Truncate(time.Second), nil
	}
	if dateOnly {
		return t, nil
	}
	// A timestamp's calendar date is taken in its own offset.
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func decodeStringList(raw any, want string) ([]string, error) {
	list, ok := stringList(raw)
	if !ok {
		return nil, mismatch(want, raw)
	}
	return list, nil
}

// orderByOptions collapses duplicates and orders values by their position in
// options. Values outside options sort after the known ones, alphabetically.
func orderByOptions(values, options []string) []string {
	rank := make(map[string]int, len(options))
	for i, o := range options {
		rank[o] = i
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i]]
		rj, jok := rank[out[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}
