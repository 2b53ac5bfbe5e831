package types

import (
	"fmt"
	"sort"
	"strings"
)

// Configuration keys accepted by ParseFieldConfig.
const (
	ConfigKeyOptions     = "options"
	ConfigKeyTargetType  = "targetType"
	ConfigKeyIncludeTime = "includeTime"
)

// FieldConfig is the type-specific configuration of a field definition.
// Each FieldType has exactly one config struct; the unexported marker keeps
// the set closed.
type FieldConfig interface {
	// FieldType returns the field type this configuration belongs to.
	FieldType() FieldType

	// Map returns the configuration as a fresh option-name to value map,
	// suitable for JSON encoding. ParseFieldConfig(c.FieldType(), c.Map())
	// yields a config equal to c.
	Map() map[string]any

	fieldConfig()
}

// TextConfig configures a Text field. It has no options.
type TextConfig struct{}

// LongTextConfig configures a LongText field. It has no options.
type LongTextConfig struct{}

// NumberConfig configures a Number field. It has no options.
type NumberConfig struct{}

// BooleanConfig configures a Boolean field. It has no options.
type BooleanConfig struct{}

// DateConfig configures a Date field. IncludeTime selects second precision
// instants instead of calendar dates.
type DateConfig struct {
	IncludeTime bool
}

// SingleSelectConfig configures a SingleSelect field with its ordered options.
type SingleSelectConfig struct {
	Options []string
}

// MultiSelectConfig configures a MultiSelect field with its ordered options.
type MultiSelectConfig struct {
	Options []string
}

// EntityReferenceConfig configures an EntityReference field. TargetType names
// the entity type every referenced entity must have.
type EntityReferenceConfig struct {
	TargetType string
}

// EntityReferenceListConfig configures an EntityReferenceList field.
type EntityReferenceListConfig struct {
	TargetType string
}

func (TextConfig) FieldType() FieldType                { return FieldTypeText }
func (LongTextConfig) FieldType() FieldType            { return FieldTypeLongText }
func (NumberConfig) FieldType() FieldType              { return FieldTypeNumber }
func (BooleanConfig) FieldType() FieldType             { return FieldTypeBoolean }
func (DateConfig) FieldType() FieldType                { return FieldTypeDate }
func (SingleSelectConfig) FieldType() FieldType        { return FieldTypeSingleSelect }
func (MultiSelectConfig) FieldType() FieldType         { return FieldTypeMultiSelect }
func (EntityReferenceConfig) FieldType() FieldType     { return FieldTypeEntityReference }
func (EntityReferenceListConfig) FieldType() FieldType { return FieldTypeEntityReferenceList }

func (TextConfig) fieldConfig()                {}
func (LongTextConfig) fieldConfig()            {}
func (NumberConfig) fieldConfig()              {}
func (BooleanConfig) fieldConfig()             {}
func (DateConfig) fieldConfig()                {}
func (SingleSelectConfig) fieldConfig()        {}
func (MultiSelectConfig) fieldConfig()         {}
func (EntityReferenceConfig) fieldConfig()     {}
func (EntityReferenceListConfig) fieldConfig() {}

func (TextConfig) Map() map[string]any     { return map[string]any{} }
func (LongTextConfig) Map() map[string]any { return map[string]any{} }
func (NumberConfig) Map() map[string]any   { return map[string]any{} }
func (BooleanConfig) Map() map[string]any  { return map[string]any{} }

func (c DateConfig) Map() map[string]any {
	return map[string]any{ConfigKeyIncludeTime: c.IncludeTime}
}

func (c SingleSelectConfig) Map() map[string]any {
	return map[string]any{ConfigKeyOptions: append([]string(nil), c.Options...)}
}

func (c MultiSelectConfig) Map() map[string]any {
	return map[string]any{ConfigKeyOptions: append([]string(nil), c.Options...)}
}

func (c EntityReferenceConfig) Map() map[string]any {
	return map[string]any{ConfigKeyTargetType: c.TargetType}
}

func (c EntityReferenceListConfig) Map() map[string]any {
	return map[string]any{ConfigKeyTargetType: c.TargetType}
}

// ConfigOptions returns the option set of a select configuration, or nil for
// any other configuration.
func ConfigOptions(c FieldConfig) []string {
	switch c := c.(type) {
	case SingleSelectConfig:
		return c.Options
	case MultiSelectConfig:
		return c.Options
	}
	return nil
}

// ConfigTargetType returns the target entity type of a reference
// configuration. ok is false for non-reference configurations.
func ConfigTargetType(c FieldConfig) (target string, ok bool) {
	switch c := c.(type) {
	case EntityReferenceConfig:
		return c.TargetType, true
	case EntityReferenceListConfig:
		return c.TargetType, true
	}
	return "", false
}

// allowedConfigKeys lists the legal configuration keys per field type.
var allowedConfigKeys = map[FieldType][]string{
	FieldTypeText:                nil,
	FieldTypeLongText:            nil,
	FieldTypeNumber:              nil,
	FieldTypeBoolean:             nil,
	FieldTypeDate:                {ConfigKeyIncludeTime},
	FieldTypeSingleSelect:        {ConfigKeyOptions},
	FieldTypeMultiSelect:         {ConfigKeyOptions},
	FieldTypeEntityReference:     {ConfigKeyTargetType},
	FieldTypeEntityReferenceList: {ConfigKeyTargetType},
}

// ParseFieldConfig checks raw against the configuration shape mandated by ft
// and returns the typed configuration. A nil map is treated as empty.
//
// Errors wrap ErrInvalidFieldType for an unknown ft and ErrInvalidConfiguration
// for unknown keys, wrong value shapes, empty or duplicated option lists, and a
// blank target type. Whether the target type exists is the registry's check.
func ParseFieldConfig(ft FieldType, raw map[string]any) (FieldConfig, error) {
	allowed, ok := allowedConfigKeys[ft]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFieldType, ft)
	}
	if err := checkConfigKeys(ft, raw, allowed); err != nil {
		return nil, err
	}

	switch ft {
	case FieldTypeText:
		return TextConfig{}, nil
	case FieldTypeLongText:
		return LongTextConfig{}, nil
	case FieldTypeNumber:
		return NumberConfig{}, nil
	case FieldTypeBoolean:
		return BooleanConfig{}, nil
	case FieldTypeDate:
		includeTime, err := configBool(ft, raw, ConfigKeyIncludeTime)
		if err != nil {
			return nil, err
		}
		return DateConfig{IncludeTime: includeTime}, nil
	case FieldTypeSingleSelect:
		opts, err := configOptions(ft, raw)
		if err != nil {
			return nil, err
		}
		return SingleSelectConfig{Options: opts}, nil
	case FieldTypeMultiSelect:
		opts, err := configOptions(ft, raw)
		if err != nil {
			return nil, err
		}
		return MultiSelectConfig{Options: opts}, nil
	case FieldTypeEntityReference:
		target, err := configTarget(ft, raw)
		if err != nil {
			return nil, err
		}
		return EntityReferenceConfig{TargetType: target}, nil
	default:
		target, err := configTarget(ft, raw)
		if err != nil {
			return nil, err
		}
		return EntityReferenceListConfig{TargetType: target}, nil
	}
}

func checkConfigKeys(ft FieldType, raw map[string]any, allowed []string) error {
	var unknown []string
	for k := range raw {
		legal := false
		for _, a := range allowed {
			if k == a {
				legal = true
				break
			}
		}
		if !legal {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%w: %s does not accept %s", ErrInvalidConfiguration, ft, quoteAll(unknown))
}

func configBool(ft FieldType, raw map[string]any, key string) (bool, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s %s must be a boolean, got %T", ErrInvalidConfiguration, ft, key, v)
	}
	return b, nil
}

func configOptions(ft FieldType, raw map[string]any) ([]string, error) {
	v, ok := raw[ConfigKeyOptions]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %s requires %s", ErrInvalidConfiguration, ft, ConfigKeyOptions)
	}
	opts, ok := stringList(v)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s must be a list of strings", ErrInvalidConfiguration, ft, ConfigKeyOptions)
	}
	if len(opts) == 0 {
		return nil, fmt.Errorf("%w: %s %s must not be empty", ErrInvalidConfiguration, ft, ConfigKeyOptions)
	}
	seen := make(map[string]bool, len(opts))
	for _, o := range opts {
		if strings.TrimSpace(o) == "" {
			return nil, fmt.Errorf("%w: %s option must not be blank", ErrInvalidConfiguration, ft)
		}
		if seen[o] {
			return nil, fmt.Errorf("%w: %s option %q is duplicated", ErrInvalidConfiguration, ft, o)
		}
		seen[o] = true
	}
	return opts, nil
}

func configTarget(ft FieldType, raw map[string]any) (string, error) {
	v, ok := raw[ConfigKeyTargetType]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s requires %s", ErrInvalidConfiguration, ft, ConfigKeyTargetType)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s %s must be a string, got %T", ErrInvalidConfiguration, ft, ConfigKeyTargetType, v)
	}
	s = NormalizeName(s)
	if s == "" {
		return "", fmt.Errorf("%w: %s %s must not be blank", ErrInvalidConfiguration, ft, ConfigKeyTargetType)
	}
	return s, nil
}

// stringList accepts []string or a []any whose elements are all strings, and
// returns a copy.
func stringList(v any) ([]string, bool) {
	switch v := v.(type) {
	case []string:
		return append([]string{}, v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func quoteAll(ss []string) string {
	q := make([]string, len(ss))
	for i, s := range ss {
		q[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(q, ", ")
}
