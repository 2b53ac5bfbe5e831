// Package validate checks candidate custom-field data against the field
// definitions of an entity type.
package validate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rfowler1994/project-archivist/pkg/types"
)

// Resolver looks up the entity type of a referenced entity. It returns an
// error wrapping types.ErrNotFound when no entity has that ID. Any other error
// aborts validation.
type Resolver interface {
	EntityType(ctx context.Context, id string) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, id string) (string, error)

// EntityType calls f.
func (f ResolverFunc) EntityType(ctx context.Context, id string) (string, error) {
	return f(ctx, id)
}

// Result is an accepted candidate.
type Result struct {
	// Values holds the canonical value of every accepted field, keyed by the
	// definition's FieldName.
	Values types.Values

	// Data is what gets stored: Values in raw form plus any candidate keys
	// that match no definition, copied through untouched.
	Data map[string]any
}

// Validate checks candidate against fields, which must be in ListFields
// order. Every field is checked; all violations are returned together in a
// *types.ValidationError. Candidate keys match field names without regard to
// case, and accepted values are re-keyed to the field's own spelling.
//
// A non-validation error (a failed lookup or a cancelled context) is returned
// as is.
func Validate(ctx context.Context, fields []*types.FieldDefinition, candidate map[string]any, r Resolver) (Result, error) {
	byKey := make(map[string][]string, len(candidate))
	for k := range candidate {
		fk := types.FieldKey(k)
		byKey[fk] = append(byKey[fk], k)
	}

	values := make(types.Values, len(fields))
	consumed := make(map[string]bool, len(candidate))
	var errs []types.FieldError

	for _, f := range fields {
		keys := byKey[types.FieldKey(f.FieldName)]
		for _, k := range keys {
			consumed[k] = true
		}

		if len(keys) > 1 {
			sort.Strings(keys)
			errs = append(errs, fieldError(f, types.RuleTypeMismatch,
				"ambiguous keys %s name the same field", strings.Join(keys, ", ")))
			continue
		}

		var raw any
		present := len(keys) == 1
		if present {
			raw = candidate[keys[0]]
		}

		if isEmpty(raw) {
			if f.IsRequired {
				errs = append(errs, fieldError(f, types.RuleRequiredFieldMissing, "a value is required"))
				continue
			}
			if raw == nil {
				continue
			}
		}

		v, err := types.DecodeValue(f, raw)
		if err != nil {
			errs = append(errs, fieldError(f, types.RuleTypeMismatch, "%s", strings.TrimPrefix(err.Error(), types.ErrTypeMismatch.Error()+": ")))
			continue
		}

		fieldErrs, err := check(ctx, f, v, r)
		if err != nil {
			return Result{}, err
		}
		if len(fieldErrs) > 0 {
			errs = append(errs, fieldErrs...)
			continue
		}
		values[f.FieldName] = v
	}

	if len(errs) > 0 {
		return Result{}, &types.ValidationError{Errors: errs}
	}

	data := values.Raw()
	for k, v := range candidate {
		if !consumed[k] {
			data[k] = v
		}
	}
	return Result{Values: values, Data: data}, nil
}

// check applies the option and reference rules to a decoded value.
func check(ctx context.Context, f *types.FieldDefinition, v types.FieldValue, r Resolver) ([]types.FieldError, error) {
	switch v := v.(type) {
	case types.SingleSelectValue:
		return checkOptions(f, []string{string(v)}), nil
	case types.MultiSelectValue:
		return checkOptions(f, v), nil
	case types.EntityReferenceValue:
		return checkReferences(ctx, f, []string{string(v)}, r)
	case types.EntityReferenceListValue:
		return checkReferences(ctx, f, v, r)
	}
	return nil, nil
}

func checkOptions(f *types.FieldDefinition, chosen []string) []types.FieldError {
	allowed := make(map[string]bool)
	for _, o := range types.ConfigOptions(f.Configuration) {
		allowed[o] = true
	}
	var errs []types.FieldError
	for _, c := range chosen {
		if !allowed[c] {
			errs = append(errs, fieldError(f, types.RuleInvalidOption, "%q is not one of the configured options", c))
		}
	}
	return errs
}

func checkReferences(ctx context.Context, f *types.FieldDefinition, ids []string, r Resolver) ([]types.FieldError, error) {
	var errs []types.FieldError

	seen := make(map[string]int, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		seen[id]++
		if seen[id] == 1 {
			unique = append(unique, id)
		} else if seen[id] == 2 {
			errs = append(errs, fieldError(f, types.RuleDuplicateReference, "entity %s is referenced more than once", id))
		}
	}

	target, _ := types.ConfigTargetType(f.Configuration)
	for _, id := range unique {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		typeName, err := r.EntityType(ctx, id)
		switch {
		case errors.Is(err, types.ErrNotFound):
			errs = append(errs, fieldError(f, types.RuleDanglingReference, "entity %s does not exist", id))
		case err != nil:
			return nil, fmt.Errorf("resolve reference %s: %w", id, err)
		case typeName != target:
			errs = append(errs, fieldError(f, types.RuleReferenceTypeMismatch,
				"entity %s is a %s, expected %s", id, typeName, target))
		}
	}
	return errs, nil
}

// isEmpty reports whether raw counts as no value for a required field.
func isEmpty(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	}
	return false
}

func fieldError(f *types.FieldDefinition, rule types.Rule, format string, args ...any) types.FieldError {
	return types.FieldError{Field: f.FieldName, Rule: rule, Message: fmt.Sprintf(format, args...)}
}
