package types

import (
	"fmt"
	"strings"
)

// Rule names a field-level validation rule.
type Rule string

// Validation rules, in the order they are checked for a field.
const (
	RuleRequiredFieldMissing  Rule = "required_field_missing"
	RuleTypeMismatch          Rule = "type_mismatch"
	RuleInvalidOption         Rule = "invalid_option"
	RuleDuplicateReference    Rule = "duplicate_reference"
	RuleDanglingReference     Rule = "dangling_reference"
	RuleReferenceTypeMismatch Rule = "reference_type_mismatch"
)

// FieldError is one field-level violation.
type FieldError struct {
	Field   string `json:"field"`
	Rule    Rule   `json:"rule"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s: %s", e.Field, e.Rule, e.Message)
}

// ValidationError carries every violation found in one candidate. It matches
// ErrValidationFailed under errors.Is.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.String()
	}
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// Rules returns the distinct rules violated, in first-seen order.
func (e *ValidationError) Rules() []Rule {
	var out []Rule
	seen := make(map[Rule]bool)
	for _, fe := range e.Errors {
		if !seen[fe.Rule] {
			seen[fe.Rule] = true
			out = append(out, fe.Rule)
		}
	}
	return out
}

// Has reports whether field violated rule.
func (e *ValidationError) Has(field string, rule Rule) bool {
	for _, fe := range e.Errors {
		if fe.Field == field && fe.Rule == rule {
			return true
		}
	}
	return false
}
