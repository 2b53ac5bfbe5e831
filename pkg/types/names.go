package types

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// folder is safe for concurrent use.
var folder = cases.Fold()

// NormalizeName trims surrounding space and converts name to Unicode NFC so
// visually identical names compare equal byte for byte.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// FieldKey returns the comparison key for a field name. Field names are
// unique per entity type under this key, and candidate custom-field keys are
// matched to definitions through it.
func FieldKey(name string) string {
	return folder.String(NormalizeName(name))
}
