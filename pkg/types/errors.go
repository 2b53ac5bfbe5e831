package types

import "errors"

// Archive lifecycle errors.
var (
	ErrArchiveDetached = errors.New("archive is detached")
	ErrAlreadyAttached = errors.New("archive is already attached")
)

// Registry and store errors.
var (
	ErrNotFound             = errors.New("not found")
	ErrUnknownEntityType    = errors.New("unknown entity type")
	ErrDuplicateName        = errors.New("entity type name already exists")
	ErrDuplicateField       = errors.New("field name already exists for entity type")
	ErrInvalidConfiguration = errors.New("invalid field configuration")
	ErrInvalidFieldType     = errors.New("invalid field type")
	ErrValidationFailed     = errors.New("validation failed")
	ErrConflictingUpdate    = errors.New("conflicting update")
	ErrTypeInUse            = errors.New("entity type is in use")
	ErrInvalidName          = errors.New("invalid name")
	ErrInvalidID            = errors.New("invalid ID")
)

// ErrTypeMismatch is returned by DecodeValue when a value does not have the
// shape its field type requires.
var ErrTypeMismatch = errors.New("type mismatch")
