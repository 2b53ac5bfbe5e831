package types

import "context"

// Registry defines entity types and their fields.
type Registry interface {
	// DefineEntityType creates a type. Returns ErrInvalidName for a blank
	// name and ErrDuplicateName when the name is taken.
	DefineEntityType(ctx context.Context, name, description string) (*EntityTypeDefinition, error)

	// GetEntityType returns ErrUnknownEntityType if name is not defined.
	GetEntityType(ctx context.Context, name string) (*EntityTypeDefinition, error)

	// ListEntityTypes returns every type ordered by name.
	ListEntityTypes(ctx context.Context) ([]*EntityTypeDefinition, error)

	// DeleteEntityType removes a type. Returns ErrTypeInUse while any field
	// definition or entity still depends on it.
	DeleteEntityType(ctx context.Context, name string) error

	// RenameEntityType moves a type and everything that names it to newName.
	RenameEntityType(ctx context.Context, oldName, newName string) (*EntityTypeDefinition, error)

	// DefineField adds a field to a type.
	DefineField(ctx context.Context, spec FieldSpec) (*FieldDefinition, error)

	// UpdateField changes the type, configuration, order, or required flag of
	// an existing field. Stored entity data is not touched.
	UpdateField(ctx context.Context, spec FieldSpec) (*FieldDefinition, error)

	// ListFields returns the fields of a type ordered by DisplayOrder then ID.
	ListFields(ctx context.Context, typeName string) ([]*FieldDefinition, error)

	// DeleteField removes a field definition. Stored values stay in place.
	DeleteField(ctx context.Context, typeName, fieldName string) error
}

// Store creates, reads, updates, and deletes typed entities. Writes are
// validated against the live schema; reads return stored data unchanged.
type Store interface {
	CreateEntity(ctx context.Context, e NewEntity) (*TypedEntity, error)
	GetEntity(ctx context.Context, id string) (*TypedEntity, error)
	UpdateEntity(ctx context.Context, u EntityUpdate) (*TypedEntity, error)
	DeleteEntity(ctx context.Context, id string) error
	ListEntitiesOfType(ctx context.Context, typeName string) ([]*TypedEntity, error)
	ListEntitiesBySource(ctx context.Context, sourceEntityID string) ([]*TypedEntity, error)
}

// Archive is the attachable storage handle that serves both Registry and
// Store.
type Archive interface {
	Registry
	Store

	// Attach opens the backend described by config. Returns
	// ErrAlreadyAttached if called twice without Detach.
	Attach(config Config) error

	// Detach flushes pending writes and releases resources. After Detach every
	// operation returns ErrArchiveDetached.
	Detach() error
}
