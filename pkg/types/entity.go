package types

import (
	"encoding/json"
	"time"
)

// EntityTypeDefinition is a user-defined record type.
type EntityTypeDefinition struct {
	ID          string    `json:"type_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// FieldDefinition attaches one typed custom field to an entity type.
type FieldDefinition struct {
	ID             string
	EntityTypeName string
	FieldName      string
	FieldType      FieldType
	Configuration  FieldConfig
	DisplayOrder   int
	IsRequired     bool
	CreatedAt      time.Time
}

// fieldDefinitionJSON is the wire shape of a FieldDefinition.
type fieldDefinitionJSON struct {
	ID             string         `json:"field_id"`
	EntityTypeName string         `json:"entity_type_name"`
	FieldName      string         `json:"field_name"`
	FieldType      FieldType      `json:"field_type"`
	Configuration  map[string]any `json:"configuration"`
	DisplayOrder   int            `json:"display_order"`
	IsRequired     bool           `json:"is_required"`
	CreatedAt      time.Time      `json:"created_at"`
}

// MarshalJSON encodes the configuration through FieldConfig.Map.
func (f FieldDefinition) MarshalJSON() ([]byte, error) {
	cfg := map[string]any{}
	if f.Configuration != nil {
		cfg = f.Configuration.Map()
	}
	return json.Marshal(fieldDefinitionJSON{
		ID:             f.ID,
		EntityTypeName: f.EntityTypeName,
		FieldName:      f.FieldName,
		FieldType:      f.FieldType,
		Configuration:  cfg,
		DisplayOrder:   f.DisplayOrder,
		IsRequired:     f.IsRequired,
		CreatedAt:      f.CreatedAt,
	})
}

// FieldSpec is the caller's description of a field for DefineField and
// UpdateField. Configuration is untyped and checked by ParseFieldConfig.
type FieldSpec struct {
	EntityTypeName string         `json:"entity_type_name" yaml:"entity_type_name"`
	FieldName      string         `json:"field_name" yaml:"field_name"`
	FieldType      FieldType      `json:"field_type" yaml:"field_type"`
	Configuration  map[string]any `json:"configuration,omitempty" yaml:"configuration,omitempty"`
	DisplayOrder   int            `json:"display_order" yaml:"display_order"`
	IsRequired     bool           `json:"is_required" yaml:"is_required"`
}

// Provenance records the record an entity was derived from. It is a tag only:
// nothing checks that the source exists.
type Provenance struct {
	SourceEntityID   string `json:"source_entity_id"`
	SourceEntityType string `json:"source_entity_type"`
}

// IsZero reports whether p carries no source.
func (p Provenance) IsZero() bool {
	return p.SourceEntityID == "" && p.SourceEntityType == ""
}

// TypedEntity is an instance of an entity type.
type TypedEntity struct {
	ID               string         `json:"entity_id"`
	EntityTypeName   string         `json:"entity_type_name"`
	Title            string         `json:"title"`
	Body             string         `json:"body"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Version          int64          `json:"version"`
	Provenance       *Provenance    `json:"provenance,omitempty"`
	CustomFieldsData map[string]any `json:"custom_fields"`
}

// NewEntity is the input to CreateEntity.
type NewEntity struct {
	EntityTypeName   string
	Title            string
	Body             string
	CustomFieldsData map[string]any
	Provenance       *Provenance
}

// EntityUpdate is the input to UpdateEntity. Version must equal the stored
// version; the update replaces Title, Body and CustomFieldsData wholesale.
type EntityUpdate struct {
	ID               string
	Version          int64
	Title            string
	Body             string
	CustomFieldsData map[string]any
}
