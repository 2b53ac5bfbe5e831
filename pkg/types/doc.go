// Package types defines the Archive, Registry and Store interfaces, the field
// type catalog, the entity structs, and the standard errors for the archivist
// schema-driven entity core.
//
// The catalog is closed: FieldConfig and FieldValue are sealed interfaces and
// only the structs in this package implement them. Untyped values (as decoded
// from JSON or passed by callers) cross into typed form through
// ParseFieldConfig and DecodeValue, and leave it through Map and Raw.
package types
