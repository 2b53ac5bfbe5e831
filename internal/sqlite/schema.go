package sqlite

// Schema DDL. Entity type names are the foreign key for fields and entities,
// so a rename cascades through both tables.
const (
	createEntityTypes = `CREATE TABLE entity_types (
    type_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);`

	createFieldDefinitions = `CREATE TABLE field_definitions (
    field_id TEXT PRIMARY KEY,
    entity_type_name TEXT NOT NULL,
    field_name TEXT NOT NULL,
    field_key TEXT NOT NULL,
    field_type TEXT NOT NULL,
    configuration TEXT NOT NULL DEFAULT '{}',
    display_order INTEGER NOT NULL DEFAULT 0,
    is_required INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    UNIQUE (entity_type_name, field_key),
    FOREIGN KEY (entity_type_name) REFERENCES entity_types(name) ON UPDATE CASCADE
);`

	createTypedEntities = `CREATE TABLE typed_entities (
    entity_id TEXT PRIMARY KEY,
    entity_type_name TEXT NOT NULL,
    title TEXT NOT NULL,
    body TEXT NOT NULL DEFAULT '',
    custom_fields TEXT NOT NULL DEFAULT '{}',
    source_entity_id TEXT,
    source_entity_type TEXT,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    FOREIGN KEY (entity_type_name) REFERENCES entity_types(name) ON UPDATE CASCADE
);`
)

// Index DDL for common queries.
const (
	idxFieldDefinitionsOrder = `CREATE INDEX idx_field_definitions_order ON field_definitions(entity_type_name, display_order, field_id);`
	idxTypedEntitiesType     = `CREATE INDEX idx_typed_entities_type ON typed_entities(entity_type_name, created_at, entity_id);`
	idxTypedEntitiesSource   = `CREATE INDEX idx_typed_entities_source ON typed_entities(source_entity_id);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createEntityTypes,
	createFieldDefinitions,
	createTypedEntities,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxFieldDefinitionsOrder,
	idxTypedEntitiesType,
	idxTypedEntitiesSource,
}

// Table names, also the JSONL file stems.
const (
	tableEntityTypes      = "entity_types"
	tableFieldDefinitions = "field_definitions"
	tableTypedEntities    = "typed_entities"
)

// tablesInLoadOrder lists the tables so that referenced rows load first.
var tablesInLoadOrder = []string{
	tableEntityTypes,
	tableFieldDefinitions,
	tableTypedEntities,
}

func jsonlFile(table string) string {
	return table + ".jsonl"
}
