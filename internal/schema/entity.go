package schema

// FieldType enumerates the scalar kinds of entity fields and action
// parameters, plus "ref" for references to other entities.
type FieldType string

const (
	TypeText      FieldType = "text"
	TypeInteger   FieldType = "integer"
	TypeBoolean   FieldType = "boolean"
	TypeTimestamp FieldType = "timestamp"
	TypeDate      FieldType = "date"
	TypeUUID      FieldType = "uuid"
	TypeJSONB     FieldType = "jsonb"
	TypeRef       FieldType = "ref"
)

// ValidFieldTypes defines the allowed field type strings.
var ValidFieldTypes = map[FieldType]bool{
	TypeText: true, TypeInteger: true, TypeBoolean: true,
	TypeTimestamp: true, TypeDate: true, TypeUUID: true,
	TypeJSONB: true, TypeRef: true,
}

// FieldDefinition describes one entity field.
type FieldDefinition struct {
	Name string
	Type FieldType
	// Ref names the referenced entity when Type == TypeRef.
	Ref string
	// Required marks the field NOT NULL at the storage layer.
	Required bool
}

// EntityDefinition describes one entity. Owned by the front-end; the
// compiler only reads it.
type EntityDefinition struct {
	Name   string
	Schema string
	// MultiTenant scopes every generated mutating statement by tenant_id.
	MultiTenant bool
	// IdentifierFrom names the field whose value seeds the human-readable
	// identifier on insert. Empty means the identifier is derived from the
	// entity name.
	IdentifierFrom string
	// Fields in declaration order. Order is load-bearing: generated
	// parameter lists and column lists follow it.
	Fields  []FieldDefinition
	Actions []ActionDefinition
}

// Field returns the named field, or nil.
func (e *EntityDefinition) Field(name string) *FieldDefinition {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i]
		}
	}
	return nil
}

// Action returns the named action, or nil.
func (e *EntityDefinition) Action(name string) *ActionDefinition {
	for i := range e.Actions {
		if e.Actions[i].Name == name {
			return &e.Actions[i]
		}
	}
	return nil
}

// ParamDefinition describes one declared action input parameter.
type ParamDefinition struct {
	Name     string
	Type     FieldType
	Required bool
}

// ActionDefinition describes one action of an entity. Immutable once
// compiled.
type ActionDefinition struct {
	Name   string
	Params []ParamDefinition
	Steps  []Step
}

// HelperDefinition declares an external procedure that Call steps may
// invoke. Helpers are provided by the persistence layer (or hand-written
// SQL); the compiler only needs the name and return type.
type HelperDefinition struct {
	// Name is the schema-qualified procedure name, e.g. "crm.score_contact".
	Name    string
	Args    []FieldType
	Returns FieldType
}

// Bundle is the full set of definitions the compiler operates on.
type Bundle struct {
	Entities []EntityDefinition
	Helpers  []HelperDefinition
}

// Entity returns the named entity, or nil.
func (b *Bundle) Entity(name string) *EntityDefinition {
	for i := range b.Entities {
		if b.Entities[i].Name == name {
			return &b.Entities[i]
		}
	}
	return nil
}

// Helper returns the named helper, or nil. Lookup is by exact qualified
// name.
func (b *Bundle) Helper(name string) *HelperDefinition {
	for i := range b.Helpers {
		if b.Helpers[i].Name == name {
			return &b.Helpers[i]
		}
	}
	return nil
}
