package compiler

import (
	"fmt"
	"strings"

	"github.com/specforge/specforge/internal/schema"
)

// Options control naming and limits of the generated code. Zero values are
// filled in by ApplyDefaults.
type Options struct {
	// EnvelopeSchema hosts the shared mutation_result type and its
	// helpers.
	EnvelopeSchema string
	// TablePrefix prefixes entity table names (tb_contact).
	TablePrefix string
	// IdentifierMax bounds the human-identifier collision suffix; one more
	// collision raises sequence_limit_exceeded.
	IdentifierMax int
}

// ApplyDefaults fills in zero-valued options.
func (o *Options) ApplyDefaults() {
	if o.EnvelopeSchema == "" {
		o.EnvelopeSchema = "app"
	}
	if o.TablePrefix == "" {
		o.TablePrefix = "tb_"
	}
	if o.IdentifierMax == 0 {
		o.IdentifierMax = 999
	}
}

// pgType maps a schema field type to its PostgreSQL type. References are
// passed around as external UUIDs; the stored fk_ column holds the internal
// key and is resolved on write.
func pgType(t schema.FieldType) string {
	switch t {
	case schema.TypeText:
		return "TEXT"
	case schema.TypeInteger:
		return "INTEGER"
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeTimestamp:
		return "TIMESTAMPTZ"
	case schema.TypeDate:
		return "DATE"
	case schema.TypeUUID, schema.TypeRef:
		return "UUID"
	case schema.TypeJSONB:
		return "JSONB"
	default:
		return "TEXT"
	}
}

// Storage-layer naming conventions. The internal key pk_{entity} is
// storage-generated, id is the stable external UUID, identifier the
// human-readable slug.
func (o Options) tableName(e *schema.EntityDefinition) string {
	return fmt.Sprintf("%s.%s%s", sqlName(e.Schema), o.TablePrefix, sqlName(e.Name))
}

func pkColumn(e *schema.EntityDefinition) string {
	return "pk_" + sqlName(e.Name)
}

// columnName maps a field to its stored column: ref fields live in fk_
// columns holding the target's internal key.
func columnName(f *schema.FieldDefinition) string {
	if f.Type == schema.TypeRef {
		return "fk_" + sqlName(f.Name)
	}
	return sqlName(f.Name)
}

// functionName names an action's generated function, e.g.
// crm.contact_qualify_lead.
func functionName(e *schema.EntityDefinition, a *schema.ActionDefinition) string {
	return fmt.Sprintf("%s.%s_%s", sqlName(e.Schema), sqlName(e.Name), sqlName(a.Name))
}

// identifierFn names the generated human-identifier helper, e.g.
// crm.contact_identifier.
func identifierFn(e *schema.EntityDefinition) string {
	return fmt.Sprintf("%s.%s_identifier", sqlName(e.Schema), sqlName(e.Name))
}

// reservedColumns are managed exclusively by the compiler; assignments to
// them in definitions are compile-time errors.
var reservedColumns = map[string]bool{
	"id": true, "identifier": true, "tenant_id": true,
	"created_at": true, "created_by": true,
	"updated_at": true, "updated_by": true,
	"deleted_at": true, "deleted_by": true,
}

// EnvelopePrelude emits the DDL for the shared envelope machinery: the
// mutation_result composite type and the error constructor. The type is
// invariant across all actions, enabling generic client-side handling.
func EnvelopePrelude(opts Options) []string {
	opts.ApplyDefaults()
	s := opts.EnvelopeSchema

	createSchema := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s;", s)

	createType := fmt.Sprintf(`DO $$ BEGIN
    CREATE TYPE %s.mutation_result AS (
        success BOOLEAN,
        error_code TEXT,
        error_message TEXT,
        object_data JSONB,
        impacts JSONB,
        extra_metadata JSONB
    );
EXCEPTION WHEN duplicate_object THEN NULL;
END $$;`, s)

	errorFn := fmt.Sprintf(`CREATE OR REPLACE FUNCTION %s.mutation_error(p_code TEXT, p_message TEXT)
RETURNS %s.mutation_result
LANGUAGE sql IMMUTABLE
AS $fn$
    SELECT FALSE, p_code, p_message, NULL::JSONB, '[]'::JSONB, '{}'::JSONB
$fn$;`, s, s)

	return []string{createSchema, createType, errorFn}
}

// InputTypeDDL declares the composite type describing an action's declared
// input parameters. Downstream schema assemblers derive client-facing
// mutation signatures from it. Actions without declared parameters have no
// input type.
func InputTypeDDL(entity *schema.EntityDefinition, action *schema.ActionDefinition) string {
	if len(action.Params) == 0 {
		return ""
	}
	var fields []string
	for _, p := range action.Params {
		fields = append(fields, fmt.Sprintf("        %s %s", sqlName(p.Name), pgType(p.Type)))
	}
	typeName := fmt.Sprintf("%s.%s_input", sqlName(entity.Schema), sqlName(action.Name))
	return fmt.Sprintf(`DO $$ BEGIN
    CREATE TYPE %s AS (
%s
    );
EXCEPTION WHEN duplicate_object THEN NULL;
END $$;`, typeName, strings.Join(fields, ",\n"))
}
