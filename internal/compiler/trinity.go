package compiler

import (
	"fmt"

	"github.com/specforge/specforge/internal/schema"
)

// EntityHelpersDDL emits the per-entity Trinity helpers: the external-id
// lookup backing identity resolution, and the human-identifier constructor
// with its collision suffix loop.
func EntityHelpersDDL(e *schema.EntityDefinition, opts Options) []string {
	opts.ApplyDefaults()
	return []string{lookupFnDDL(e, opts), identifierFnDDL(e, opts)}
}

// lookupFnDDL maps a stable external UUID to the internal fast-join key.
// Soft-deleted rows do not resolve.
func lookupFnDDL(e *schema.EntityDefinition, opts Options) string {
	return fmt.Sprintf(`CREATE OR REPLACE FUNCTION %s(p_id UUID)
RETURNS INTEGER
LANGUAGE sql STABLE
AS $fn$
    SELECT %s FROM %s WHERE id = p_id AND deleted_at IS NULL
$fn$;`, lookupFn(e), pkColumn(e), opts.tableName(e))
}

// identifierFnDDL constructs a unique human identifier from a base value.
// Collisions append '#n' starting at 2; exceeding the configured bound
// raises sequence_limit_exceeded. A NULL or blank base falls back to the
// entity name.
func identifierFnDDL(e *schema.EntityDefinition, opts Options) string {
	return fmt.Sprintf(`CREATE OR REPLACE FUNCTION %s(p_base TEXT)
RETURNS TEXT
LANGUAGE plpgsql
AS $fn$
DECLARE
    v_base TEXT;
    v_candidate TEXT;
    v_n INTEGER := 1;
BEGIN
    v_base := COALESCE(NULLIF(trim(p_base), ''), '%s');
    v_candidate := v_base;
    WHILE EXISTS (SELECT 1 FROM %s WHERE identifier = v_candidate) LOOP
        v_n := v_n + 1;
        IF v_n > %d THEN
            RAISE EXCEPTION USING ERRCODE = '%s', MESSAGE = '%s',
                DETAIL = format('identifier base %%s has exhausted its suffix space', v_base);
        END IF;
        v_candidate := v_base || '#' || v_n;
    END LOOP;
    RETURN v_candidate;
END
$fn$;`, identifierFn(e), sqlName(e.Name), opts.tableName(e),
		opts.IdentifierMax, sqlstateSequenceLimit, ErrSequenceLimitExceeded)
}
