package compiler

import (
	"fmt"
	"strings"

	"github.com/specforge/specforge/internal/schema"
)

// assign is one resolved column/value pair of a mutating statement.
type assign struct {
	column string
	value  string
}

// compileAssignments turns definition assignments into column/value pairs.
// Values for ref fields are external UUIDs; they are resolved to internal
// keys through the Resolver, so a dangling reference aborts with not_found
// before the statement runs. Reserved (compiler-managed) columns cannot be
// assigned.
func (c *ActionContext) compileAssignments(target *schema.EntityDefinition, set []schema.Assignment) (pre []string, assigns []assign, err error) {
	for _, a := range set {
		field := target.Field(a.Field)
		if field == nil {
			return nil, nil, c.errf("entity %s has no field %q", target.Name, a.Field)
		}
		col := columnName(field)
		if reservedColumns[col] {
			return nil, nil, c.errf("field %q is managed by the compiler and cannot be assigned", a.Field)
		}

		if field.Type == schema.TypeRef {
			if lit, ok := a.Value.(*schema.Literal); ok && lit.Value == nil {
				assigns = append(assigns, assign{column: col, value: "NULL"})
				continue
			}
			idSQL, stable, err := c.compileIDExpr(a.Value)
			if err != nil {
				return nil, nil, err
			}
			refEntity := c.bundle.Entity(field.Ref)
			if refEntity == nil {
				return nil, nil, c.errf("ref field %q targets unknown entity %q", a.Field, field.Ref)
			}
			pkVar, stmts := c.resolver.Resolve(c, refEntity, idSQL, stable)
			pre = append(pre, stmts...)
			assigns = append(assigns, assign{column: col, value: pkVar})
			continue
		}

		sql, err := c.compileTyped(a.Value, rowMode, pgType(field.Type))
		if err != nil {
			return nil, nil, err
		}
		assigns = append(assigns, assign{column: col, value: sql})
	}
	return pre, assigns, nil
}

// targetRowID returns the SQL expression of the external id identifying the
// row a mutating step operates on, and whether it is invocation-stable.
func (c *ActionContext) targetRowID(target *schema.EntityDefinition, idExpr schema.Expr) (string, bool, error) {
	if idExpr != nil {
		return c.compileIDExpr(idExpr)
	}
	if target != c.entity {
		return "", false, c.errf("a step targeting %s requires an explicit id", target.Name)
	}
	return "p_" + sqlName(c.entity.Name) + "_id", true, nil
}

// matchConditions builds the row-matching condition of a mutating
// statement: resolved key, soft-delete guard, tenant isolation for
// multi-tenant entities, and every active precondition of the target entity
// re-rendered against bare columns. Repeating the preconditions makes a
// concurrent conflicting write surface as zero rows affected (not_found)
// instead of a silent overwrite.
func (c *ActionContext) matchConditions(target *schema.EntityDefinition, pkVar string) ([]string, error) {
	conds := []string{
		fmt.Sprintf("%s = %s", pkColumn(target), pkVar),
		"deleted_at IS NULL",
	}
	if target.MultiTenant {
		conds = append(conds, "tenant_id = p_tenant_id")
	}
	for _, pre := range c.preconditionsFor(target.Name) {
		sql, _, err := c.compileExpr(pre, columnMode)
		if err != nil {
			return nil, err
		}
		conds = append(conds, "("+sql+")")
	}
	return conds, nil
}

// emitRowMutation renders an UPDATE statement with the common shape shared
// by Update and Delete steps, followed by the zero-rows guard and the
// impact record.
func (c *ActionContext) emitRowMutation(target *schema.EntityDefinition, assigns []assign, pkVar, idSQL, operation string) ([]string, error) {
	conds, err := c.matchConditions(target, pkVar)
	if err != nil {
		return nil, err
	}

	lines := []string{fmt.Sprintf("UPDATE %s SET", c.opts.tableName(target))}
	for i, a := range assigns {
		sep := ","
		if i == len(assigns)-1 {
			sep = ""
		}
		lines = append(lines, fmt.Sprintf("    %s = %s%s", a.column, a.value, sep))
	}
	for i, cond := range conds {
		switch {
		case i == 0 && len(conds) == 1:
			lines = append(lines, fmt.Sprintf("WHERE %s;", cond))
		case i == 0:
			lines = append(lines, fmt.Sprintf("WHERE %s", cond))
		case i == len(conds)-1:
			lines = append(lines, fmt.Sprintf("    AND %s;", cond))
		default:
			lines = append(lines, fmt.Sprintf("    AND %s", cond))
		}
	}

	lines = append(lines,
		"IF NOT FOUND THEN",
		fmt.Sprintf("    RAISE EXCEPTION USING ERRCODE = '%s', MESSAGE = '%s',",
			sqlstateNotFound, ErrNotFound),
		fmt.Sprintf("        DETAIL = format('%s %%s was concurrently modified or is missing', %s);",
			target.Name, idSQL),
		"END IF;",
		impactLine(target.Name, operation, idSQL+"::TEXT"),
	)

	// The mutation both verified the preconditions and locked the row
	// until commit.
	c.clearPreconditions(target.Name)
	return lines, nil
}

func impactLine(entity, operation, idSQL string) string {
	return fmt.Sprintf(
		"v_impacts := v_impacts || jsonb_build_object('entity', %s, 'operation', '%s', 'ids', jsonb_build_array(%s));",
		quoteLiteral(entity), operation, idSQL)
}

// compileUpdate mutates an existing row. The audit stamp
// (updated_at/updated_by) is always appended; the author never writes it.
func (c *ActionContext) compileUpdate(u *schema.Update) ([]string, error) {
	target, err := c.targetEntity(u.Target)
	if err != nil {
		return nil, err
	}
	if len(u.Set) == 0 {
		return nil, c.errf("update requires at least one assignment")
	}

	idSQL, stable, err := c.targetRowID(target, u.TargetID)
	if err != nil {
		return nil, err
	}
	pkVar, resolveStmts := c.resolver.Resolve(c, target, idSQL, stable)

	pre, assigns, err := c.compileAssignments(target, u.Set)
	if err != nil {
		return nil, err
	}
	assigns = append(assigns,
		assign{column: "updated_at", value: "now()"},
		assign{column: "updated_by", value: "p_caller_id"},
	)

	lines := append(resolveStmts, pre...)
	mutation, err := c.emitRowMutation(target, assigns, pkVar, idSQL, "update")
	if err != nil {
		return nil, err
	}
	lines = append(lines, mutation...)
	lines = append(lines, c.reloadPrimaryRow(target)...)
	return lines, nil
}

// compileDelete soft-deletes a row: compiled as an Update setting the
// soft-delete marker. Physical deletion is never emitted.
func (c *ActionContext) compileDelete(d *schema.Delete) ([]string, error) {
	target, err := c.targetEntity(d.Target)
	if err != nil {
		return nil, err
	}

	idSQL, stable, err := c.targetRowID(target, d.TargetID)
	if err != nil {
		return nil, err
	}
	pkVar, resolveStmts := c.resolver.Resolve(c, target, idSQL, stable)

	assigns := []assign{
		{column: "deleted_at", value: "now()"},
		{column: "deleted_by", value: "p_caller_id"},
	}

	mutation, err := c.emitRowMutation(target, assigns, pkVar, idSQL, "delete")
	if err != nil {
		return nil, err
	}
	lines := append(resolveStmts, mutation...)
	lines = append(lines, c.reloadPrimaryRow(target)...)
	return lines, nil
}

// compileInsert creates a row with the Trinity triple auto-populated: the
// internal key comes from the storage layer's sequence, the external id is
// generated unless supplied, and the human identifier goes through the
// per-entity collision helper. The audit stamp (created_at/created_by) and
// the tenant id are always injected.
func (c *ActionContext) compileInsert(ins *schema.Insert) ([]string, error) {
	target, err := c.targetEntity(ins.Target)
	if err != nil {
		return nil, err
	}

	pre, assigns, err := c.compileAssignments(target, ins.Set)
	if err != nil {
		return nil, err
	}

	assigned := make(map[string]bool)
	for _, a := range ins.Set {
		assigned[a.Field] = true
	}
	for _, f := range target.Fields {
		if f.Required && !assigned[f.Name] {
			return nil, c.errf("required field %q is not initialized", f.Name)
		}
	}

	idSQL := "gen_random_uuid()"
	if ins.ID != nil {
		supplied, err := c.compileTyped(ins.ID, rowMode, "UUID")
		if err != nil {
			return nil, err
		}
		idSQL = fmt.Sprintf("COALESCE(%s, gen_random_uuid())", supplied)
	}

	identifierBase, err := c.identifierBase(target, ins)
	if err != nil {
		return nil, err
	}

	columns := []string{"id", "identifier"}
	values := []string{idSQL, fmt.Sprintf("%s(%s)", identifierFn(target), identifierBase)}
	if target.MultiTenant {
		columns = append(columns, "tenant_id")
		values = append(values, "p_tenant_id")
	}
	for _, a := range assigns {
		columns = append(columns, a.column)
		values = append(values, a.value)
	}
	columns = append(columns, "created_at", "created_by")
	values = append(values, "now()", "p_caller_id")

	newPK := c.declare("v_new_"+sqlName(target.Name)+"_pk", "INTEGER", "")
	newID := c.declare("v_new_"+sqlName(target.Name)+"_id", "UUID", "")

	lines := append([]string{}, pre...)
	lines = append(lines,
		fmt.Sprintf("INSERT INTO %s (%s)", c.opts.tableName(target), strings.Join(columns, ", ")),
		fmt.Sprintf("VALUES (%s)", strings.Join(values, ", ")),
		fmt.Sprintf("RETURNING %s, id INTO %s, %s;", pkColumn(target), newPK, newID),
		impactLine(target.Name, "create", newID+"::TEXT"),
	)

	// An insert-only action returns the freshly created row as its
	// object_data.
	if target == c.entity && c.primaryPK == "" {
		c.primaryPK = newPK
		c.primaryID = newID
	}
	return lines, nil
}

// identifierBase picks the value seeding the human identifier: an explicit
// override, else the initializer of the entity's identifier_from field,
// else NULL (the helper falls back to the entity name).
func (c *ActionContext) identifierBase(target *schema.EntityDefinition, ins *schema.Insert) (string, error) {
	if ins.Identifier != nil {
		sql, _, err := c.compileExpr(ins.Identifier, rowMode)
		return sql, err
	}
	if target.IdentifierFrom != "" {
		for _, a := range ins.Set {
			if a.Field == target.IdentifierFrom {
				sql, _, err := c.compileExpr(a.Value, rowMode)
				return sql, err
			}
		}
	}
	return "NULL", nil
}

// reloadPrimaryRow refreshes the loaded row variable after a mutation of
// the primary entity, so later predicates observe the new state.
func (c *ActionContext) reloadPrimaryRow(target *schema.EntityDefinition) []string {
	if target != c.entity || c.rowVar == "" {
		return nil
	}
	return []string{fmt.Sprintf("SELECT * INTO %s FROM %s WHERE %s = %s;",
		c.rowVar, c.opts.tableName(target), pkColumn(target), c.primaryPK)}
}
